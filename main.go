package main

import (
	"log"
	"net/http"
	"time"

	"github.com/govau/cf-common/env"

	"github.com/dbaasd/dbaasd/api"
	"github.com/dbaasd/dbaasd/config"
	"github.com/dbaasd/dbaasd/credentials"
	"github.com/dbaasd/dbaasd/executor"
	"github.com/dbaasd/dbaasd/identity"
	"github.com/dbaasd/dbaasd/internaldb"
	"github.com/dbaasd/dbaasd/provisioner"
	"github.com/dbaasd/dbaasd/sqlengine"
	"github.com/dbaasd/dbaasd/utils"
)

func main() {
	envVar := env.NewVarSet(env.WithOSLookup())

	port := envVar.String("PORT", "8080")

	configYml, err := LoadConfig(envVar.String("CONFIG_PATH", "config.yml"))
	if err != nil {
		log.Fatalf("Error loading config file: %s", err)
	}

	logger := utils.BuildLogger(configYml.LogLevel, "dbaas-engine")

	envConfig, err := config.LoadEnvConfig(envVar)
	if err != nil {
		log.Fatalf("Error loading environment: %s", err)
	}

	sqlProvider := sqlengine.NewProviderService(logger)
	backendEngine, err := sqlProvider.GetSQLEngine(configYml.BackendEngine)
	if err != nil {
		logger.Fatal("get-sql-engine", err)
	}
	if err = backendEngine.Open(*envConfig.BackendDBConfig); err != nil {
		logger.Fatal("connect-backend", err)
	}
	defer backendEngine.Close()

	catalogDB, err := internaldb.DBInit(envConfig.CatalogDBConfig, logger)
	if err != nil {
		logger.Fatal("connectdb", err)
	}

	catalog := internaldb.NewCatalog(catalogDB, logger)
	grantExecutor := executor.NewGrantExecutor(backendEngine, logger)
	policy := credentials.NewPolicy(configYml.DBPrefix)

	engine := provisioner.New(
		policy,
		grantExecutor,
		catalog,
		logger,
		envConfig.EncryptionKey,
		time.Duration(configYml.ExecTimeoutSeconds)*time.Second,
	)

	resolver := identity.NewHTTPResolver(envConfig.IdentityURL, logger)

	logger.Info("DBaaS engine started on port " + port + "...")
	logger.Fatal("listen-serve", http.ListenAndServe(":"+port, api.New(engine, resolver, logger)))
}
