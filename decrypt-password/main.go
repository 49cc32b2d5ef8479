package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/govau/cf-common/env"

	"github.com/dbaasd/dbaasd/config"
	"github.com/dbaasd/dbaasd/internaldb"
	"github.com/dbaasd/dbaasd/utils"
)

var (
	logLevel string
	grantID  string
)

func init() {
	flag.StringVar(&logLevel, "log", "INFO", "Log level (DEBUG, INFO, ERROR or FATAL)")
	flag.StringVar(&grantID, "grant", "", "Grant to decrypt the password for")
}

func main() {
	flag.Parse()
	if grantID == "" {
		fmt.Fprintln(os.Stderr, "Must specify -grant")
		flag.Usage()
		os.Exit(1)
	}

	logger := utils.BuildLogger(logLevel, "dbaas-engine.decryptpassword")

	envConfig, err := config.LoadEnvConfig(env.NewVarSet(env.WithOSLookup()))
	if err != nil {
		logger.Fatal("load-environment", err)
	}

	catalogDB, err := internaldb.DBInit(envConfig.CatalogDBConfig, logger)
	if err != nil {
		logger.Fatal("connectdb", err)
	}

	var grant internaldb.DatabaseGrant
	if err := catalogDB.Where(&internaldb.DatabaseGrant{GrantID: grantID}).First(&grant).Error; err != nil {
		logger.Fatal("find-grant", err)
	}

	password, err := grant.Password(envConfig.EncryptionKey)
	if err != nil {
		logger.Fatal("decrypt-password", err)
	}

	fmt.Printf("%s@%s: %s\n", grant.DatabaseUser, grant.DatabaseName, password)
}
