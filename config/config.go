package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/govau/cf-common/env"
)

type SSLMode string

const (
	Disable         = "disable"
	RequireNoVerify = "require"
	Verify          = "verify-full"
)

//   Valid SSL modes:
//    * disable - No SSL
//    * require - Always SSL (skip verification)
//    * verify-full - Always SSL (require verification)
type DBConfig struct {
	DBType   string
	Url      string
	Username string
	Password string
	DBName   string
	Sslmode  SSLMode
	Port     int64
}

type EnvConfig struct {
	EncryptionKey   []byte
	IdentityURL     string
	CatalogDBConfig *DBConfig
	BackendDBConfig *DBConfig
}

func LoadEnvConfig(envVars *env.VarSet) (*EnvConfig, error) {
	var config EnvConfig
	var err error
	config.BackendDBConfig, err = loadDBEnvConfig(envVars, "BACKEND", 3306)
	if err != nil {
		return &config, err
	}
	config.CatalogDBConfig, err = loadDBEnvConfig(envVars, "CATALOG", 5432)
	if err != nil {
		return &config, err
	}
	config.CatalogDBConfig.DBType = envVars.String("DBAAS_CATALOG_DB_PROVIDER", "sqlite3")
	if config.CatalogDBConfig.DBType != "postgres" && config.CatalogDBConfig.DBType != "sqlite3" {
		return &config, errors.New("Unknown catalog DB provider")
	}
	config.IdentityURL = envVars.String("DBAAS_IDENTITY_URL", "")
	if config.IdentityURL == "" {
		return &config, errors.New("Must provide DBAAS_IDENTITY_URL")
	}
	config.EncryptionKey, err = hex.DecodeString(envVars.String("DBAAS_ENCRYPTION_KEY", ""))
	if err != nil {
		return &config, fmt.Errorf("Failed to parse DBAAS_ENCRYPTION_KEY: %s", err)
	}
	if len(config.EncryptionKey) != 32 {
		return &config, errors.New("DBAAS_ENCRYPTION_KEY must be a hex-encoded 256-bit key")
	}
	return &config, nil
}

func loadDBEnvConfig(envVars *env.VarSet, version string, defaultPort int64) (*DBConfig, error) {
	var dbconfig DBConfig
	var err error
	dbconfig.DBName = envVars.String(fmt.Sprintf("DBAAS_%s_DB_NAME", version), "")
	dbconfig.Username = envVars.String(fmt.Sprintf("DBAAS_%s_DB_USERNAME", version), "")
	dbconfig.Password = envVars.String(fmt.Sprintf("DBAAS_%s_DB_PASSWORD", version), "")
	dbconfig.Url = envVars.String(fmt.Sprintf("DBAAS_%s_DB_URL", version), "")
	dbconfig.Sslmode = SSLMode(envVars.String(fmt.Sprintf("DBAAS_%s_DB_SSLMODE", version), Disable))
	portStr := envVars.String(fmt.Sprintf("DBAAS_%s_DB_PORT", version), "")
	if portStr != "" {
		dbconfig.Port, err = strconv.ParseInt(portStr, 0, 64)
		if err != nil {
			return &dbconfig, fmt.Errorf("Invalid port in environment variable DBAAS_%s_DB_PORT", version)
		}
	} else {
		dbconfig.Port = defaultPort
	}
	return &dbconfig, nil
}
