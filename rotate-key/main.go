package main

import (
	"encoding/hex"
	"errors"
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
	failFast bool
)

func init() {
	flag.StringVar(&logLevel, "log", "INFO", "Log level (DEBUG, INFO, ERROR or FATAL)")
	flag.BoolVar(&failFast, "fast", false, "Whether to fail on first error or attempt to continue")
}

func main() {
	flag.Parse()

	logger := utils.BuildLogger(logLevel, "dbaas-engine.rotatekey")

	envConfig, err := config.LoadEnvConfig(env.NewVarSet(env.WithOSLookup()))
	if err != nil {
		logger.Fatal("load-environment", err)
	}

	catalogDB, err := internaldb.DBInit(envConfig.CatalogDBConfig, logger)
	if err != nil {
		logger.Fatal("connectdb", err)
	}

	oldEncryptionKey, err := hex.DecodeString(os.Getenv("DBAAS_ENCRYPTION_KEY_OLD"))
	if err != nil {
		logger.Fatal("parse-DBAAS_ENCRYPTION_KEY_OLD", err)
	}
	if len(oldEncryptionKey) != 32 {
		logger.Fatal("parse-DBAAS_ENCRYPTION_KEY_OLD", errors.New("DBAAS_ENCRYPTION_KEY_OLD must be a hex-encoded 256-bit key"))
	}

	err = internaldb.RotateKey(catalogDB, oldEncryptionKey, envConfig.EncryptionKey, logger, failFast)
	if err != nil {
		logger.Fatal("rotate-key", err)
	}
	fmt.Println("Successfully rotated the catalog encryption key")
}
