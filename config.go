package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dbaasd/dbaasd/utils"
)

type Config struct {
	LogLevel           string `yaml:"log_level"`
	BackendEngine      string `yaml:"backend_engine"`
	DBPrefix           string `yaml:"db_prefix"`
	ExecTimeoutSeconds int64  `yaml:"exec_timeout_seconds"`
}

func LoadConfig(configFile string) (config *Config, err error) {
	file, err := os.Open(configFile)
	if err != nil {
		return config, err
	}
	defer file.Close()

	bytes, err := ioutil.ReadAll(file)
	if err != nil {
		return config, err
	}

	if err = yaml.Unmarshal(bytes, &config); err != nil {
		return config, err
	}

	if config.ExecTimeoutSeconds == 0 {
		config.ExecTimeoutSeconds = 30
	}

	if err = config.Validate(); err != nil {
		return config, fmt.Errorf("Validating config contents: %s", err)
	}

	return config, nil
}

func (c Config) Validate() error {
	if c.LogLevel == "" {
		return errors.New("Must provide a non-empty LogLevel")
	}

	if c.BackendEngine != "mysql" && c.BackendEngine != "postgres" {
		return fmt.Errorf("Unsupported backend engine '%s'", c.BackendEngine)
	}

	if !utils.IsSimpleIdentifier(c.DBPrefix) {
		return fmt.Errorf("Invalid db prefix '%s'", c.DBPrefix)
	}

	if c.ExecTimeoutSeconds < 0 {
		return errors.New("Must provide a non-negative ExecTimeoutSeconds")
	}

	return nil
}
