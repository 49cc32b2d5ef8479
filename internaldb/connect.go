package internaldb

import (
	"errors"
	"fmt"

	"code.cloudfoundry.org/lager"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/dbaasd/dbaasd/config"
)

// Supported DB types:
// * postgres
// * sqlite3
func DBInit(dbConfig *config.DBConfig, logger lager.Logger) (*gorm.DB, error) {
	var DB *gorm.DB
	var err error
	switch dbConfig.DBType {
	case "postgres":
		conn := "dbname=%s user=%s password=%s host=%s sslmode=%s port=%d"
		conn = fmt.Sprintf(conn,
			dbConfig.DBName,
			dbConfig.Username,
			dbConfig.Password,
			dbConfig.Url,
			dbConfig.Sslmode,
			dbConfig.Port)
		DB, err = gorm.Open("postgres", conn)
	case "sqlite3":
		DB, err = gorm.Open("sqlite3", dbConfig.DBName)
	default:
		err = errors.New("Cannot connect. Unsupported DB type: (" + dbConfig.DBType + ")")
		logger.Error("connectdb", err)
		return nil, err
	}
	if err != nil {
		logger.Error("connectdb", err)
		return nil, err
	}

	if err = DB.DB().Ping(); err != nil {
		logger.Error("connectdb-ping", err)
		return nil, err
	}
	DB.AutoMigrate(&DatabaseGrant{})
	return DB, nil
}
