package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL Driver

	"code.cloudfoundry.org/lager"

	"github.com/dbaasd/dbaasd/config"
)

type MySQLEngine struct {
	logger lager.Logger
	db     *sql.DB
	config config.DBConfig
}

func NewMySQLEngine(logger lager.Logger) *MySQLEngine {
	return &MySQLEngine{
		logger: logger.Session("mysql-engine"),
	}
}

func (d *MySQLEngine) Open(conf config.DBConfig) error {
	d.config = conf
	connectionString := d.connectionString()
	d.logger.Debug("sql-open", lager.Data{"address": conf.Url, "port": conf.Port})

	db, err := sql.Open("mysql", connectionString)
	if err != nil {
		return err
	}

	d.db = db

	return nil
}

func (d *MySQLEngine) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

func (d *MySQLEngine) ExistsDB(ctx context.Context, dbname string) (bool, error) {
	d.logger.Debug("database-exists", lager.Data{"dbname": dbname})

	var dummy string
	err := d.db.QueryRowContext(ctx, "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", dbname).Scan(&dummy)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}

	return true, nil
}

func (d *MySQLEngine) ExistsUser(ctx context.Context, username string) (bool, error) {
	d.logger.Debug("user-exists", lager.Data{"username": username})

	var dummy string
	err := d.db.QueryRowContext(ctx, "SELECT User FROM mysql.user WHERE User = ?", username).Scan(&dummy)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}

	return true, nil
}

func (d *MySQLEngine) CreateDB(ctx context.Context, dbname string) error {
	// No IF NOT EXISTS: the server's own uniqueness must catch two
	// racing creates, otherwise the loser would silently reuse the
	// winner's database and be granted privileges on it.
	createDBStatement := "CREATE DATABASE " + mysqlQuoteIdentifier(dbname)
	d.logger.Debug("create-database", lager.Data{"statement": createDBStatement})

	if _, err := d.db.ExecContext(ctx, createDBStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *MySQLEngine) DropDB(ctx context.Context, dbname string) error {
	dropDBStatement := "DROP DATABASE IF EXISTS " + mysqlQuoteIdentifier(dbname)
	d.logger.Debug("drop-database", lager.Data{"statement": dropDBStatement})

	if _, err := d.db.ExecContext(ctx, dropDBStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *MySQLEngine) CreateUser(ctx context.Context, username string, password string) error {
	// The password cannot be bound as a parameter in DDL so it gets our
	// own escaping.
	createUserStatement := fmt.Sprintf("CREATE USER '%s'@'%%' IDENTIFIED BY %s", username, mysqlQuoteValue(password))
	d.logger.Debug("create-user", lager.Data{"username": username})

	if _, err := d.db.ExecContext(ctx, createUserStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *MySQLEngine) DropUser(ctx context.Context, username string) error {
	// IF EXISTS so a retried drop after a partial failure converges
	dropUserStatement := fmt.Sprintf("DROP USER IF EXISTS '%s'@'%%'", username)
	d.logger.Debug("drop-user", lager.Data{"statement": dropUserStatement})

	if _, err := d.db.ExecContext(ctx, dropUserStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *MySQLEngine) GrantPrivileges(ctx context.Context, dbname string, username string) error {
	grantPrivilegesStatement := fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO '%s'@'%%'", mysqlQuoteIdentifier(dbname), username)
	d.logger.Debug("grant-privileges", lager.Data{"statement": grantPrivilegesStatement})

	if _, err := d.db.ExecContext(ctx, grantPrivilegesStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	if _, err := d.db.ExecContext(ctx, "FLUSH PRIVILEGES"); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *MySQLEngine) RevokePrivileges(ctx context.Context, dbname string, username string) error {
	revokePrivilegesStatement := fmt.Sprintf("REVOKE ALL PRIVILEGES ON %s.* FROM '%s'@'%%'", mysqlQuoteIdentifier(dbname), username)
	d.logger.Debug("revoke-privileges", lager.Data{"statement": revokePrivilegesStatement})

	if _, err := d.db.ExecContext(ctx, revokePrivilegesStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *MySQLEngine) URI(dbname string, username string, password string) string {
	return fmt.Sprintf("mysql://%s:%s@%s:%d/%s?reconnect=true", username, password, d.config.Url, d.config.Port, dbname)
}

func (d *MySQLEngine) Address() string {
	return d.config.Url
}

func (d *MySQLEngine) Port() int64 {
	return d.config.Port
}

func (d *MySQLEngine) connectionString() string {
	var tls string
	switch d.config.Sslmode {
	case config.Disable:
		tls = "false"
	case config.RequireNoVerify:
		tls = "skip-verify"
	case config.Verify:
		tls = "true"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?tls=%s", d.config.Username, d.config.Password, d.config.Url, d.config.Port, d.config.DBName, tls)
}

func mysqlQuoteIdentifier(name string) string {
	return "`" + strings.Replace(name, "`", "``", -1) + "`"
}

func mysqlQuoteValue(value string) string {
	value = strings.Replace(value, `\`, `\\`, -1)
	value = strings.Replace(value, "'", `\'`, -1)
	return "'" + value + "'"
}
