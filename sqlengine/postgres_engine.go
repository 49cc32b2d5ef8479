package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq" // PostgreSQL Driver

	"code.cloudfoundry.org/lager"

	"github.com/dbaasd/dbaasd/config"
)

type PostgresEngine struct {
	logger lager.Logger
	db     *sql.DB
	config config.DBConfig
}

func NewPostgresEngine(logger lager.Logger) *PostgresEngine {
	return &PostgresEngine{
		logger: logger.Session("postgres-engine"),
	}
}

func (d *PostgresEngine) Open(conf config.DBConfig) error {
	d.config = conf
	connectionString := d.connectionString()
	d.logger.Debug("sql-open", lager.Data{"address": conf.Url, "port": conf.Port})

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return err
	}

	d.db = db

	return nil
}

func (d *PostgresEngine) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

func (d *PostgresEngine) ExistsDB(ctx context.Context, dbname string) (bool, error) {
	d.logger.Debug("database-exists", lager.Data{"dbname": dbname})

	var dummy string
	err := d.db.QueryRowContext(ctx, "SELECT datname FROM pg_database WHERE datname=$1", dbname).Scan(&dummy)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}

	return true, nil
}

// A previously dropped account lingers as a NOLOGIN role, which does not
// count as existing for collision purposes.
func (d *PostgresEngine) ExistsUser(ctx context.Context, username string) (bool, error) {
	d.logger.Debug("user-exists", lager.Data{"username": username})

	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname=$1 AND rolcanlogin)", username).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (d *PostgresEngine) CreateDB(ctx context.Context, dbname string) error {
	createDBStatement := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbname))
	d.logger.Debug("create-database", lager.Data{"statement": createDBStatement})

	if _, err := d.db.ExecContext(ctx, createDBStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *PostgresEngine) DropDB(ctx context.Context, dbname string) error {
	if err := d.dropConnections(ctx, dbname); err != nil {
		return err
	}

	dropDBStatement := fmt.Sprintf("DROP DATABASE IF EXISTS %s", pq.QuoteIdentifier(dbname))
	d.logger.Debug("drop-database", lager.Data{"statement": dropDBStatement})

	if _, err := d.db.ExecContext(ctx, dropDBStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *PostgresEngine) CreateUser(ctx context.Context, username string, password string) error {
	// If the user has been created and "dropped" previously, the user will
	// still exist but with NOLOGIN
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname=$1)", username).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		// Password is not recognized as a parameter, nor an identifier. Use our own escape method.
		loginStatement := fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s", pq.QuoteIdentifier(username), postgresQuoteValue(password))
		d.logger.Debug("login", lager.Data{"username": username})

		if _, err := d.db.ExecContext(ctx, loginStatement); err != nil {
			d.logger.Error("sql-error", err)
			return err
		}
	} else {
		createUserStatement := fmt.Sprintf("CREATE USER %s WITH PASSWORD %s", pq.QuoteIdentifier(username), postgresQuoteValue(password))
		d.logger.Debug("create-user", lager.Data{"username": username})

		if _, err := d.db.ExecContext(ctx, createUserStatement); err != nil {
			d.logger.Error("sql-error", err)
			return err
		}
	}

	return nil
}

func (d *PostgresEngine) DropUser(ctx context.Context, username string) error {
	// For PostgreSQL we don't drop the user because it might still be owner of some objects
	// We make it so they can't log in instead

	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname=$1)", username).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		// already absent, a retried drop converges
		return nil
	}

	nologinStatement := fmt.Sprintf("ALTER ROLE %s WITH NOLOGIN", pq.QuoteIdentifier(username))
	d.logger.Debug("nologin", lager.Data{"statement": nologinStatement})

	if _, err := d.db.ExecContext(ctx, nologinStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *PostgresEngine) GrantPrivileges(ctx context.Context, dbname string, username string) error {
	grantPrivilegesStatement := fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", pq.QuoteIdentifier(dbname), pq.QuoteIdentifier(username))
	d.logger.Debug("grant-privileges", lager.Data{"statement": grantPrivilegesStatement})

	if _, err := d.db.ExecContext(ctx, grantPrivilegesStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *PostgresEngine) RevokePrivileges(ctx context.Context, dbname string, username string) error {
	revokePrivilegesStatement := fmt.Sprintf("REVOKE ALL PRIVILEGES ON DATABASE %s FROM %s", pq.QuoteIdentifier(dbname), pq.QuoteIdentifier(username))
	d.logger.Debug("revoke-privileges", lager.Data{"statement": revokePrivilegesStatement})

	if _, err := d.db.ExecContext(ctx, revokePrivilegesStatement); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *PostgresEngine) URI(dbname string, username string, password string) string {
	return (&url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(username, password),
		Host:   fmt.Sprintf("%s:%d", d.config.Url, d.config.Port),
		Path:   fmt.Sprintf("/%s", url.PathEscape(dbname)),
	}).String()
}

func (d *PostgresEngine) Address() string {
	return d.config.Url
}

func (d *PostgresEngine) Port() int64 {
	return d.config.Port
}

func (d *PostgresEngine) dropConnections(ctx context.Context, dbname string) error {
	d.logger.Debug("drop-connections", lager.Data{"dbname": dbname})

	if _, err := d.db.ExecContext(ctx, "SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()", dbname); err != nil {
		d.logger.Error("sql-error", err)
		return err
	}

	return nil
}

func (d *PostgresEngine) connectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		postgresQuoteConnectionStringValue(d.config.Url),
		d.config.Port, // no escape as is an integer
		postgresQuoteConnectionStringValue(d.config.DBName),
		postgresQuoteConnectionStringValue(d.config.Username),
		postgresQuoteConnectionStringValue(d.config.Password),
		postgresQuoteConnectionStringValue(string(d.config.Sslmode)))
}

// postgresQuoteValue will quote the given value and escape
// any single-quote characters. If a null byte is present, it will
// be truncated there before continuing.
// This function should be used sparingly, it is nearly always more
// appropriate to use parameterization ($1) or pq.QuoteIdentifier,
// however some postgres statements don't support these.
func postgresQuoteValue(v string) string {
	end := strings.IndexRune(v, 0)
	if end > -1 {
		v = v[:end]
	}
	return `'` + strings.Replace(v, `'`, `''`, -1) + `'`
}

// postgresQuoteConnectionStringValue will quote the given value and escape
// any single-quote characters and backslash characters. If a null byte is present, it will
// be truncated there before continuing.
func postgresQuoteConnectionStringValue(v string) string {
	end := strings.IndexRune(v, 0)
	if end > -1 {
		v = v[:end]
	}
	return `'` + strings.Replace(strings.Replace(v, `\`, `\\`, -1), `'`, `\'`, -1) + `'`
}
