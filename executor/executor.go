package executor

import (
	"context"
	"fmt"

	"code.cloudfoundry.org/lager"

	"github.com/dbaasd/dbaasd/credentials"
	"github.com/dbaasd/dbaasd/sqlengine"
)

// NameCollisionError reports that the database or account already exists
// on the backend server.
type NameCollisionError struct {
	Name string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("'%s' already exists on the backend server", e.Name)
}

// ExecutionError wraps any backend server failure. The executor never
// retries; that policy belongs to the caller.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("backend server execution failed: %s", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

type GrantDetails struct {
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	Host             string
	Port             int64
	URI              string
}

// GrantExecutor is the only component that mutates backend server state.
type GrantExecutor struct {
	engine sqlengine.SQLEngine
	logger lager.Logger
}

func NewGrantExecutor(engine sqlengine.SQLEngine, logger lager.Logger) *GrantExecutor {
	return &GrantExecutor{
		engine: engine,
		logger: logger.Session("grant-executor"),
	}
}

// CreateDatabaseAndUser creates the database, a dedicated account derived
// from the name and tenant id, and grants that account privileges on that
// database only. A half-created sequence is rolled back before the error
// is returned.
func (e *GrantExecutor) CreateDatabaseAndUser(ctx context.Context, name, password, tenantID string) (GrantDetails, error) {
	var details GrantDetails

	username := credentials.DBUsername(name, tenantID)

	exists, err := e.engine.ExistsDB(ctx, name)
	if err != nil {
		return details, &ExecutionError{Cause: err}
	}
	if exists {
		return details, &NameCollisionError{Name: name}
	}

	exists, err = e.engine.ExistsUser(ctx, username)
	if err != nil {
		return details, &ExecutionError{Cause: err}
	}
	if exists {
		return details, &NameCollisionError{Name: username}
	}

	if err := e.engine.CreateDB(ctx, name); err != nil {
		return details, &ExecutionError{Cause: err}
	}

	if err := e.engine.CreateUser(ctx, username, password); err != nil {
		e.rollback(ctx, name, "")
		return details, &ExecutionError{Cause: err}
	}

	if err := e.engine.GrantPrivileges(ctx, name, username); err != nil {
		e.rollback(ctx, name, username)
		return details, &ExecutionError{Cause: err}
	}

	details = GrantDetails{
		DatabaseName:     name,
		DatabaseUser:     username,
		DatabasePassword: password,
		Host:             e.engine.Address(),
		Port:             e.engine.Port(),
		URI:              e.engine.URI(name, username, password),
	}
	return details, nil
}

// DropDatabaseAndUser removes the server-side artifacts of a grant.
// Already-absent objects count as success so a retry after a partial
// failure converges.
func (e *GrantExecutor) DropDatabaseAndUser(ctx context.Context, name, username string) error {
	dbExists, err := e.engine.ExistsDB(ctx, name)
	if err != nil {
		return &ExecutionError{Cause: err}
	}
	userExists, err := e.engine.ExistsUser(ctx, username)
	if err != nil {
		return &ExecutionError{Cause: err}
	}

	// Revoke only while both objects still exist; once either is gone
	// there is nothing to revoke.
	if dbExists && userExists {
		if err := e.engine.RevokePrivileges(ctx, name, username); err != nil {
			return &ExecutionError{Cause: err}
		}
	}

	if dbExists {
		if err := e.engine.DropDB(ctx, name); err != nil {
			return &ExecutionError{Cause: err}
		}
	}

	if userExists {
		if err := e.engine.DropUser(ctx, username); err != nil {
			return &ExecutionError{Cause: err}
		}
	}

	return nil
}

// rollback undoes a partial create. Failures here are logged and
// swallowed; the caller is already returning the original error.
func (e *GrantExecutor) rollback(ctx context.Context, name, username string) {
	if username != "" {
		if err := e.engine.DropUser(ctx, username); err != nil {
			e.logger.Error("rollback-drop-user", err, lager.Data{"username": username})
		}
	}
	if err := e.engine.DropDB(ctx, name); err != nil {
		e.logger.Error("rollback-drop-database", err, lager.Data{"dbname": name})
	}
}
