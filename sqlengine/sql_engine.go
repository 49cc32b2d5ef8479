package sqlengine

import (
	"context"
	"fmt"

	"code.cloudfoundry.org/lager"

	"github.com/dbaasd/dbaasd/config"
)

type SQLEngine interface {
	Open(conf config.DBConfig) error
	Close()
	ExistsDB(ctx context.Context, dbname string) (bool, error)
	ExistsUser(ctx context.Context, username string) (bool, error)
	CreateDB(ctx context.Context, dbname string) error
	DropDB(ctx context.Context, dbname string) error
	CreateUser(ctx context.Context, username string, password string) error
	DropUser(ctx context.Context, username string) error
	GrantPrivileges(ctx context.Context, dbname string, username string) error
	RevokePrivileges(ctx context.Context, dbname string, username string) error
	URI(dbname string, username string, password string) string
	Address() string
	Port() int64
}

type Provider interface {
	GetSQLEngine(engine string) (SQLEngine, error)
}

type ProviderService struct {
	logger lager.Logger
}

func NewProviderService(logger lager.Logger) *ProviderService {
	return &ProviderService{logger: logger}
}

func (p *ProviderService) GetSQLEngine(engine string) (SQLEngine, error) {
	switch engine {
	case "mysql":
		return NewMySQLEngine(p.logger), nil
	case "postgres":
		return NewPostgresEngine(p.logger), nil
	}
	return nil, fmt.Errorf("SQL engine '%s' not supported", engine)
}
