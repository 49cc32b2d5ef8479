package fakes

import (
	"context"
	"fmt"

	"github.com/dbaasd/dbaasd/config"
)

type FakeSQLEngine struct {
	OpenCalled bool
	OpenConfig config.DBConfig
	OpenError  error

	CloseCalled bool

	ExistsDBCalled bool
	ExistsDBDBName string
	ExistsDBExists bool
	ExistsDBError  error

	ExistsUserCalled   bool
	ExistsUserUsername string
	ExistsUserExists   bool
	ExistsUserError    error

	CreateDBCalled bool
	CreateDBDBName string
	CreateDBError  error

	DropDBCalled bool
	DropDBDBName string
	DropDBError  error

	CreateUserCalled   bool
	CreateUserUsername string
	CreateUserPassword string
	CreateUserError    error

	DropUserCalled   bool
	DropUserUsername string
	DropUserError    error

	GrantPrivilegesCalled   bool
	GrantPrivilegesDBName   string
	GrantPrivilegesUsername string
	GrantPrivilegesError    error

	RevokePrivilegesCalled   bool
	RevokePrivilegesDBName   string
	RevokePrivilegesUsername string
	RevokePrivilegesError    error
}

func (f *FakeSQLEngine) Open(conf config.DBConfig) error {
	f.OpenCalled = true
	f.OpenConfig = conf

	return f.OpenError
}

func (f *FakeSQLEngine) Close() {
	f.CloseCalled = true
}

func (f *FakeSQLEngine) ExistsDB(ctx context.Context, dbname string) (bool, error) {
	f.ExistsDBCalled = true
	f.ExistsDBDBName = dbname

	return f.ExistsDBExists, f.ExistsDBError
}

func (f *FakeSQLEngine) ExistsUser(ctx context.Context, username string) (bool, error) {
	f.ExistsUserCalled = true
	f.ExistsUserUsername = username

	return f.ExistsUserExists, f.ExistsUserError
}

func (f *FakeSQLEngine) CreateDB(ctx context.Context, dbname string) error {
	f.CreateDBCalled = true
	f.CreateDBDBName = dbname

	return f.CreateDBError
}

func (f *FakeSQLEngine) DropDB(ctx context.Context, dbname string) error {
	f.DropDBCalled = true
	f.DropDBDBName = dbname

	return f.DropDBError
}

func (f *FakeSQLEngine) CreateUser(ctx context.Context, username string, password string) error {
	f.CreateUserCalled = true
	f.CreateUserUsername = username
	f.CreateUserPassword = password

	return f.CreateUserError
}

func (f *FakeSQLEngine) DropUser(ctx context.Context, username string) error {
	f.DropUserCalled = true
	f.DropUserUsername = username

	return f.DropUserError
}

func (f *FakeSQLEngine) GrantPrivileges(ctx context.Context, dbname string, username string) error {
	f.GrantPrivilegesCalled = true
	f.GrantPrivilegesDBName = dbname
	f.GrantPrivilegesUsername = username

	return f.GrantPrivilegesError
}

func (f *FakeSQLEngine) RevokePrivileges(ctx context.Context, dbname string, username string) error {
	f.RevokePrivilegesCalled = true
	f.RevokePrivilegesDBName = dbname
	f.RevokePrivilegesUsername = username

	return f.RevokePrivilegesError
}

func (f *FakeSQLEngine) URI(dbname string, username string, password string) string {
	return fmt.Sprintf("fake://%s:%s@%s:%d/%s", username, password, f.OpenConfig.Url, f.OpenConfig.Port, dbname)
}

func (f *FakeSQLEngine) Address() string {
	return f.OpenConfig.Url
}

func (f *FakeSQLEngine) Port() int64 {
	return f.OpenConfig.Port
}
