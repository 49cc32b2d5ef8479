package fakes

import (
	"context"

	"github.com/dbaasd/dbaasd/executor"
)

type FakeGrantExecutor struct {
	CreateCalled   bool
	CreateName     string
	CreatePassword string
	CreateTenantID string
	CreateDetails  executor.GrantDetails
	CreateError    error

	DropCalled   bool
	DropName     string
	DropUsername string
	DropError    error
}

func (f *FakeGrantExecutor) CreateDatabaseAndUser(ctx context.Context, name, password, tenantID string) (executor.GrantDetails, error) {
	f.CreateCalled = true
	f.CreateName = name
	f.CreatePassword = password
	f.CreateTenantID = tenantID

	if f.CreateError != nil {
		return executor.GrantDetails{}, f.CreateError
	}
	if f.CreateDetails.DatabaseName == "" {
		return executor.GrantDetails{
			DatabaseName:     name,
			DatabaseUser:     "u_" + name,
			DatabasePassword: password,
			Host:             "backend.example.com",
			Port:             3306,
		}, nil
	}
	return f.CreateDetails, nil
}

func (f *FakeGrantExecutor) DropDatabaseAndUser(ctx context.Context, name, username string) error {
	f.DropCalled = true
	f.DropName = name
	f.DropUsername = username

	return f.DropError
}
