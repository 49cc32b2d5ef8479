package fakes

import (
	"github.com/dbaasd/dbaasd/internaldb"
)

type FakeCatalog struct {
	InsertCalled bool
	InsertGrant  *internaldb.DatabaseGrant
	InsertError  error

	ListByOwnerCalled  bool
	ListByOwnerOwnerID string
	ListByOwnerGrants  []internaldb.DatabaseGrant
	ListByOwnerError   error

	FindByIDAndOwnerCalled  bool
	FindByIDAndOwnerGrantID string
	FindByIDAndOwnerOwnerID string
	FindByIDAndOwnerGrant   *internaldb.DatabaseGrant
	FindByIDAndOwnerError   error

	ExistsNameCalled bool
	ExistsNameName   string
	ExistsNameExists bool
	ExistsNameError  error

	RemoveCalled  bool
	RemoveGrantID string
	RemoveError   error

	MarkForReconcileCalled  bool
	MarkForReconcileGrantID string
	MarkForReconcileError   error
}

func (f *FakeCatalog) Insert(grant *internaldb.DatabaseGrant) error {
	f.InsertCalled = true
	f.InsertGrant = grant

	return f.InsertError
}

func (f *FakeCatalog) ListByOwner(ownerID string) ([]internaldb.DatabaseGrant, error) {
	f.ListByOwnerCalled = true
	f.ListByOwnerOwnerID = ownerID

	return f.ListByOwnerGrants, f.ListByOwnerError
}

func (f *FakeCatalog) FindByIDAndOwner(grantID, ownerID string) (*internaldb.DatabaseGrant, error) {
	f.FindByIDAndOwnerCalled = true
	f.FindByIDAndOwnerGrantID = grantID
	f.FindByIDAndOwnerOwnerID = ownerID

	if f.FindByIDAndOwnerError != nil {
		return nil, f.FindByIDAndOwnerError
	}
	return f.FindByIDAndOwnerGrant, nil
}

func (f *FakeCatalog) ExistsName(name string) (bool, error) {
	f.ExistsNameCalled = true
	f.ExistsNameName = name

	return f.ExistsNameExists, f.ExistsNameError
}

func (f *FakeCatalog) Remove(grantID string) error {
	f.RemoveCalled = true
	f.RemoveGrantID = grantID

	return f.RemoveError
}

func (f *FakeCatalog) MarkForReconcile(grantID string) error {
	f.MarkForReconcileCalled = true
	f.MarkForReconcileGrantID = grantID

	return f.MarkForReconcileError
}
