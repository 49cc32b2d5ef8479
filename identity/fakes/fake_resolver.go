package fakes

import (
	"context"

	"github.com/dbaasd/dbaasd/identity"
)

type FakeResolver struct {
	ResolveCalled bool
	ResolveToken  string
	ResolveTenant identity.TenantIdentity
	ResolveError  error
}

func (f *FakeResolver) Resolve(ctx context.Context, token string) (identity.TenantIdentity, error) {
	f.ResolveCalled = true
	f.ResolveToken = token

	return f.ResolveTenant, f.ResolveError
}
