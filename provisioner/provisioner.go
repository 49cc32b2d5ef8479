package provisioner

import (
	"context"
	"errors"
	"time"

	"code.cloudfoundry.org/lager"

	"github.com/dbaasd/dbaasd/credentials"
	"github.com/dbaasd/dbaasd/executor"
	"github.com/dbaasd/dbaasd/identity"
	"github.com/dbaasd/dbaasd/internaldb"
	"github.com/dbaasd/dbaasd/metrics"
	"github.com/dbaasd/dbaasd/utils"
)

const tenantLogKey = "tenant-id"
const grantLogKey = "grant-id"
const dbNameLogKey = "dbname"

type GrantExecutor interface {
	CreateDatabaseAndUser(ctx context.Context, name, password, tenantID string) (executor.GrantDetails, error)
	DropDatabaseAndUser(ctx context.Context, name, username string) error
}

type Catalog interface {
	Insert(grant *internaldb.DatabaseGrant) error
	ListByOwner(ownerID string) ([]internaldb.DatabaseGrant, error)
	FindByIDAndOwner(grantID, ownerID string) (*internaldb.DatabaseGrant, error)
	ExistsName(name string) (bool, error)
	Remove(grantID string) error
	MarkForReconcile(grantID string) error
}

type GrantInfo struct {
	ID               string    `json:"id"`
	DatabaseName     string    `json:"db_name"`
	DatabaseUser     string    `json:"db_user"`
	DatabasePassword string    `json:"db_password"`
	Host             string    `json:"host"`
	Port             int64     `json:"port"`
	CreatedAt        time.Time `json:"created_at"`
}

type CreateResult struct {
	GrantInfo
	// Orphaned means the database is usable but the catalog has no record
	// of it; reconciliation has to sweep it up.
	Orphaned bool `json:"orphaned,omitempty"`
}

// Provisioner coordinates the grant executor and the catalog so that
// create and delete look atomic to callers.
type Provisioner struct {
	policy        credentials.Policy
	executor      GrantExecutor
	catalog       Catalog
	logger        lager.Logger
	encryptionKey []byte
	execTimeout   time.Duration
}

func New(
	policy credentials.Policy,
	grantExecutor GrantExecutor,
	catalog Catalog,
	logger lager.Logger,
	encryptionKey []byte,
	execTimeout time.Duration,
) *Provisioner {
	return &Provisioner{
		policy:        policy,
		executor:      grantExecutor,
		catalog:       catalog,
		logger:        logger.Session("provisioner"),
		encryptionKey: encryptionKey,
		execTimeout:   execTimeout,
	}
}

// Create validates inputs, executes the server-side creation and then
// records the grant. A duplicate at insert time means this call lost a
// name race; its server objects are dropped and the collision returned.
// Any other catalog failure after server success is reported as success
// with the Orphaned flag set: the tenant's database works, the drift is
// logged for reconciliation.
func (p *Provisioner) Create(ctx context.Context, tenant identity.TenantIdentity, requestedName, requestedPassword string) (CreateResult, error) {
	var result CreateResult

	name := p.policy.NormalizeName(requestedName, tenant)
	if err := p.policy.ValidateName(name); err != nil {
		return result, err
	}

	password := requestedPassword
	if password == "" {
		var err error
		password, err = utils.RandPassword()
		if err != nil {
			return result, err
		}
	}
	if err := credentials.ValidatePassword(password); err != nil {
		return result, err
	}

	p.logger.Debug("create", lager.Data{tenantLogKey: tenant.ID, dbNameLogKey: name})

	exists, err := p.catalog.ExistsName(name)
	if err != nil {
		return result, err
	}
	if exists {
		return result, internaldb.ErrDuplicate
	}

	execCtx, cancel := context.WithTimeout(ctx, p.execTimeout)
	defer cancel()
	details, err := p.executor.CreateDatabaseAndUser(execCtx, name, password, tenant.ID)
	if err != nil {
		metrics.ProvisionTotal.WithLabelValues("error").Inc()
		return result, err
	}

	grant, err := internaldb.NewGrant(tenant, details.DatabaseName, details.DatabaseUser, details.DatabasePassword, details.Host, details.Port, p.encryptionKey)
	if err == nil {
		err = p.catalog.Insert(grant)
	}
	if errors.Is(err, internaldb.ErrDuplicate) {
		// Lost the name race between the pre-check and the insert. The
		// server objects from this call must not survive, so undo them
		// and report the collision to the loser.
		p.logger.Info("duplicate-after-create", lager.Data{tenantLogKey: tenant.ID, dbNameLogKey: details.DatabaseName})
		dropCtx, dropCancel := context.WithTimeout(ctx, p.execTimeout)
		defer dropCancel()
		if dropErr := p.executor.DropDatabaseAndUser(dropCtx, details.DatabaseName, details.DatabaseUser); dropErr != nil {
			p.logger.Error("orphaned-grant", dropErr, lager.Data{tenantLogKey: tenant.ID, dbNameLogKey: details.DatabaseName})
			metrics.OrphanedGrantsTotal.Inc()
		}
		metrics.ProvisionTotal.WithLabelValues("error").Inc()
		return result, err
	}
	if err != nil {
		// The database exists and works; favour the tenant and flag the
		// drift instead of failing the whole operation.
		p.logger.Error("orphaned-grant", err, lager.Data{tenantLogKey: tenant.ID, dbNameLogKey: details.DatabaseName})
		metrics.OrphanedGrantsTotal.Inc()
		metrics.ProvisionTotal.WithLabelValues("orphaned").Inc()
		result = CreateResult{
			GrantInfo: GrantInfo{
				DatabaseName:     details.DatabaseName,
				DatabaseUser:     details.DatabaseUser,
				DatabasePassword: details.DatabasePassword,
				Host:             details.Host,
				Port:             details.Port,
			},
			Orphaned: true,
		}
		return result, nil
	}

	metrics.ProvisionTotal.WithLabelValues("success").Inc()
	result = CreateResult{
		GrantInfo: GrantInfo{
			ID:               grant.GrantID,
			DatabaseName:     grant.DatabaseName,
			DatabaseUser:     grant.DatabaseUser,
			DatabasePassword: details.DatabasePassword,
			Host:             grant.Host,
			Port:             grant.Port,
			CreatedAt:        grant.CreatedAt,
		},
	}
	return result, nil
}

// List is a pure read-through to the catalog, newest first.
func (p *Provisioner) List(ctx context.Context, tenant identity.TenantIdentity) ([]GrantInfo, error) {
	p.logger.Debug("list", lager.Data{tenantLogKey: tenant.ID})

	grants, err := p.catalog.ListByOwner(tenant.ID)
	if err != nil {
		return nil, err
	}

	infos := make([]GrantInfo, 0, len(grants))
	for _, grant := range grants {
		password, err := grant.Password(p.encryptionKey)
		if err != nil {
			p.logger.Error("decrypt-password", err, lager.Data{grantLogKey: grant.GrantID})
			return nil, err
		}
		infos = append(infos, GrantInfo{
			ID:               grant.GrantID,
			DatabaseName:     grant.DatabaseName,
			DatabaseUser:     grant.DatabaseUser,
			DatabasePassword: password,
			Host:             grant.Host,
			Port:             grant.Port,
			CreatedAt:        grant.CreatedAt,
		})
	}
	return infos, nil
}

// Delete authorizes against the catalog, drops the server-side objects
// and then removes the row. The row is deliberately left intact when the
// drop fails so the tenant can retry; a row already flagged for
// reconciliation skips the server drop.
func (p *Provisioner) Delete(ctx context.Context, tenant identity.TenantIdentity, grantID string) error {
	p.logger.Debug("delete", lager.Data{tenantLogKey: tenant.ID, grantLogKey: grantID})

	grant, err := p.catalog.FindByIDAndOwner(grantID, tenant.ID)
	if err != nil {
		return err
	}

	if !grant.Reconcile {
		execCtx, cancel := context.WithTimeout(ctx, p.execTimeout)
		defer cancel()
		if err := p.executor.DropDatabaseAndUser(execCtx, grant.DatabaseName, grant.DatabaseUser); err != nil {
			metrics.DeprovisionTotal.WithLabelValues("error").Inc()
			return err
		}
	}

	if err := p.catalog.Remove(grant.GrantID); err != nil {
		if markErr := p.catalog.MarkForReconcile(grant.GrantID); markErr != nil {
			p.logger.Error("mark-for-reconcile", markErr, lager.Data{grantLogKey: grant.GrantID})
		}
		p.logger.Error("zombie-grant", err, lager.Data{grantLogKey: grant.GrantID, dbNameLogKey: grant.DatabaseName})
		metrics.ZombieGrantsTotal.Inc()
		metrics.DeprovisionTotal.WithLabelValues("partial").Inc()
		return &PartialSuccessError{Detail: "database dropped but catalog record remains", Cause: err}
	}

	metrics.DeprovisionTotal.WithLabelValues("success").Inc()
	return nil
}
