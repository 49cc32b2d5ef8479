package internaldb

import (
	"errors"
	"strings"

	"code.cloudfoundry.org/lager"
	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
)

// ErrDuplicate reports a databaseName or databaseUser already present in
// the catalog.
var ErrDuplicate = errors.New("grant already exists in catalog")

// ErrNotFound covers both a missing grant and a grant owned by a
// different tenant, so listings can't be probed across tenants.
var ErrNotFound = errors.New("grant not found")

// Catalog is the durable record of tenant->database grants and the only
// authority consulted when listing or authorizing deletes.
type Catalog struct {
	db     *gorm.DB
	logger lager.Logger
}

func NewCatalog(db *gorm.DB, logger lager.Logger) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger.Session("catalog"),
	}
}

func (c *Catalog) Insert(grant *DatabaseGrant) error {
	err := c.db.Create(grant).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		c.logger.Error("insert", err, lager.Data{"grant-id": grant.GrantID})
		return err
	}
	return nil
}

// ListByOwner returns the owner's grants newest-created first. Always a
// fresh read; the catalog is the source of truth, not a cache.
func (c *Catalog) ListByOwner(ownerID string) ([]DatabaseGrant, error) {
	var grants []DatabaseGrant
	err := c.db.Where("owner_id = ?", ownerID).Order("created_at desc, id desc").Find(&grants).Error
	if err != nil {
		c.logger.Error("list-by-owner", err)
		return nil, err
	}
	return grants, nil
}

// FindByIDAndOwner fails closed: a grant belonging to someone else looks
// exactly like a grant that doesn't exist. Conditions are explicit
// strings because gorm drops zero-valued struct fields, which would
// turn an empty ownerID into no owner filter at all.
func (c *Catalog) FindByIDAndOwner(grantID, ownerID string) (*DatabaseGrant, error) {
	var grant DatabaseGrant
	err := c.db.Where("grant_id = ? AND owner_id = ?", grantID, ownerID).First(&grant).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		c.logger.Error("find-by-id-and-owner", err)
		return nil, err
	}
	return &grant, nil
}

// ExistsName reports whether any grant already claims the database name.
// Used as a pre-check before server contact; there's a potential race
// here but the unique index catches the loser on Insert.
func (c *Catalog) ExistsName(name string) (bool, error) {
	var grant DatabaseGrant
	err := c.db.Where("database_name = ?", name).First(&grant).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return false, nil
		}
		c.logger.Error("exists-name", err)
		return false, err
	}
	return true, nil
}

func (c *Catalog) Remove(grantID string) error {
	result := c.db.Where("grant_id = ?", grantID).Delete(&DatabaseGrant{})
	if result.Error != nil {
		c.logger.Error("remove", result.Error, lager.Data{"grant-id": grantID})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkForReconcile flags a row whose server artifacts are already gone.
func (c *Catalog) MarkForReconcile(grantID string) error {
	result := c.db.Model(&DatabaseGrant{}).Where("grant_id = ?", grantID).Update("reconcile", true)
	if result.Error != nil {
		c.logger.Error("mark-for-reconcile", result.Error, lager.Data{"grant-id": grantID})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
