package internaldb

import (
	"time"

	"github.com/google/uuid"

	"github.com/dbaasd/dbaasd/identity"
	"github.com/dbaasd/dbaasd/utils"
)

// DatabaseGrant is the durable record of one issued database: who owns
// it and which server-side objects back it. A row exists iff the
// database and account exist on the backend server; the orchestrator
// upholds that, the catalog just stores it.
type DatabaseGrant struct {
	// Managed by gorm
	ID        uint64 `gorm:"primary_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// Managed by us
	GrantID           string `gorm:"unique_index"`
	OwnerID           string `gorm:"index"`
	OwnerUsername     string
	DatabaseName      string `gorm:"unique_index"`
	DatabaseUser      string `gorm:"unique_index"`
	EncryptedPassword []byte
	IV                []byte
	Host              string
	Port              int64
	// Set when the server-side objects are gone but the row could not be
	// removed. A delete retry skips the server drop for flagged rows.
	Reconcile bool
}

// Remember to Catalog.Insert() from the caller
func NewGrant(owner identity.TenantIdentity, dbname, dbuser, password, host string, port int64, key []byte) (*DatabaseGrant, error) {
	grant := DatabaseGrant{
		GrantID:       uuid.New().String(),
		OwnerID:       owner.ID,
		OwnerUsername: owner.Username,
		DatabaseName:  dbname,
		DatabaseUser:  dbuser,
		Host:          host,
		Port:          port,
	}
	if err := grant.SetPassword(password, key); err != nil {
		return &grant, err
	}
	return &grant, nil
}

func (g *DatabaseGrant) SetPassword(password string, key []byte) error {
	iv, err := utils.RandIV()
	if err != nil {
		return err
	}
	encrypted, err := utils.Encrypt(password, key, iv)
	if err != nil {
		return err
	}
	g.EncryptedPassword = encrypted
	g.IV = iv
	return nil
}

func (g *DatabaseGrant) Password(key []byte) (string, error) {
	return utils.Decrypt(g.EncryptedPassword, key, g.IV)
}
