package credentials

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/dbaasd/dbaasd/identity"
	"github.com/dbaasd/dbaasd/utils"
)

const MaxNameLength = 100
const MaxPasswordLength = 100

// Must be <= 32 because mysql
const maxUsernameLength = 32

type InvalidNameError struct {
	Detail string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid database name: %s", e.Detail)
}

type InvalidPasswordError struct {
	Detail string
}

func (e *InvalidPasswordError) Error() string {
	return fmt.Sprintf("invalid database password: %s", e.Detail)
}

// Policy validates and derives database names and passwords. It is the
// last guard before server execution, so it re-checks what the routing
// layer is assumed to have checked already.
type Policy struct {
	Prefix string
}

func NewPolicy(prefix string) Policy {
	return Policy{Prefix: prefix}
}

// NormalizeName returns the requested name verbatim, or derives one from
// the tenant identity when no name was requested. The derivation is pure:
// the same tenant always gets the same candidate name, so a second
// no-name request collides at the catalog rather than silently forking.
func (p Policy) NormalizeName(requested string, tenant identity.TenantIdentity) string {
	if requested != "" {
		return requested
	}
	return fmt.Sprintf("%s%s_%s_db", p.Prefix, tenant.Username, tenant.ID)
}

func (p Policy) ValidateName(name string) error {
	if name == "" {
		return &InvalidNameError{Detail: "name must not be empty"}
	}
	if len(name) > MaxNameLength {
		return &InvalidNameError{Detail: fmt.Sprintf("name must be at most %d characters", MaxNameLength)}
	}
	if containsSpace(name) {
		return &InvalidNameError{Detail: "name must not contain whitespace"}
	}
	if !utils.IsSimpleIdentifier(name) {
		return &InvalidNameError{Detail: "name must begin with a letter and contain only alphanumeric characters and underscores"}
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return &InvalidPasswordError{Detail: "password must not be empty"}
	}
	if len(password) > MaxPasswordLength {
		return &InvalidPasswordError{Detail: fmt.Sprintf("password must be at most %d characters", MaxPasswordLength)}
	}
	if containsSpace(password) {
		return &InvalidPasswordError{Detail: "password must not contain whitespace"}
	}
	return nil
}

// DBUsername derives the server account name for a database. The
// derivation is deterministic so a retried create converges on the same
// account, and includes the tenant id so similarly named databases from
// different tenants never share an account name. Anything over the mysql
// username limit is compacted with a hash suffix.
func DBUsername(name, tenantID string) string {
	username := fmt.Sprintf("u%s_%s", strings.Replace(tenantID, "-", "_", -1), name)
	if len(username) <= maxUsernameLength {
		return username
	}
	sum := md5.Sum([]byte(username))
	return username[:maxUsernameLength-17] + "_" + hex.EncodeToString(sum[:8])
}

func containsSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}
