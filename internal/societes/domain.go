// Package societes manages the tenant registry: societes, their sites and
// the role assignments binding principals to them.
package societes

import (
	"errors"
	"time"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

// Societe is a tenant: one legal entity operating on the platform.
type Societe struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Site is a physical location belonging to a societe, e.g. a plant or depot.
type Site struct {
	ID        string    `json:"id"`
	SocieteID string    `json:"societeId"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// AssignmentChange captures an administrative mutation of a role assignment.
type AssignmentChange struct {
	PrincipalID           int64            `json:"principalId"`
	SocieteID             string           `json:"societeId"`
	Role                  authz.TenantRole `json:"role"`
	IsDefaultSociete      bool             `json:"isDefaultSociete"`
	AdditionalPermissions []string         `json:"additionalPermissions"`
	RestrictedPermissions []string         `json:"restrictedPermissions"`
	ExpiresAt             *time.Time       `json:"expiresAt"`
}

var (
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("societes: duplicate entry")
	// ErrNotFound indicates a missing societe or site.
	ErrNotFound = errors.New("societes: not found")
)
