package auth

import (
	"time"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

// User represents an authenticated user account.
type User struct {
	ID              int64
	Email           string
	PasswordHash    string
	GlobalRole      authz.GlobalRole
	ActiveSocieteID string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
