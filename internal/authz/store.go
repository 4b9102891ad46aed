package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// Store is the persistence collaborator for role and permission assignments.
// Implementations must honour the request context so guard stages stay
// fail-closed on timeout.
type Store interface {
	GetTenantRoleAssignment(ctx context.Context, principalID int64, societeID string) (*TenantRoleAssignment, error)
	ListAssignments(ctx context.Context, principalID int64) ([]TenantRoleAssignment, error)
	ListPermissionCatalog(ctx context.Context) ([]string, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const assignmentColumns = `principal_id, societe_id, role_type, is_active, is_default_societe, additional_permissions, restricted_permissions, expires_at`

// GetTenantRoleAssignment fetches the active assignment for one societe.
// Returns ErrPrincipalNotFound when the pair has no assignment at all.
func (s *PGStore) GetTenantRoleAssignment(ctx context.Context, principalID int64, societeID string) (*TenantRoleAssignment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM tenant_role_assignments WHERE principal_id = $1 AND societe_id = $2 AND is_active = TRUE`, principalID, societeID)
	assignment, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("authz: get assignment: %w", err)
	}
	return assignment, nil
}

// ListAssignments returns every assignment for a principal, active first.
func (s *PGStore) ListAssignments(ctx context.Context, principalID int64) ([]TenantRoleAssignment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+assignmentColumns+` FROM tenant_role_assignments WHERE principal_id = $1 ORDER BY is_active DESC, societe_id`, principalID)
	if err != nil {
		return nil, fmt.Errorf("authz: list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []TenantRoleAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("authz: scan assignment: %w", err)
		}
		assignments = append(assignments, *assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: list assignments: %w", err)
	}
	return assignments, nil
}

// ListPermissionCatalog returns every registered permission code in
// registration order.
func (s *PGStore) ListPermissionCatalog(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT code FROM permission_catalog ORDER BY position, code`)
	if err != nil {
		return nil, fmt.Errorf("authz: list catalog: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("authz: scan catalog: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: list catalog: %w", err)
	}
	return codes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*TenantRoleAssignment, error) {
	var (
		a         TenantRoleAssignment
		roleType  string
		expiresAt pgtype.Timestamptz
	)
	if err := row.Scan(&a.PrincipalID, &a.SocieteID, &roleType, &a.IsActive, &a.IsDefaultSociete, &a.AdditionalPermissions, &a.RestrictedPermissions, &expiresAt); err != nil {
		return nil, err
	}
	a.Role = TenantRole(roleType)
	if expiresAt.Valid {
		t := expiresAt.Time
		a.ExpiresAt = &t
	}
	return &a, nil
}

var _ Store = (*PGStore)(nil)

// SharedStore deduplicates concurrent reads for the same principal across
// in-flight requests. Authorization is read-mostly, so collapsing identical
// fetches keeps the pool quiet under bursts.
type SharedStore struct {
	inner Store
	group singleflight.Group
}

// NewSharedStore wraps a store with request coalescing.
func NewSharedStore(inner Store) *SharedStore {
	return &SharedStore{inner: inner}
}

// GetTenantRoleAssignment coalesces identical in-flight lookups.
func (s *SharedStore) GetTenantRoleAssignment(ctx context.Context, principalID int64, societeID string) (*TenantRoleAssignment, error) {
	key := fmt.Sprintf("assignment:%d:%s", principalID, societeID)
	v, err, _ := s.do(ctx, key, func() (any, error) {
		return s.inner.GetTenantRoleAssignment(ctx, principalID, societeID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TenantRoleAssignment), nil
}

// ListAssignments coalesces identical in-flight lookups.
func (s *SharedStore) ListAssignments(ctx context.Context, principalID int64) ([]TenantRoleAssignment, error) {
	key := fmt.Sprintf("assignments:%d", principalID)
	v, err, _ := s.do(ctx, key, func() (any, error) {
		return s.inner.ListAssignments(ctx, principalID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]TenantRoleAssignment), nil
}

// ListPermissionCatalog coalesces identical in-flight lookups.
func (s *SharedStore) ListPermissionCatalog(ctx context.Context) ([]string, error) {
	v, err, _ := s.do(ctx, "catalog", func() (any, error) {
		return s.inner.ListPermissionCatalog(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *SharedStore) do(ctx context.Context, key string, fn func() (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, fn)
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

var _ Store = (*SharedStore)(nil)

// LoadCatalog fetches the permission catalog once at startup. The returned
// catalog is immutable for the process lifetime.
func LoadCatalog(ctx context.Context, store Store, timeout time.Duration) (*Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	codes, err := store.ListPermissionCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(codes)
}
