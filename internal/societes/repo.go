package societes

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/platform/db"
)

// Repository defines persistence operations for the tenant registry.
type Repository interface {
	CreateSociete(ctx context.Context, societe Societe) error
	GetSociete(ctx context.Context, id string) (*Societe, error)
	ListSocietes(ctx context.Context) ([]Societe, error)
	CreateSite(ctx context.Context, site Site) error
	ListSites(ctx context.Context, societeID string) ([]Site, error)
	UpsertAssignment(ctx context.Context, change AssignmentChange) error
	DeactivateAssignment(ctx context.Context, principalID int64, societeID string) error
	ExpireAssignments(ctx context.Context, now time.Time) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateSociete inserts a new societe.
func (r *PGRepository) CreateSociete(ctx context.Context, societe Societe) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO societes (id, name, is_active, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())`,
		societe.ID, societe.Name, societe.IsActive)
	return mapPGError(err)
}

// GetSociete fetches one societe by ID.
func (r *PGRepository) GetSociete(ctx context.Context, id string) (*Societe, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM societes WHERE id = $1`, id)
	var (
		societe   Societe
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&societe.ID, &societe.Name, &societe.IsActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	societe.CreatedAt = createdAt.Time
	societe.UpdatedAt = updatedAt.Time
	return &societe, nil
}

// ListSocietes returns all societes ordered by ID.
func (r *PGRepository) ListSocietes(ctx context.Context) ([]Societe, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM societes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Societe
	for rows.Next() {
		var (
			societe   Societe
			createdAt pgtype.Timestamptz
			updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&societe.ID, &societe.Name, &societe.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		societe.CreatedAt = createdAt.Time
		societe.UpdatedAt = updatedAt.Time
		out = append(out, societe)
	}
	return out, rows.Err()
}

// CreateSite inserts a new site under a societe.
func (r *PGRepository) CreateSite(ctx context.Context, site Site) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sites (id, societe_id, name, is_active, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		site.ID, site.SocieteID, site.Name, site.IsActive)
	return mapPGError(err)
}

// ListSites returns the sites of a societe ordered by ID.
func (r *PGRepository) ListSites(ctx context.Context, societeID string) ([]Site, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, societe_id, name, is_active, created_at FROM sites WHERE societe_id = $1 ORDER BY id`,
		societeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Site
	for rows.Next() {
		var (
			site      Site
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&site.ID, &site.SocieteID, &site.Name, &site.IsActive, &createdAt); err != nil {
			return nil, err
		}
		site.CreatedAt = createdAt.Time
		out = append(out, site)
	}
	return out, rows.Err()
}

// UpsertAssignment creates or replaces the role assignment of a principal
// within a societe. Marking an assignment as the default unsets the flag on
// the principal's other assignments in the same transaction: a principal has
// at most one default societe.
func (r *PGRepository) UpsertAssignment(ctx context.Context, change AssignmentChange) error {
	var expiresAt pgtype.Timestamptz
	if change.ExpiresAt != nil {
		expiresAt = pgtype.Timestamptz{Time: change.ExpiresAt.UTC(), Valid: true}
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if change.IsDefaultSociete {
			if _, err := tx.Exec(ctx,
				`UPDATE tenant_role_assignments SET is_default_societe = FALSE WHERE principal_id = $1 AND societe_id <> $2`,
				change.PrincipalID, change.SocieteID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO tenant_role_assignments
				(principal_id, societe_id, role_type, is_active, is_default_societe,
				 additional_permissions, restricted_permissions, expires_at)
			VALUES ($1, $2, $3, TRUE, $4, $5, $6, $7)
			ON CONFLICT (principal_id, societe_id) DO UPDATE SET
				role_type = EXCLUDED.role_type,
				is_active = TRUE,
				is_default_societe = EXCLUDED.is_default_societe,
				additional_permissions = EXCLUDED.additional_permissions,
				restricted_permissions = EXCLUDED.restricted_permissions,
				expires_at = EXCLUDED.expires_at`,
			change.PrincipalID, change.SocieteID, string(change.Role), change.IsDefaultSociete,
			change.AdditionalPermissions, change.RestrictedPermissions, expiresAt)
		return err
	})
	return mapPGError(err)
}

// DeactivateAssignment revokes a principal's role within a societe.
func (r *PGRepository) DeactivateAssignment(ctx context.Context, principalID int64, societeID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenant_role_assignments SET is_active = FALSE WHERE principal_id = $1 AND societe_id = $2`,
		principalID, societeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrPrincipalNotFound
	}
	return nil
}

// ExpireAssignments deactivates every assignment past its expiry and returns
// the distinct societes touched, so callers can invalidate their caches.
func (r *PGRepository) ExpireAssignments(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE tenant_role_assignments
		SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
		RETURNING societe_id`,
		pgtype.Timestamptz{Time: now.UTC(), Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []string
	for rows.Next() {
		var societeID string
		if err := rows.Scan(&societeID); err != nil {
			return nil, err
		}
		if _, ok := seen[societeID]; ok {
			continue
		}
		seen[societeID] = struct{}{}
		out = append(out, societeID)
	}
	return out, rows.Err()
}

func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
