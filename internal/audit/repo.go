package audit

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides persistence for audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert stores one entry.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_audit (principal_id, societe_id, route, outcome, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.PrincipalID, entry.SocieteID, entry.Route, entry.Outcome,
		optionalText(entry.Reason), toPgTime(entry.OccurredAt))
	return err
}

// Window returns entries newest-first within the filter bounds.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, principal_id, societe_id, route, outcome, COALESCE(reason, ''), occurred_at
		FROM access_audit
		WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		  AND ($2::timestamptz IS NULL OR occurred_at <= $2)
		  AND ($3::text IS NULL OR societe_id = $3)
		  AND ($4::bigint = 0 OR principal_id = $4)
		  AND ($5::text IS NULL OR outcome = $5)
		ORDER BY occurred_at DESC, id DESC
		OFFSET $6 LIMIT $7`,
		toPgTime(filters.From), toPgTime(filters.To),
		optionalText(filters.SocieteID), filters.PrincipalID,
		optionalText(filters.Outcome), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry      Entry
			occurredAt pgtype.Timestamptz
		)
		if err := rows.Scan(&entry.ID, &entry.PrincipalID, &entry.SocieteID,
			&entry.Route, &entry.Outcome, &entry.Reason, &occurredAt); err != nil {
			return nil, err
		}
		entry.OccurredAt = occurredAt.Time
		out = append(out, entry)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
