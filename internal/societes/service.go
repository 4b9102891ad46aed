package societes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

// Invalidator drops cached permission query results for a societe. Satisfied
// by the authz service.
type Invalidator interface {
	Invalidate(ctx context.Context, societeID string) error
}

// Service carries the administrative operations of the tenant registry.
// Every assignment mutation invalidates the societe's permission cache and
// emits an audit event.
type Service struct {
	repo        Repository
	invalidator Invalidator
	sink        authz.AuditSink
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the registry service.
func NewService(repo Repository, invalidator Invalidator, sink authz.AuditSink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = authz.NopSink{}
	}
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		sink:        sink,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateSociete registers a new tenant.
func (s *Service) CreateSociete(ctx context.Context, societe Societe) error {
	societe.IsActive = true
	return s.repo.CreateSociete(ctx, societe)
}

// GetSociete fetches one societe.
func (s *Service) GetSociete(ctx context.Context, id string) (*Societe, error) {
	return s.repo.GetSociete(ctx, id)
}

// ListSocietes returns all registered societes.
func (s *Service) ListSocietes(ctx context.Context) ([]Societe, error) {
	return s.repo.ListSocietes(ctx)
}

// CreateSite registers a site under an existing societe.
func (s *Service) CreateSite(ctx context.Context, site Site) error {
	if _, err := s.repo.GetSociete(ctx, site.SocieteID); err != nil {
		return err
	}
	site.IsActive = true
	return s.repo.CreateSite(ctx, site)
}

// ListSites returns the sites of a societe.
func (s *Service) ListSites(ctx context.Context, societeID string) ([]Site, error) {
	return s.repo.ListSites(ctx, societeID)
}

// AssignRole creates or replaces a principal's role assignment within a
// societe, then drops the societe's cached query results.
func (s *Service) AssignRole(ctx context.Context, actor *authz.Principal, change AssignmentChange) error {
	if !change.Role.Valid() {
		return fmt.Errorf("%w: unknown tenant role %q", authz.ErrInvalidRoleComparison, change.Role)
	}
	if _, err := s.repo.GetSociete(ctx, change.SocieteID); err != nil {
		return err
	}
	if err := s.repo.UpsertAssignment(ctx, change); err != nil {
		return err
	}
	s.invalidate(ctx, change.SocieteID)
	s.audit(ctx, actor, change.SocieteID, "assignment.upsert",
		fmt.Sprintf("principal %d assigned role %s", change.PrincipalID, change.Role))
	return nil
}

// RevokeRole deactivates a principal's assignment within a societe.
func (s *Service) RevokeRole(ctx context.Context, actor *authz.Principal, principalID int64, societeID string) error {
	if err := s.repo.DeactivateAssignment(ctx, principalID, societeID); err != nil {
		return err
	}
	s.invalidate(ctx, societeID)
	s.audit(ctx, actor, societeID, "assignment.revoke",
		fmt.Sprintf("principal %d revoked", principalID))
	return nil
}

// ExpireAssignments sweeps assignments past their expiry and invalidates the
// caches of every societe touched. Returns the number of societes affected.
func (s *Service) ExpireAssignments(ctx context.Context) (int, error) {
	societes, err := s.repo.ExpireAssignments(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, societeID := range societes {
		s.invalidate(ctx, societeID)
		s.audit(ctx, nil, societeID, "assignment.expired", "expiry sweep deactivated assignments")
	}
	return len(societes), nil
}

func (s *Service) invalidate(ctx context.Context, societeID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, societeID); err != nil && s.logger != nil {
		s.logger.Warn("cache invalidation failed",
			slog.String("societe_id", societeID),
			slog.Any("error", err))
	}
}

func (s *Service) audit(ctx context.Context, actor *authz.Principal, societeID, route, reason string) {
	var actorID int64
	if actor != nil {
		actorID = actor.ID
	}
	s.sink.Record(ctx, authz.AuditEvent{
		PrincipalID: actorID,
		SocieteID:   societeID,
		Route:       route,
		Outcome:     "applied",
		Reason:      reason,
		Timestamp:   s.now().UTC(),
	})
}
