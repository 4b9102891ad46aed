package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SearchTarget selects the universe a permission query runs over.
type SearchTarget string

// Query universes.
const (
	// TargetCatalog searches the process-wide permission catalog.
	TargetCatalog SearchTarget = "catalog"
	// TargetEffective searches one principal's effective permissions.
	TargetEffective SearchTarget = "effective"
)

// SearchRequest bundles a query with its universe selection.
type SearchRequest struct {
	Target      SearchTarget
	SocieteID   string
	PrincipalID int64
	Query       Query
}

// Service orchestrates the permission query engine: condition evaluation,
// query composition, hierarchy resolution and result caching. The catalog
// and baseline tables are loaded once at startup and shared read-only.
type Service struct {
	store    Store
	catalog  *Catalog
	baseline RoleBaseline
	cache    *QueryCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the permission service.
func NewService(store Store, catalog *Catalog, baseline RoleBaseline, cache *QueryCache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewQueryCache(nil, "", 0)
	}
	return &Service{
		store:    store,
		catalog:  catalog,
		baseline: baseline,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Catalog exposes the immutable permission catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Baseline exposes the immutable role grant table.
func (s *Service) Baseline() RoleBaseline {
	return s.baseline
}

// Search executes a permission query, serving from cache when possible.
// Malformed queries fail before any persistence access.
func (s *Service) Search(ctx context.Context, req SearchRequest) (QueryResult, error) {
	if err := req.Query.Validate(); err != nil {
		return QueryResult{}, err
	}
	if req.Target == "" {
		req.Target = TargetCatalog
	}

	scope := string(req.Target)
	if req.Target == TargetEffective {
		scope = fmt.Sprintf("%s:%d", req.Target, req.PrincipalID)
	}
	key := s.cache.Key(req.SocieteID, scope, req.Query)

	if !req.Query.SkipCache {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.warn("cache get", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	resolver, err := s.resolverFor(ctx, req)
	if err != nil {
		return QueryResult{}, err
	}
	result, err := Execute(ctx, req.Query, resolver)
	if err != nil {
		return QueryResult{}, err
	}

	if !req.Query.SkipCache {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.warn("cache set", err)
		}
	}
	return result, nil
}

func (s *Service) resolverFor(ctx context.Context, req SearchRequest) (ConditionResolver, error) {
	switch req.Target {
	case TargetCatalog:
		return NewCatalogResolver(s.catalog), nil
	case TargetEffective:
		assignments, err := s.store.ListAssignments(ctx, req.PrincipalID)
		if err != nil {
			return nil, err
		}
		principal := &Principal{
			ID:              req.PrincipalID,
			ActiveSocieteID: req.SocieteID,
			Assignments:     assignments,
		}
		return NewEffectiveResolver(ResolveEffective(principal, s.baseline, s.now())), nil
	default:
		return nil, fmt.Errorf("%w: unknown search target %q", ErrInvalidCondition, req.Target)
	}
}

// Hierarchy groups the catalog by resource for admin navigation.
func (s *Service) Hierarchy(rootPrefix string) []ResourceNode {
	return BuildHierarchy(s.catalog, rootPrefix)
}

// FindByPattern scans the catalog with a string-relationship operator.
func (s *Service) FindByPattern(pattern string, op Operator) ([]PermissionCode, error) {
	return FindByPattern(s.catalog, pattern, op)
}

// Conflicts surfaces grant/denial pairs for a principal within a societe.
func (s *Service) Conflicts(ctx context.Context, principalID int64, societeID string) ([]Conflict, error) {
	assignment, err := s.store.GetTenantRoleAssignment(ctx, principalID, societeID)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(assignment, s.baseline), nil
}

// Invalidate drops cached query results for a societe. Callers performing
// writes to assignments or the catalog must invoke this.
func (s *Service) Invalidate(ctx context.Context, societeID string) error {
	return s.cache.InvalidateSociete(ctx, societeID)
}

func (s *Service) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}
