package authz

import (
	"context"
	"fmt"
	"sort"
)

// DefaultQueryLimit caps result pages when the caller does not set one.
const DefaultQueryLimit = 100

// Candidate is one entity in the universe a query runs over, identified by a
// stable key (a resource:action code or a user id).
type Candidate struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Query combines condition groups with result shaping options.
type Query struct {
	Must      []Condition `json:"must,omitempty"`
	Should    []Condition `json:"should,omitempty"`
	MustNot   []Condition `json:"mustNot,omitempty"`
	SortBy    string      `json:"sortBy,omitempty"`
	SortOrder string      `json:"sortOrder,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
	SkipCache bool        `json:"skipCache,omitempty"`
}

// QueryResult carries the page of matched candidates plus the pre-pagination
// total.
type QueryResult struct {
	Items  []Candidate `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ConditionResolver maps one condition to the candidates it matches within
// the resolver's universe. Implementations must return candidates in a
// deterministic order for identical inputs.
type ConditionResolver interface {
	Resolve(ctx context.Context, cond Condition) ([]Candidate, error)
}

// Validate checks the query shape before any resolution happens.
func (q Query) Validate() error {
	if len(q.Must) == 0 && len(q.Should) == 0 && len(q.MustNot) == 0 {
		return ErrEmptyQuery
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 1", ErrInvalidCondition)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", ErrInvalidCondition)
	}
	for _, group := range [][]Condition{q.Must, q.Should, q.MustNot} {
		for _, cond := range group {
			if err := cond.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Execute runs the composed query against the resolver's universe.
//
// Must conditions intersect (logical AND), should conditions append anything
// not already matched (logical OR among themselves), mustNot conditions
// always win and remove candidates from the combined set. The final order is
// deterministic: stable sort on the requested field with identity-key
// ascending tie-breaks.
func Execute(ctx context.Context, q Query, resolver ConditionResolver) (QueryResult, error) {
	if err := q.Validate(); err != nil {
		return QueryResult{}, err
	}

	var combined []Candidate
	seen := make(map[string]struct{})

	if len(q.Must) > 0 {
		base, err := resolver.Resolve(ctx, q.Must[0])
		if err != nil {
			return QueryResult{}, err
		}
		for _, cond := range q.Must[1:] {
			matched, err := resolver.Resolve(ctx, cond)
			if err != nil {
				return QueryResult{}, err
			}
			keys := make(map[string]struct{}, len(matched))
			for _, c := range matched {
				keys[c.Key] = struct{}{}
			}
			filtered := base[:0]
			for _, c := range base {
				if _, ok := keys[c.Key]; ok {
					filtered = append(filtered, c)
				}
			}
			base = filtered
		}
		for _, c := range base {
			if _, dup := seen[c.Key]; dup {
				continue
			}
			seen[c.Key] = struct{}{}
			combined = append(combined, c)
		}
	}

	for _, cond := range q.Should {
		matched, err := resolver.Resolve(ctx, cond)
		if err != nil {
			return QueryResult{}, err
		}
		for _, c := range matched {
			if _, dup := seen[c.Key]; dup {
				continue
			}
			seen[c.Key] = struct{}{}
			combined = append(combined, c)
		}
	}

	if len(q.MustNot) > 0 {
		excluded := make(map[string]struct{})
		for _, cond := range q.MustNot {
			matched, err := resolver.Resolve(ctx, cond)
			if err != nil {
				return QueryResult{}, err
			}
			for _, c := range matched {
				excluded[c.Key] = struct{}{}
			}
		}
		kept := combined[:0]
		for _, c := range combined {
			if _, drop := excluded[c.Key]; !drop {
				kept = append(kept, c)
			}
		}
		combined = kept
	}

	sortCandidates(combined, q.SortBy, q.SortOrder)

	total := len(combined)
	limit := q.Limit
	if limit == 0 {
		limit = DefaultQueryLimit
	}
	offset := q.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]Candidate, end-offset)
	copy(page, combined[offset:end])

	return QueryResult{Items: page, Total: total, Limit: limit, Offset: offset}, nil
}

func sortCandidates(items []Candidate, sortBy, sortOrder string) {
	desc := sortOrder == "desc"
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if sortBy != "" {
			fa, fb := a.Fields[sortBy], b.Fields[sortBy]
			if fa != fb {
				if desc {
					return fa > fb
				}
				return fa < fb
			}
		}
		// Ties always break by identity key ascending for determinism.
		return a.Key < b.Key
	})
}

// CatalogResolver resolves conditions against the process-wide permission
// catalog. Scope qualifiers are ignored since the catalog is global.
type CatalogResolver struct {
	catalog *Catalog
}

// NewCatalogResolver wraps a catalog.
func NewCatalogResolver(catalog *Catalog) *CatalogResolver {
	return &CatalogResolver{catalog: catalog}
}

// Resolve returns matching catalog entries in registration order.
func (r *CatalogResolver) Resolve(_ context.Context, cond Condition) ([]Candidate, error) {
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	listed := NewPermissionSet(cond.Permissions...)
	var out []Candidate
	for _, code := range r.catalog.Codes() {
		full := code.String()
		if candidateMatches(full, cond, listed) {
			out = append(out, Candidate{
				Key:    full,
				Fields: map[string]string{"resource": code.Resource, "action": code.Action},
			})
		}
	}
	return out, nil
}

// EffectiveResolver resolves conditions against a principal's effective
// permissions; the universe for each condition is the set selected by its
// scope qualifiers.
type EffectiveResolver struct {
	eff EffectiveSet
}

// NewEffectiveResolver wraps a resolved effective set.
func NewEffectiveResolver(eff EffectiveSet) *EffectiveResolver {
	return &EffectiveResolver{eff: eff}
}

// Resolve returns matching held permissions in lexicographic order.
func (r *EffectiveResolver) Resolve(_ context.Context, cond Condition) ([]Candidate, error) {
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	codes := cond.scopedSet(r.eff).Codes()
	sort.Strings(codes)
	listed := NewPermissionSet(cond.Permissions...)
	var out []Candidate
	for _, full := range codes {
		if !candidateMatches(full, cond, listed) {
			continue
		}
		fields := map[string]string{}
		if code, err := ParsePermission(full); err == nil {
			fields["resource"] = code.Resource
			fields["action"] = code.Action
		}
		out = append(out, Candidate{Key: full, Fields: fields})
	}
	return out, nil
}

// candidateMatches applies a condition as a per-candidate predicate.
func candidateMatches(code string, cond Condition, listed PermissionSet) bool {
	switch cond.Operator {
	case OpHas, OpHasAll, OpHasAny:
		return listed.Has(code)
	case OpHasNone:
		return !listed.Has(code)
	default:
		return matchPattern(code, cond.Pattern, cond.Operator)
	}
}
