package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]string{
		"inventory:read", "inventory:write",
		"sales:read", "sales:write",
		"payments:read", "transfers:write",
	})
	require.NoError(t, err)
	return catalog
}

func keys(items []Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Key
	}
	return out
}

func TestExecuteEmptyQuery(t *testing.T) {
	_, err := Execute(context.Background(), Query{}, NewCatalogResolver(testCatalog(t)))
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestExecuteMustIntersects(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	result, err := Execute(context.Background(), Query{
		Must: []Condition{
			{Operator: OpStartsWith, Pattern: "inventory:"},
			{Operator: OpEndsWith, Pattern: ":write"},
		},
	}, resolver)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory:write"}, keys(result.Items))
	assert.Equal(t, 1, result.Total)
}

func TestExecuteShouldAppendsDeduplicated(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	result, err := Execute(context.Background(), Query{
		Must: []Condition{{Operator: OpStartsWith, Pattern: "inventory:"}},
		Should: []Condition{
			{Operator: OpHas, Permissions: []string{"inventory:read"}}, // already matched
			{Operator: OpHas, Permissions: []string{"payments:read"}},
		},
	}, resolver)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory:read", "inventory:write", "payments:read"}, keys(result.Items))
}

func TestExecuteMustNotAlwaysWins(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	result, err := Execute(context.Background(), Query{
		Must:    []Condition{{Operator: OpContains, Pattern: ":"}},
		MustNot: []Condition{{Operator: OpEndsWith, Pattern: ":write"}},
	}, resolver)
	require.NoError(t, err)
	for _, key := range keys(result.Items) {
		assert.NotContains(t, key, ":write")
	}
	assert.Equal(t, 3, result.Total)
}

func TestExecuteIsIdempotent(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	query := Query{
		Must:      []Condition{{Operator: OpContains, Pattern: ":"}},
		Should:    []Condition{{Operator: OpHas, Permissions: []string{"sales:read"}}},
		SortBy:    "action",
		SortOrder: "desc",
	}
	first, err := Execute(context.Background(), query, resolver)
	require.NoError(t, err)
	second, err := Execute(context.Background(), query, resolver)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecuteSortStableWithKeyTieBreak(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	result, err := Execute(context.Background(), Query{
		Must:      []Condition{{Operator: OpContains, Pattern: ":"}},
		SortBy:    "action",
		SortOrder: "asc",
	}, resolver)
	require.NoError(t, err)
	// "read" group first, each group ordered by identity key ascending.
	assert.Equal(t, []string{
		"inventory:read", "payments:read", "sales:read",
		"inventory:write", "sales:write", "transfers:write",
	}, keys(result.Items))
}

func TestExecutePagination(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	result, err := Execute(context.Background(), Query{
		Must:   []Condition{{Operator: OpContains, Pattern: ":"}},
		Limit:  2,
		Offset: 4,
	}, resolver)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Total, "total must reflect pre-pagination size")
	assert.Len(t, result.Items, 2)

	// Offset beyond the result set yields an empty page, not an error.
	result, err = Execute(context.Background(), Query{
		Must:   []Condition{{Operator: OpContains, Pattern: ":"}},
		Offset: 50,
	}, resolver)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 6, result.Total)
}

func TestExecuteRejectsNegativeBounds(t *testing.T) {
	resolver := NewCatalogResolver(testCatalog(t))
	_, err := Execute(context.Background(), Query{
		Must:  []Condition{{Operator: OpContains, Pattern: ":"}},
		Limit: -1,
	}, resolver)
	require.ErrorIs(t, err, ErrInvalidCondition)
}

func TestExecuteScopedMustNotAgainstPrincipal(t *testing.T) {
	// Principal holds inventory:write only within societe tenant-x. A query
	// requiring it but excluding the tenant-x grant must come back empty.
	eff := EffectiveSet{
		Active: NewPermissionSet("inventory:write"),
		BySociete: map[string]PermissionSet{
			"tenant-x": NewPermissionSet("inventory:write"),
		},
	}
	resolver := NewEffectiveResolver(eff)
	result, err := Execute(context.Background(), Query{
		Must:    []Condition{{Operator: OpHas, Permissions: []string{"inventory:write"}}},
		MustNot: []Condition{{Operator: OpHas, Permissions: []string{"inventory:write"}, SocieteID: "tenant-x"}},
	}, resolver)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 0, result.Total)
}

type failingResolver struct{ err error }

func (r failingResolver) Resolve(context.Context, Condition) ([]Candidate, error) {
	return nil, r.err
}

func TestExecutePropagatesResolverErrors(t *testing.T) {
	wantErr := errors.New("store unavailable")
	_, err := Execute(context.Background(), Query{
		Must: []Condition{{Operator: OpContains, Pattern: ":"}},
	}, failingResolver{err: wantErr})
	require.ErrorIs(t, err, wantErr)
}
