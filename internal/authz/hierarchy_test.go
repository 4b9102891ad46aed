package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHierarchyGroupsByResource(t *testing.T) {
	catalog, err := NewCatalog([]string{
		"inventory:read", "inventory:write", "inventory:adjust",
		"sales:read", "transfers:write",
	})
	require.NoError(t, err)

	nodes := BuildHierarchy(catalog, "")
	require.Len(t, nodes, 3)
	assert.Equal(t, "inventory", nodes[0].Resource)
	assert.Equal(t, "Inventory", nodes[0].Label)
	assert.Equal(t, 3, nodes[0].Count)
	assert.Equal(t, []string{"read", "write", "adjust"}, nodes[0].Actions)
	assert.Equal(t, "sales", nodes[1].Resource)
	assert.Equal(t, "transfers", nodes[2].Resource)
}

func TestBuildHierarchyRootPrefix(t *testing.T) {
	catalog, err := NewCatalog([]string{"inventory:read", "invoices:read", "sales:read"})
	require.NoError(t, err)

	nodes := BuildHierarchy(catalog, "inv")
	require.Len(t, nodes, 2)
	assert.Equal(t, "inventory", nodes[0].Resource)
	assert.Equal(t, "invoices", nodes[1].Resource)
}

func TestFindByPatternPreservesCatalogOrder(t *testing.T) {
	catalog, err := NewCatalog([]string{"inventory:read", "inventory:write", "sales:read"})
	require.NoError(t, err)

	codes, err := FindByPattern(catalog, "inventory:", OpStartsWith)
	require.NoError(t, err)
	got := make([]string, len(codes))
	for i, c := range codes {
		got[i] = c.String()
	}
	assert.Equal(t, []string{"inventory:read", "inventory:write"}, got)
}

func TestFindByPatternEmptyResultIsNotAnError(t *testing.T) {
	catalog, err := NewCatalog([]string{"sales:read"})
	require.NoError(t, err)

	codes, err := FindByPattern(catalog, "inventory:", OpStartsWith)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestFindByPatternRejectsMembershipOperators(t *testing.T) {
	catalog, err := NewCatalog([]string{"sales:read"})
	require.NoError(t, err)

	_, err = FindByPattern(catalog, "sales", OpHasAny)
	require.ErrorIs(t, err, ErrInvalidCondition)
	_, err = FindByPattern(catalog, "", OpContains)
	require.ErrorIs(t, err, ErrInvalidCondition)
}

func TestDetectConflictsOrderedByResourceThenAction(t *testing.T) {
	baseline := DefaultRoleBaseline()
	assignment := &TenantRoleAssignment{
		PrincipalID:           9,
		SocieteID:             "acier-nord",
		Role:                  TenantManager,
		IsActive:              true,
		AdditionalPermissions: []string{"payments:write"},
		RestrictedPermissions: []string{"transfers:write", "inventory:write", "payments:write", "inventory:read"},
	}
	conflicts := DetectConflicts(assignment, baseline)
	require.Len(t, conflicts, 4)

	got := make([]string, len(conflicts))
	for i, c := range conflicts {
		got[i] = c.Code.String()
	}
	assert.Equal(t, []string{"inventory:read", "inventory:write", "payments:write", "transfers:write"}, got)
	assert.Equal(t, "additional grant", conflicts[2].GrantingSource)
	assert.Equal(t, "role:MANAGER baseline", conflicts[1].GrantingSource)
	assert.Equal(t, "explicit restriction", conflicts[0].DenyingSource)
}

func TestDetectConflictsNoneWithoutRestrictions(t *testing.T) {
	assignment := &TenantRoleAssignment{Role: TenantOwner, IsActive: true}
	assert.Empty(t, DetectConflicts(assignment, DefaultRoleBaseline()))
}
