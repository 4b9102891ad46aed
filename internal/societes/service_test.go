package societes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

type stubRepo struct {
	societes     map[string]Societe
	sites        []Site
	upserts      []AssignmentChange
	deactivated  []int64
	expireResult []string
	expireErr    error
}

func newStubRepo() *stubRepo {
	return &stubRepo{societes: map[string]Societe{
		"acier-nord": {ID: "acier-nord", Name: "Aciérie du Nord", IsActive: true},
	}}
}

func (r *stubRepo) CreateSociete(_ context.Context, societe Societe) error {
	if _, ok := r.societes[societe.ID]; ok {
		return ErrDuplicate
	}
	r.societes[societe.ID] = societe
	return nil
}

func (r *stubRepo) GetSociete(_ context.Context, id string) (*Societe, error) {
	societe, ok := r.societes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &societe, nil
}

func (r *stubRepo) ListSocietes(_ context.Context) ([]Societe, error) {
	out := make([]Societe, 0, len(r.societes))
	for _, societe := range r.societes {
		out = append(out, societe)
	}
	return out, nil
}

func (r *stubRepo) CreateSite(_ context.Context, site Site) error {
	r.sites = append(r.sites, site)
	return nil
}

func (r *stubRepo) ListSites(_ context.Context, societeID string) ([]Site, error) {
	var out []Site
	for _, site := range r.sites {
		if site.SocieteID == societeID {
			out = append(out, site)
		}
	}
	return out, nil
}

func (r *stubRepo) UpsertAssignment(_ context.Context, change AssignmentChange) error {
	r.upserts = append(r.upserts, change)
	return nil
}

func (r *stubRepo) DeactivateAssignment(_ context.Context, principalID int64, _ string) error {
	r.deactivated = append(r.deactivated, principalID)
	return nil
}

func (r *stubRepo) ExpireAssignments(_ context.Context, _ time.Time) ([]string, error) {
	return r.expireResult, r.expireErr
}

type recordingInvalidator struct {
	societes []string
}

func (i *recordingInvalidator) Invalidate(_ context.Context, societeID string) error {
	i.societes = append(i.societes, societeID)
	return nil
}

type memorySink struct {
	events []authz.AuditEvent
}

func (s *memorySink) Record(_ context.Context, event authz.AuditEvent) {
	s.events = append(s.events, event)
}

func TestAssignRoleInvalidatesCacheAndAudits(t *testing.T) {
	repo := newStubRepo()
	invalidator := &recordingInvalidator{}
	sink := &memorySink{}
	svc := NewService(repo, invalidator, sink, nil)

	actor := &authz.Principal{ID: 3, GlobalRole: authz.GlobalAdmin}
	err := svc.AssignRole(context.Background(), actor, AssignmentChange{
		PrincipalID:           7,
		SocieteID:             "acier-nord",
		Role:                  authz.TenantManager,
		AdditionalPermissions: []string{"payments:write"},
	})
	require.NoError(t, err)

	require.Len(t, repo.upserts, 1)
	assert.Equal(t, []string{"acier-nord"}, invalidator.societes)
	require.Len(t, sink.events, 1)
	assert.Equal(t, int64(3), sink.events[0].PrincipalID)
	assert.Equal(t, "assignment.upsert", sink.events[0].Route)
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &recordingInvalidator{}, nil, nil)

	err := svc.AssignRole(context.Background(), nil, AssignmentChange{
		PrincipalID: 7,
		SocieteID:   "acier-nord",
		Role:        authz.TenantRole("SUPERVISOR"),
	})
	require.ErrorIs(t, err, authz.ErrInvalidRoleComparison)
	assert.Empty(t, repo.upserts)
}

func TestAssignRoleRequiresExistingSociete(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &recordingInvalidator{}, nil, nil)

	err := svc.AssignRole(context.Background(), nil, AssignmentChange{
		PrincipalID: 7,
		SocieteID:   "fonderie-fantome",
		Role:        authz.TenantMember,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeRoleInvalidatesCache(t *testing.T) {
	repo := newStubRepo()
	invalidator := &recordingInvalidator{}
	svc := NewService(repo, invalidator, nil, nil)

	require.NoError(t, svc.RevokeRole(context.Background(), nil, 7, "acier-nord"))
	assert.Equal(t, []int64{7}, repo.deactivated)
	assert.Equal(t, []string{"acier-nord"}, invalidator.societes)
}

func TestExpireAssignmentsInvalidatesEachSociete(t *testing.T) {
	repo := newStubRepo()
	repo.expireResult = []string{"acier-nord", "acier-sud"}
	invalidator := &recordingInvalidator{}
	sink := &memorySink{}
	svc := NewService(repo, invalidator, sink, nil)

	count, err := svc.ExpireAssignments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"acier-nord", "acier-sud"}, invalidator.societes)
	assert.Len(t, sink.events, 2)
}

func TestCreateSiteRequiresSociete(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil, nil)

	err := svc.CreateSite(context.Background(), Site{ID: "fonderie-1", SocieteID: "inconnu"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.CreateSite(context.Background(), Site{ID: "fonderie-1", SocieteID: "acier-nord"}))
	sites, err := svc.ListSites(context.Background(), "acier-nord")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.True(t, sites[0].IsActive)
}
