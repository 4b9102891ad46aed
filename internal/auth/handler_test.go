package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/shared"
)

type stubRepo struct {
	user            *User
	createdSessions []string
	deletedSessions []string
}

func (r *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if r.user != nil && r.user.Email == email {
		return r.user, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) FindByID(_ context.Context, id int64) (*User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) CreateSession(_ context.Context, id string, _ int64, _ time.Time, _, _ string) error {
	r.createdSessions = append(r.createdSessions, id)
	return nil
}

func (r *stubRepo) DeleteSession(_ context.Context, id string) error {
	r.deletedSessions = append(r.deletedSessions, id)
	return nil
}

type stubAssignmentStore struct {
	assignments []authz.TenantRoleAssignment
}

func (s *stubAssignmentStore) GetTenantRoleAssignment(_ context.Context, principalID int64, societeID string) (*authz.TenantRoleAssignment, error) {
	for i := range s.assignments {
		a := s.assignments[i]
		if a.PrincipalID == principalID && a.SocieteID == societeID {
			return &a, nil
		}
	}
	return nil, authz.ErrPrincipalNotFound
}

func (s *stubAssignmentStore) ListAssignments(_ context.Context, principalID int64) ([]authz.TenantRoleAssignment, error) {
	var out []authz.TenantRoleAssignment
	for _, a := range s.assignments {
		if a.PrincipalID == principalID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAssignmentStore) ListPermissionCatalog(_ context.Context) ([]string, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, repo *stubRepo) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "vulcan_session", "secret", time.Hour, false)
	service := NewService(repo, &stubAssignmentStore{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, service, sessions, shared.NewCSRFManager("csrf-secret")), sessions
}

func requestWithSession(t *testing.T, sessions *shared.SessionManager, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestLoginIssuesSession(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("forge-passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &User{
		ID:           7,
		Email:        "martin@acier-nord.example",
		PasswordHash: string(hash),
		GlobalRole:   authz.GlobalUser,
		IsActive:     true,
	}}
	handler, sessions := newTestHandler(t, repo)

	req := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"martin@acier-nord.example","password":"forge-passw0rd"}`)
	rec := httptest.NewRecorder()
	handler.login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"userId":7`)
	require.Len(t, repo.createdSessions, 1)

	sess := shared.SessionFromContext(req.Context())
	assert.Equal(t, "7", sess.User())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("forge-passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &User{
		ID:           7,
		Email:        "martin@acier-nord.example",
		PasswordHash: string(hash),
		IsActive:     true,
	}}
	handler, sessions := newTestHandler(t, repo)

	req := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"martin@acier-nord.example","password":"wrong-password"}`)
	rec := httptest.NewRecorder()
	handler.login(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.createdSessions)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("forge-passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &User{
		ID:           7,
		Email:        "martin@acier-nord.example",
		PasswordHash: string(hash),
		IsActive:     false,
	}}
	handler, sessions := newTestHandler(t, repo)

	req := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"martin@acier-nord.example","password":"forge-passw0rd"}`)
	rec := httptest.NewRecorder()
	handler.login(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	handler, sessions := newTestHandler(t, &stubRepo{})
	req := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"not-an-email","password":"short"}`)
	rec := httptest.NewRecorder()
	handler.login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRemovesSession(t *testing.T) {
	repo := &stubRepo{}
	handler, sessions := newTestHandler(t, repo)

	req := requestWithSession(t, sessions, http.MethodPost, "/auth/logout", "")
	rec := httptest.NewRecorder()
	handler.logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, repo.deletedSessions, 1)
}

func TestLoadPrincipalResolvesAssignments(t *testing.T) {
	repo := &stubRepo{user: &User{
		ID:              7,
		Email:           "martin@acier-nord.example",
		GlobalRole:      authz.GlobalManager,
		ActiveSocieteID: "acier-nord",
		IsActive:        true,
	}}
	store := &stubAssignmentStore{assignments: []authz.TenantRoleAssignment{
		{PrincipalID: 7, SocieteID: "acier-nord", Role: authz.TenantManager, IsActive: true},
		{PrincipalID: 9, SocieteID: "acier-sud", Role: authz.TenantOwner, IsActive: true},
	}}
	service := NewService(repo, store)

	principal, err := service.LoadPrincipal(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, authz.GlobalManager, principal.GlobalRole)
	assert.Equal(t, "acier-nord", principal.ActiveSocieteID)
	require.Len(t, principal.Assignments, 1)
	assert.Equal(t, authz.TenantManager, principal.Assignments[0].Role)
}

func TestLoadPrincipalRejectsMalformedID(t *testing.T) {
	service := NewService(&stubRepo{}, &stubAssignmentStore{})
	_, err := service.LoadPrincipal(context.Background(), "not-a-number")
	require.Error(t, err)
}
