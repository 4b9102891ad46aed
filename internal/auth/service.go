package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	store authz.Store
}

// NewService constructs a new Service.
func NewService(repo Repository, store authz.Store) *Service {
	return &Service{repo: repo, store: store}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// LoadPrincipal resolves a session user ID into a principal carrying the
// user's global role and tenant role assignments.
func (s *Service) LoadPrincipal(ctx context.Context, userID string) (*authz.Principal, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth: malformed user id %q: %w", userID, err)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrNotFound
	}
	assignments, err := s.store.ListAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &authz.Principal{
		ID:              user.ID,
		Email:           user.Email,
		GlobalRole:      user.GlobalRole,
		ActiveSocieteID: user.ActiveSocieteID,
		Assignments:     assignments,
	}, nil
}
