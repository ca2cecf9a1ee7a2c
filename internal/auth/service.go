package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/licensehub/licensehub/internal/licensing"
	"github.com/licensehub/licensehub/internal/staff"
)

// Directory is the staff lookup the service needs.
type Directory interface {
	Authenticate(ctx context.Context, email, password string) (staff.Employee, error)
	Lookup(ctx context.Context, id uuid.UUID) (staff.Employee, error)
}

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	tokens    *TokenManager
	denylist  Denylist
	lookups   singleflight.Group
	logger    *slog.Logger
}

// NewService constructs a new Service.
func NewService(directory Directory, tokens *TokenManager, denylist Denylist, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{directory: directory, tokens: tokens, denylist: denylist, logger: logger}
}

// Login validates email/password credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (Token, staff.Employee, error) {
	employee, err := s.directory.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, staff.Employee{}, err
	}
	signed, claims, err := s.tokens.Issue(employee.ID, employee.Name)
	if err != nil {
		return Token{}, staff.Employee{}, err
	}
	s.logger.Info("staff login", slog.String("staff_id", employee.ID.String()))
	return Token{Token: signed, ExpiresAt: claims.ExpiresAt}, employee, nil
}

// Logout revokes the token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims Claims) error {
	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// Resolve turns a raw bearer token into the acting staff member. Invalid,
// expired or revoked tokens and unknown or locked accounts all yield
// licensing.ErrSessionExpired.
func (s *Service) Resolve(ctx context.Context, raw string) (licensing.Actor, Claims, error) {
	if raw == "" {
		return licensing.Actor{}, Claims{}, licensing.ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		s.logger.Debug("reject bearer token", slog.Any("error", err))
		return licensing.Actor{}, Claims{}, licensing.ErrSessionExpired
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		s.logger.Error("denylist lookup failed", slog.Any("error", err))
		return licensing.Actor{}, Claims{}, licensing.ErrInternal
	}
	if revoked {
		return licensing.Actor{}, Claims{}, licensing.ErrSessionExpired
	}

	// Concurrent callers share one lookup, so it must not die with the first caller's context.
	lookupCtx := context.WithoutCancel(ctx)
	result, err, _ := s.lookups.Do(claims.StaffID.String(), func() (any, error) {
		return s.directory.Lookup(lookupCtx, claims.StaffID)
	})
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return licensing.Actor{}, Claims{}, licensing.ErrSessionExpired
		}
		s.logger.Error("staff lookup failed", slog.Any("error", err))
		return licensing.Actor{}, Claims{}, licensing.ErrInternal
	}
	employee := result.(staff.Employee)
	if employee.Locked {
		return licensing.Actor{}, Claims{}, licensing.ErrSessionExpired
	}
	return licensing.Actor{ID: employee.ID, Name: employee.Name}, claims, nil
}
