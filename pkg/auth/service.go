package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	minLoginPasswordLength    = 6
	minRegisterPasswordLength = 8
	maxFullNameLength         = 255
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service orchestrates login, refresh, logout and registration.
type Service struct {
	users     UserStore
	tokens    TokenStore
	generator *TokenGenerator

	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime. A non-positive TTL
// disables refresh tokens entirely; login responses then carry no refresh
// token and callers must re-authenticate when the access token expires.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.refreshTTL = ttl }
}

// NewService constructs a Service over the given stores.
func NewService(users UserStore, tokens TokenStore, opts ...ServiceOption) *Service {
	svc := &Service{
		users:      users,
		tokens:     tokens,
		generator:  NewTokenGenerator(),
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// LoginRequest carries the credentials presented at login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates credentials and issues a token pair.
//
// tenantID, when non-empty, is the resolved tenant for the request; a user
// that does not administer that tenant fails with ErrInvalidCredentials, the
// same error as a wrong password, so tenant membership cannot be probed.
// The active-status check deliberately runs after password verification:
// callers must prove knowledge of the password before learning the account
// is disabled.
func (s *Service) Login(ctx context.Context, req LoginRequest, tenantID string) (*TokenBundle, *AdminUser, error) {
	verr := newValidationError()
	email := NormalizeEmail(req.Email)
	if !emailRx.MatchString(email) {
		verr.add("email", "must be a valid email address")
	}
	if len(req.Password) < minLoginPasswordLength {
		verr.add("password", fmt.Sprintf("must be at least %d characters", minLoginPasswordLength))
	}
	if !verr.empty() {
		return nil, nil, verr
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if tenantID != "" {
		member, err := s.users.MemberOfTenant(ctx, user.ID, tenantID)
		if err != nil {
			return nil, nil, err
		}
		if !member {
			return nil, nil, ErrInvalidCredentials
		}
	}

	if err := VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrAccountInactive
	}

	bundle, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, nil, err
	}
	user.LastLogin = &now

	return bundle, user, nil
}

// Refresh rotates a refresh token: the old access/refresh pair is revoked
// before a fresh pair is issued, so the old pair is never reusable. Scopes
// are re-derived from the user's current permissions, keeping authorization
// current without a new login.
func (s *Service) Refresh(ctx context.Context, refreshTokenID string) (*TokenBundle, *AdminUser, error) {
	if strings.TrimSpace(refreshTokenID) == "" {
		verr := newValidationError()
		verr.add("refresh_token", "is required")
		return nil, nil, verr
	}

	refresh, err := s.tokens.FindRefreshToken(ctx, refreshTokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, err
	}
	if refresh.Revoked {
		return nil, nil, ErrInvalidRefreshToken
	}
	if s.now().After(refresh.ExpiresAt) {
		return nil, nil, ErrRefreshTokenExpired
	}

	access, err := s.tokens.FindAccessTokenByID(ctx, refresh.AccessTokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, access.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrUserNotFoundOrInactive
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrUserNotFoundOrInactive
	}

	if err := s.tokens.RevokeAccessToken(ctx, access.ID); err != nil {
		return nil, nil, err
	}
	if err := s.tokens.RevokeRefreshToken(ctx, refresh.ID); err != nil {
		return nil, nil, err
	}

	bundle, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return bundle, user, nil
}

// Logout revokes every token owned by the user, invalidating all sessions.
// Logging out with no active tokens is not an error.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// RegisterRequest carries the fields for creating an admin user.
type RegisterRequest struct {
	Email                string         `json:"email"`
	Password             string         `json:"password"`
	PasswordConfirmation string         `json:"password_confirmation"`
	FullName             string         `json:"full_name"`
	Permissions          []string       `json:"permissions"`
	Metadata             map[string]any `json:"metadata"`
	IsActive             *bool          `json:"is_active"`
}

// Register validates and creates a new admin user. When tenantID is
// non-empty the new user is attached to that tenant.
func (s *Service) Register(ctx context.Context, req RegisterRequest, tenantID string) (*AdminUser, error) {
	verr := newValidationError()
	email := NormalizeEmail(req.Email)
	if !emailRx.MatchString(email) {
		verr.add("email", "must be a valid email address")
	}
	if len(req.Password) < minRegisterPasswordLength {
		verr.add("password", fmt.Sprintf("must be at least %d characters", minRegisterPasswordLength))
	}
	if req.Password != req.PasswordConfirmation {
		verr.add("password_confirmation", "does not match password")
	}
	if strings.TrimSpace(req.FullName) == "" {
		verr.add("full_name", "is required")
	} else if len(req.FullName) > maxFullNameLength {
		verr.add("full_name", fmt.Sprintf("must be at most %d characters", maxFullNameLength))
	}

	if verr.empty() {
		if _, err := s.users.FindByEmail(ctx, email); err == nil {
			verr.add("email", "has already been taken")
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if !verr.empty() {
		return nil, verr
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Permissions:  req.Permissions,
		Metadata:     req.Metadata,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if tenantID != "" {
		if err := s.users.AttachTenant(ctx, user.ID, tenantID); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// Authenticate validates a presented bearer token and loads its owner.
// Revoked and expired tokens fail immediately; there is no grace window.
func (s *Service) Authenticate(ctx context.Context, token string) (*AuthContext, error) {
	if err := s.generator.ValidateFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	record, err := s.tokens.FindAccessTokenByHash(ctx, s.generator.Hash(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return &AuthContext{User: user, Token: record, Scopes: record.Scopes}, nil
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *Service) AccessTokenTTL() time.Duration { return s.accessTTL }

func (s *Service) issuePair(ctx context.Context, user *AdminUser) (*TokenBundle, error) {
	now := s.now()
	scopes := ScopesForPermissions(user.Permissions)

	plaintext, hash, err := s.generator.Generate()
	if err != nil {
		return nil, err
	}

	access := &Token{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.accessTTL),
		CreatedAt: now,
	}
	if err := s.tokens.CreateAccessToken(ctx, access); err != nil {
		return nil, err
	}

	bundle := &TokenBundle{
		AccessToken: plaintext,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
	}

	if s.refreshTTL > 0 {
		refresh := &RefreshToken{
			ID:            uuid.NewString(),
			AccessTokenID: access.ID,
			ExpiresAt:     now.Add(s.refreshTTL),
		}
		if err := s.tokens.CreateRefreshToken(ctx, refresh); err != nil {
			return nil, err
		}
		bundle.RefreshTokenID = refresh.ID
	}

	return bundle, nil
}

// NormalizeEmail trims and lower-cases an email address. Lookups are done on
// the normalized form, making email matching case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
