// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
)

// Standard authentication errors
var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrEmailTaken is returned by Register for an existing email.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrWeakPassword is returned for passwords below the minimum length.
	ErrWeakPassword = errors.New("password is too short")
)

// UserRepository is the storage the account service needs.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	TouchLogin(ctx context.Context, id string) error
}

// ServiceConfig configures the account service.
type ServiceConfig struct {
	MinPasswordLength int
	SessionTTL        time.Duration
	BcryptCost        int
}

// Service manages accounts, sessions and tokens.
type Service struct {
	users    UserRepository
	sessions SessionStore
	tokens   *TokenManager
	lockout  *LockoutManager
	cfg      ServiceConfig

	// dummyHash is compared against when the email is unknown.
	dummyHash []byte
}

// NewService creates the account service. tokens and lockout may be nil.
func NewService(users UserRepository, sessions SessionStore, tokens *TokenManager, lockout *LockoutManager, cfg ServiceConfig) *Service {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if lockout == nil {
		lockout = NewLockoutManager(nil, LockoutConfig{})
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("souq-dummy-password"), cfg.BcryptCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt: %v", err))
	}

	return &Service{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		lockout:   lockout,
		cfg:       cfg,
		dummyHash: dummy,
	}
}

// Sessions returns the session store.
func (s *Service) Sessions() SessionStore {
	return s.sessions
}

// Tokens returns the token manager, or nil when bearer tokens are disabled.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// SessionTTL returns the lifetime of new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < s.cfg.MinPasswordLength {
		return "", fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, s.cfg.MinPasswordLength)
	}
	if len(password) > 72 {
		return "", fmt.Errorf("%w: maximum 72 bytes", ErrWeakPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Registration is a customer sign-up.
type Registration struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required"`
	Language string `json:"language" validate:"omitempty,langcode"`
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, reg Registration) (*models.User, error) {
	return s.createUser(ctx, reg, models.RoleCustomer)
}

// CreateUser creates an account with any role. It backs the admin user
// endpoints and souqctl.
func (s *Service) CreateUser(ctx context.Context, reg Registration, role string) (*models.User, error) {
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	return s.createUser(ctx, reg, role)
}

func (s *Service) createUser(ctx context.Context, reg Registration, role string) (*models.User, error) {
	hash, err := s.hashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        reg.Email,
		Name:         strings.TrimSpace(reg.Name),
		PasswordHash: hash,
		Role:         role,
		Language:     reg.Language,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	logging.Info().Str("user_id", u.ID).Str("role", role).Msg("Account created")
	return u, nil
}

// Authenticate checks an email/password pair. Unknown emails, wrong
// passwords and locked emails take the same bcrypt comparison time.
func (s *Service) Authenticate(ctx context.Context, email, password, ip string) (*models.User, error) {
	subject := database.NormalizeEmail(email)

	locked, remaining, err := s.lockout.CheckLocked(ctx, subject)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Lockout check failed")
	}
	if locked {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, fmt.Errorf("%w: retry in %s", ErrAccountLocked, remaining.Round(time.Second))
	}

	u, err := s.users.GetUserByEmail(ctx, subject)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || u == nil {
		if nowLocked, _, lerr := s.lockout.RecordFailedAttempt(ctx, subject, ip); lerr != nil {
			logging.Ctx(ctx).Error().Err(lerr).Msg("Failed to record login failure")
		} else if nowLocked {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	if err := s.lockout.RecordSuccessfulLogin(ctx, subject); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to clear lockout")
	}
	if err := s.users.TouchLogin(ctx, u.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record login time")
	}
	return u, nil
}

// Login authenticates and opens a session.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*models.User, *Session, error) {
	u, err := s.Authenticate(ctx, email, password, ip)
	if err != nil {
		return nil, nil, err
	}
	session := NewSession(u, s.cfg.SessionTTL)
	session.IP = ip
	session.UserAgent = userAgent
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return u, session, nil
}

// Logout ends a session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// IssueToken authenticates and returns a bearer token.
func (s *Service) IssueToken(ctx context.Context, email, password, ip string) (string, time.Time, *models.User, error) {
	if s.tokens == nil {
		return "", time.Time{}, nil, errors.New("bearer tokens are not configured")
	}
	u, err := s.Authenticate(ctx, email, password, ip)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expires, u, nil
}

// ChangePassword replaces the password after checking the current one and
// ends the user's other sessions.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next, keepSessionID string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}

	sessions, err := s.sessions.GetByUserID(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to list sessions after password change")
		return nil
	}
	for _, session := range sessions {
		if session.ID != keepSessionID {
			_ = s.sessions.Delete(ctx, session.ID)
		}
	}
	return nil
}

// ProfileUpdate holds the self-service profile fields.
type ProfileUpdate struct {
	Name     string `json:"name" validate:"required,max=120"`
	Language string `json:"language" validate:"omitempty,langcode"`
}

// UpdateProfile saves the caller's own name and preferred language.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*models.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(p.Name)
	u.Language = p.Language
	u.PasswordHash = ""
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetRole changes a user's role and active flag. Deactivating a user ends
// their sessions.
func (s *Service) SetRole(ctx context.Context, userID, role string, active bool) (*models.User, error) {
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Role = role
	u.Active = active
	u.PasswordHash = ""
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	if !active || role == models.RoleCustomer {
		if _, err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to end sessions")
		}
	}
	return u, nil
}

// EnsureAdmin creates the admin account when no user has the email, or
// promotes and re-activates the existing one. The password is only set for
// new accounts.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, bool, error) {
	if email == "" {
		return nil, false, errors.New("admin email is required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if name == "" {
			name = "Administrator"
		}
		u, err = s.createUser(ctx, Registration{Email: email, Name: name, Password: password}, models.RoleAdmin)
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	case err != nil:
		return nil, false, err
	}

	if u.Role == models.RoleAdmin && u.Active {
		return u, false, nil
	}
	u.Role = models.RoleAdmin
	u.Active = true
	u.PasswordHash = ""
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, false, err
	}
	logging.Info().Str("user_id", u.ID).Msg("Existing account promoted to admin")
	return u, false, nil
}

// CleanupSessions removes expired sessions.
func (s *Service) CleanupSessions(ctx context.Context) (int, error) {
	return s.sessions.CleanupExpired(ctx)
}
