package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"photovault/internal/config"
	"photovault/internal/ids"
	"photovault/internal/models"
	"photovault/internal/repository"
	"photovault/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
	ErrInviteInvalid      = errors.New("invite code invalid")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidEmail       = errors.New("invalid email")
)

const minPasswordLength = 8

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	Rotate(ctx context.Context, session models.Session, oldHash []byte) error
	DeleteByID(ctx context.Context, id string) error
}

type InviteConsumer interface {
	Consume(ctx context.Context, code string) (string, error)
	Release(ctx context.Context, id string) error
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	invites  InviteConsumer
	cfg      config.SecurityConfig
	log      zerolog.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, invites InviteConsumer, cfg config.SecurityConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		invites:  invites,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	InviteCode  string
	IPAddress   string
	UserAgent   string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         models.User
}

// Register creates an account by spending one use of an invite code. The
// use is handed back if the account cannot be created.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if len(input.Password) < minPasswordLength {
		return AuthResult{}, ErrWeakPassword
	}

	inviteID, err := s.invites.Consume(ctx, strings.TrimSpace(input.InviteCode))
	if err != nil {
		if errors.Is(err, repository.ErrInviteInvalid) {
			return AuthResult{}, ErrInviteInvalid
		}
		return AuthResult{}, fmt.Errorf("consume invite: %w", err)
	}

	user, err := s.createUser(ctx, email, input)
	if err != nil {
		if rerr := s.invites.Release(context.WithoutCancel(ctx), inviteID); rerr != nil {
			s.log.Error().Err(rerr).Str("invite_id", inviteID).Msg("release invite failed")
		}
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Str("invite_id", inviteID).Msg("user registered")
	return s.createSession(ctx, user, input.IPAddress, input.UserAgent)
}

func (s *AuthService) createUser(ctx context.Context, email string, input RegisterInput) (models.User, error) {
	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	return s.createSession(ctx, user, input.IPAddress, input.UserAgent)
}

type RefreshInput struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// Refresh redeems a refresh token once and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	sessionID, err := security.RefreshSessionID(input.RefreshToken)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	refreshToken, newHash, err := security.GenerateRefreshToken(session.ID, 0)
	if err != nil {
		return AuthResult{}, err
	}

	oldHash := security.HashRefreshToken(input.RefreshToken)
	session.RefreshTokenHash = newHash
	session.IPAddress = input.IPAddress
	session.UserAgent = input.UserAgent
	session.ExpiresAt = time.Now().Add(s.cfg.RefreshTTL)

	if err := s.sessions.Rotate(ctx, session, oldHash); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	return s.tokens(user, session.ID, refreshToken)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.DeleteByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *AuthService) createSession(ctx context.Context, user models.User, ipAddress, userAgent string) (AuthResult, error) {
	sessionID := ids.New()
	refreshToken, refreshHash, err := security.GenerateRefreshToken(sessionID, 0)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	return s.tokens(user, sessionID, refreshToken)
}

func (s *AuthService) tokens(user models.User, sessionID, refreshToken string) (AuthResult, error) {
	accessToken, err := security.GenerateAccessToken(
		s.cfg.JWTAccessSecret,
		user.ID,
		sessionID,
		string(user.Role),
		s.cfg.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.cfg.JWTAccessTTL,
		User:         user,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
