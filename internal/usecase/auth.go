package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/logger"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/security"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	TokenVersion int64
	ExpiresAt    time.Time
}

// AccessContext is what the auth guard attaches to the request on success.
type AccessContext struct {
	UserID       string
	DeviceID     string
	SessionID    string
	TokenVersion int64
}

// DeviceInfo identifies the client device on login and refresh.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	IP         string
}

// AuthService coordinates registration, login, refresh and access validation.
type AuthService struct {
	users     port.UserRepository
	sessions  port.SessionRepository
	cache     port.TokenVersionCache
	issuer    *security.TokenIssuer
	publisher port.EventPublisher
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	sessions port.SessionRepository,
	cache port.TokenVersionCache,
	issuer *security.TokenIssuer,
	publisher port.EventPublisher,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		cache:     cache,
		issuer:    issuer,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates an account and announces it on the user exchange.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration can slip past the email lookup; the unique
		// constraint is the authority.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Registration already succeeded; a publish failure must not undo it.
	event := domain.UserEvent{
		EventID:  uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		At:       now,
	}
	if err := s.publisher.PublishUserEvent(ctx, domain.EventUserCreated, event); err != nil {
		s.logger.Warn("publish user.created failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	user.PasswordHash = ""
	return &user, nil
}

// Login verifies credentials and opens (or rotates) the device session.
func (s *AuthService) Login(ctx context.Context, identifier, password string, device DeviceInfo) (TokenPair, error) {
	if identifier == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	if device.DeviceID == "" {
		return TokenPair{}, fmt.Errorf("device id is required")
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login rejected", zap.String("identifier", logger.MaskEmail(identifier)))
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login rejected", zap.String("identifier", logger.MaskEmail(identifier)))
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.StartSession(ctx, user.ID, device)
}

// StartSession rotates the existing (user, device) session or creates a fresh one,
// then mints the token pair. Shared by password login and OAuth login.
func (s *AuthService) StartSession(ctx context.Context, userID string, device DeviceInfo) (TokenPair, error) {
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.issuer.RefreshTTL()).Truncate(time.Second)

	session, err := s.sessions.Find(ctx, domain.SessionFilter{UserID: userID, DeviceID: device.DeviceID})
	switch {
	case err == nil:
		session, err = s.sessions.Rotate(ctx, session.ID, now, expiresAt, session.TokenVersion)
		if err != nil {
			return TokenPair{}, fmt.Errorf("rotate session: %w", err)
		}
	case errors.Is(err, repository.ErrNotFound):
		fresh := domain.Session{
			ID:           uuid.NewString(),
			UserID:       userID,
			DeviceID:     device.DeviceID,
			DeviceName:   device.DeviceName,
			IP:           device.IP,
			CreatedAt:    now,
			ExpiresAt:    expiresAt,
			TokenVersion: 1,
		}
		if err := s.sessions.Create(ctx, fresh); err != nil {
			return TokenPair{}, fmt.Errorf("create session: %w", err)
		}
		session = &fresh
	default:
		return TokenPair{}, fmt.Errorf("find session: %w", err)
	}

	return s.issuePair(ctx, session, device)
}

// Refresh exchanges a valid refresh token for a new pair, bumping the session
// version so the previous pair dies.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return TokenPair{}, ErrExpiredRefreshToken
		}
		return TokenPair{}, ErrInvalidRefreshToken
	}

	session, err := s.sessions.Find(ctx, domain.SessionFilter{UserID: claims.UserID, DeviceID: claims.DeviceID})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, NewUnauthorized(FieldSession, "session not found")
		}
		return TokenPair{}, fmt.Errorf("find session: %w", err)
	}

	// The stored expiry must equal the token's exactly. A mismatch means this token
	// belongs to an older incarnation, i.e. it was already exchanged once.
	if !session.MatchesRefreshClaims(claims.UserID, claims.DeviceID, claims.ExpiresAt.Time.UTC()) {
		return TokenPair{}, NewUnauthorized(FieldSession, "refresh token does not match session")
	}

	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.issuer.RefreshTTL()).Truncate(time.Second)

	rotated, err := s.sessions.Rotate(ctx, session.ID, now, expiresAt, session.TokenVersion)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return TokenPair{}, NewUnauthorized(FieldTokenVersion, "session was rotated concurrently")
		case errors.Is(err, repository.ErrNotFound):
			return TokenPair{}, NewUnauthorized(FieldSession, "session not found")
		}
		return TokenPair{}, fmt.Errorf("rotate session: %w", err)
	}

	device := DeviceInfo{DeviceID: rotated.DeviceID, DeviceName: rotated.DeviceName, IP: rotated.IP}
	return s.issuePair(ctx, rotated, device)
}

// ValidateAccess walks the guard chain: signature, claims, user, session, version.
// Each failure carries the field tag of the first broken link.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (*AccessContext, error) {
	claims, err := s.issuer.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, NewUnauthorized(FieldAccessToken, "access token expired")
		}
		return nil, NewUnauthorized(FieldAccessToken, "invalid access token")
	}

	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewUnauthorized(FieldUser, "user not found")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	session, err := s.sessions.Find(ctx, domain.SessionFilter{UserID: claims.UserID, DeviceID: claims.DeviceID})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewUnauthorized(FieldSession, "session not found")
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !session.IsActive(s.now()) {
		return nil, NewUnauthorized(FieldSession, "session expired")
	}

	current, err := s.cache.GetTokenVersion(ctx, session.ID)
	if err != nil {
		// Cache miss or cache down: fall back to the store's version and repopulate.
		current = session.TokenVersion
		if err := s.cache.SetTokenVersion(ctx, session.ID, current, s.cacheTTL); err != nil {
			s.logger.Debug("token version cache set failed", zap.Error(err))
		}
	}

	if claims.TokenVersion != current {
		return nil, NewUnauthorized(FieldTokenVersion, "access token version is stale")
	}

	return &AccessContext{
		UserID:       claims.UserID,
		DeviceID:     claims.DeviceID,
		SessionID:    session.ID,
		TokenVersion: claims.TokenVersion,
	}, nil
}

func (s *AuthService) issuePair(ctx context.Context, session *domain.Session, device DeviceInfo) (TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(session.UserID, session.DeviceID, session.TokenVersion)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.issuer.IssueRefreshToken(
		session.UserID, session.DeviceID, device.DeviceName, device.IP,
		session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.cache.SetTokenVersion(ctx, session.ID, session.TokenVersion, s.cacheTTL); err != nil {
		s.logger.Debug("token version cache set failed", zap.Error(err))
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    session.ID,
		TokenVersion: session.TokenVersion,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}
