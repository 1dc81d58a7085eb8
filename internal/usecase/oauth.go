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
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

// OAuthProfile is the verified profile returned by an external provider.
type OAuthProfile struct {
	Provider   string
	ExternalID string
	Email      string
	Username   string
}

// OAuthService resolves external identities onto local accounts and hands the
// result to the regular session flow.
type OAuthService struct {
	users      port.UserRepository
	identities port.IdentityRepository
	publisher  port.EventPublisher
	auth       *AuthService
	logger     *zap.Logger
	now        func() time.Time
}

// NewOAuthService constructs an OAuthService instance.
func NewOAuthService(
	users port.UserRepository,
	identities port.IdentityRepository,
	publisher port.EventPublisher,
	auth *AuthService,
	logger *zap.Logger,
) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		users:      users,
		identities: identities,
		publisher:  publisher,
		auth:       auth,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *OAuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login resolves the linkage action for the profile, applies it, and opens the
// device session. Both existence checks run before any write.
func (s *OAuthService) Login(ctx context.Context, profile OAuthProfile, device DeviceInfo) (TokenPair, error) {
	if profile.Provider == "" || profile.ExternalID == "" {
		return TokenPair{}, fmt.Errorf("provider and external id are required")
	}
	email := strings.TrimSpace(strings.ToLower(profile.Email))
	if email == "" {
		return TokenPair{}, fmt.Errorf("provider profile has no email")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	identity, err := s.identities.GetByProvider(ctx, profile.Provider, profile.ExternalID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("lookup identity: %w", err)
	}

	action := domain.ResolveLinkage(user != nil, identity != nil)

	switch action {
	case domain.LinkageCreateBoth:
		user, err = s.createUser(ctx, profile, email)
		if err != nil {
			return TokenPair{}, err
		}
		if err := s.createIdentity(ctx, user.ID, profile, email); err != nil {
			return TokenPair{}, err
		}

	case domain.LinkageLinkIdentityToExistingUser:
		// Email lookup missed but the identity is known, e.g. the provider-side
		// email changed after the first login. The identity wins.
		user, err = s.users.GetByID(ctx, identity.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return TokenPair{}, ErrUserNotFound
			}
			return TokenPair{}, fmt.Errorf("lookup linked user: %w", err)
		}

	case domain.LinkageCreateIdentityForFoundUser:
		if err := s.createIdentity(ctx, user.ID, profile, email); err != nil {
			return TokenPair{}, err
		}

	case domain.LinkageReuseBoth:
		if identity.UserID != user.ID {
			s.logger.Warn("identity linked to a different account",
				zap.String("provider", profile.Provider),
				zap.String("identity_user_id", identity.UserID),
				zap.String("email_user_id", user.ID))
			return TokenPair{}, ErrForbidden
		}
	}

	return s.auth.StartSession(ctx, user.ID, device)
}

func (s *OAuthService) createUser(ctx context.Context, profile OAuthProfile, email string) (*domain.User, error) {
	now := s.now()
	username := profile.Username
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

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

	return &user, nil
}

func (s *OAuthService) createIdentity(ctx context.Context, userID string, profile OAuthProfile, email string) error {
	identity := domain.OAuthIdentity{
		ID:         uuid.NewString(),
		UserID:     userID,
		Provider:   profile.Provider,
		ExternalID: profile.ExternalID,
		Email:      email,
		CreatedAt:  s.now(),
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	return nil
}
