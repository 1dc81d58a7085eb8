package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

// SessionService covers session listing and the three revocation modes.
type SessionService struct {
	sessions port.SessionRepository
	cache    port.TokenVersionCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(sessions port.SessionRepository, cache port.TokenVersionCache, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions: sessions,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// List returns the caller's active sessions, newest first.
func (s *SessionService) List(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Logout soft-deletes the caller's current session and drops its cached version.
func (s *SessionService) Logout(ctx context.Context, access AccessContext) error {
	if err := s.sessions.Delete(ctx, access.UserID, access.DeviceID, access.SessionID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}

	s.dropCachedVersion(ctx, access.SessionID)
	return nil
}

// RevokeDevice soft-deletes one of the caller's other sessions. Targeting the
// current session is refused; logout is the endpoint for that.
func (s *SessionService) RevokeDevice(ctx context.Context, access AccessContext, sessionID string) error {
	if sessionID == access.SessionID {
		return ErrForbidden
	}

	target, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("get session: %w", err)
	}
	if target.UserID != access.UserID {
		// Do not leak whether the session exists for another account.
		return ErrSessionNotFound
	}

	if err := s.sessions.Delete(ctx, target.UserID, target.DeviceID, target.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}

	s.dropCachedVersion(ctx, target.ID)
	return nil
}

// RevokeOthers soft-deletes every session of the user except the current one and
// returns how many were revoked.
func (s *SessionService) RevokeOthers(ctx context.Context, access AccessContext) (int, error) {
	revoked, err := s.sessions.DeleteAllExceptCurrent(ctx, access.UserID, access.SessionID, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete other sessions: %w", err)
	}

	s.logger.Info("revoked other sessions",
		zap.String("user_id", access.UserID),
		zap.Int("count", revoked))

	return revoked, nil
}

// RevokeAll hard-deletes every session of the user. Reserved for the password
// reset path where even the current device must re-authenticate.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	purged, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}

	for _, session := range sessions {
		s.dropCachedVersion(ctx, session.ID)
	}

	s.logger.Info("purged all sessions",
		zap.String("user_id", userID),
		zap.Int("count", purged))

	return purged, nil
}

func (s *SessionService) dropCachedVersion(ctx context.Context, sessionID string) {
	if err := s.cache.DropTokenVersion(ctx, sessionID); err != nil {
		s.logger.Debug("token version cache drop failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
