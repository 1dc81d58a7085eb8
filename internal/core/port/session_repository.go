package port

import (
	"context"
	"time"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// SessionRepository deals with device-scoped session storage. Every lookup excludes
// soft-deleted rows; deletion modes mirror the logout endpoints.
type SessionRepository interface {
	// Find returns the newest non-deleted session matching the filter, or
	// repository.ErrNotFound. At least one filter field must be set.
	Find(ctx context.Context, filter domain.SessionFilter) (*domain.Session, error)
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// Create persists a session with TokenVersion initialized to 1.
	Create(ctx context.Context, session domain.Session) error
	// Rotate moves the token window forward and bumps the version by exactly one,
	// conditional on fromVersion still being current. A concurrent rotation that
	// already bumped the row surfaces as repository.ErrVersionConflict.
	Rotate(ctx context.Context, sessionID string, issuedAt, expiresAt time.Time, fromVersion int64) (*domain.Session, error)
	// Delete soft-deletes exactly one session scoped by both user and device.
	Delete(ctx context.Context, userID, deviceID, sessionID string, deletedAt time.Time) error
	// DeleteAllExceptCurrent soft-deletes every other non-deleted session of the user.
	DeleteAllExceptCurrent(ctx context.Context, userID, currentSessionID string, deletedAt time.Time) (int, error)
	// DeleteAllForUser hard-deletes every session of the user. Password reset only.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Session, error)
}
