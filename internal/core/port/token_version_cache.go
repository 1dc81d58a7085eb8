package port

import (
	"context"
	"time"
)

// TokenVersionCache keeps the current token version per session so the auth guard
// can reject stale tokens without a database round trip on the hot path.
type TokenVersionCache interface {
	GetTokenVersion(ctx context.Context, sessionID string) (int64, error)
	SetTokenVersion(ctx context.Context, sessionID string, version int64, ttl time.Duration) error
	DropTokenVersion(ctx context.Context, sessionID string) error
}
