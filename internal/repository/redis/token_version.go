package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

const defaultTokenVersionPrefix = "lumio:token_version"

// TokenVersionRepository caches per-session token versions for low-latency guard checks.
type TokenVersionRepository struct {
	client *red.Client
	prefix string
}

// NewTokenVersionRepository constructs a token version cache helper.
func NewTokenVersionRepository(client *red.Client, keyPrefix string) *TokenVersionRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultTokenVersionPrefix
	}

	return &TokenVersionRepository{client: client, prefix: prefix}
}

// GetTokenVersion fetches the cached token version, returning ErrNotFound on cache miss.
func (r *TokenVersionRepository) GetTokenVersion(ctx context.Context, sessionID string) (int64, error) {
	key := r.key(sessionID)
	if key == "" {
		return 0, fmt.Errorf("session id is required")
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis get token version: %w", err)
	}

	parsed, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("parse cached token version: %w", parseErr)
	}

	return parsed, nil
}

// SetTokenVersion stores the token version with the provided TTL.
func (r *TokenVersionRepository) SetTokenVersion(ctx context.Context, sessionID string, version int64, ttl time.Duration) error {
	key := r.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	if err := r.client.Set(ctx, key, strconv.FormatInt(version, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set token version: %w", err)
	}
	return nil
}

// DropTokenVersion removes the cached token version entry.
func (r *TokenVersionRepository) DropTokenVersion(ctx context.Context, sessionID string) error {
	key := r.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis drop token version: %w", err)
	}
	return nil
}

func (r *TokenVersionRepository) key(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.TokenVersionCache = (*TokenVersionRepository)(nil)
