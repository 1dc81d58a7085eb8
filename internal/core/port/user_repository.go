package port

import (
	"context"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// UserRepository deals with account storage.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
}

// IdentityRepository stores external OAuth identities linked to local users.
type IdentityRepository interface {
	GetByProvider(ctx context.Context, provider, externalID string) (*domain.OAuthIdentity, error)
	Create(ctx context.Context, identity domain.OAuthIdentity) error
}
