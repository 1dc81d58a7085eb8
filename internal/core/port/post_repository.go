package port

import (
	"context"
	"time"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// PostRepository deals with post storage.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) error
	GetByID(ctx context.Context, postID string) (*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error)
	Delete(ctx context.Context, authorID, postID string, deletedAt time.Time) error
	AttachFile(ctx context.Context, postID, fileID string) error
	DetachFile(ctx context.Context, fileID string) error
}
