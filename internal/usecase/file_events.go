package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

// FileEventService applies file.exchange events to local state: confirmed uploads
// attach to their post, deletions detach everywhere, avatar updates land on the user.
type FileEventService struct {
	posts     port.PostRepository
	users     port.UserRepository
	publisher port.EventPublisher
	logger    *zap.Logger
}

// NewFileEventService constructs a FileEventService instance.
func NewFileEventService(posts port.PostRepository, users port.UserRepository, publisher port.EventPublisher, logger *zap.Logger) *FileEventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileEventService{posts: posts, users: users, publisher: publisher, logger: logger}
}

// HandleFileUploaded records a confirmed upload on its post. A missing post is
// acked silently; the post may have been deleted while the upload was in flight.
func (s *FileEventService) HandleFileUploaded(ctx context.Context, body []byte) error {
	event, err := decodeFileEvent(body)
	if err != nil {
		return err
	}
	if event.PostID == "" || event.FileID == "" {
		return fmt.Errorf("file.uploaded event missing post or file id")
	}

	if err := s.posts.AttachFile(ctx, event.PostID, event.FileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("upload confirmed for missing post",
				zap.String("post_id", event.PostID),
				zap.String("file_id", event.FileID))
			return nil
		}
		return fmt.Errorf("attach file: %w", err)
	}

	return nil
}

// HandleFileDeleted detaches the file from every post referencing it.
func (s *FileEventService) HandleFileDeleted(ctx context.Context, body []byte) error {
	event, err := decodeFileEvent(body)
	if err != nil {
		return err
	}
	if event.FileID == "" {
		return fmt.Errorf("file.deleted event missing file id")
	}

	if err := s.posts.DetachFile(ctx, event.FileID); err != nil {
		return fmt.Errorf("detach file: %w", err)
	}

	return nil
}

// HandleAvatarUpdated stores the new avatar URL on the user.
func (s *FileEventService) HandleAvatarUpdated(ctx context.Context, body []byte) error {
	event, err := decodeFileEvent(body)
	if err != nil {
		return err
	}
	if event.UserID == "" || event.URL == "" {
		return fmt.Errorf("avatar.updated event missing user id or url")
	}

	if err := s.users.UpdateAvatar(ctx, event.UserID, event.URL); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("avatar update for missing user", zap.String("user_id", event.UserID))
			return nil
		}
		return fmt.Errorf("update avatar: %w", err)
	}

	// Announce the profile change to the sibling services. The avatar is already
	// stored; a publish failure must not make the broker redeliver the file event.
	updated := domain.UserEvent{
		EventID:   uuid.NewString(),
		UserID:    event.UserID,
		AvatarURL: event.URL,
		At:        time.Now().UTC(),
	}
	if err := s.publisher.PublishUserEvent(ctx, domain.EventUserUpdated, updated); err != nil {
		s.logger.Warn("publish user.updated failed", zap.String("user_id", event.UserID), zap.Error(err))
	}

	return nil
}

func decodeFileEvent(body []byte) (domain.FileEvent, error) {
	var event domain.FileEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.FileEvent{}, fmt.Errorf("decode file event: %w", err)
	}
	return event, nil
}
