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

// FileUpload is an attachment submitted with a new post.
type FileUpload struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// PostService manages posts and their attachments. File payloads live in the
// files service; every attachment operation goes over the broker RPC.
type PostService struct {
	posts      port.PostRepository
	rpc        port.RPCClient
	publisher  port.EventPublisher
	rpcTimeout time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewPostService constructs a PostService instance.
func NewPostService(
	posts port.PostRepository,
	rpc port.RPCClient,
	publisher port.EventPublisher,
	rpcTimeout time.Duration,
	logger *zap.Logger,
) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rpcTimeout <= 0 {
		rpcTimeout = 5 * time.Second
	}
	return &PostService{
		posts:      posts,
		rpc:        rpc,
		publisher:  publisher,
		rpcTimeout: rpcTimeout,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *PostService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

type uploadRequest struct {
	PostID   string       `json:"postId"`
	AuthorID string       `json:"authorId"`
	Files    []FileUpload `json:"files"`
}

type uploadReply struct {
	Files []domain.PostFile `json:"files"`
}

type deleteFilesRequest struct {
	FileIDs []string `json:"fileIds"`
}

type fileURLsRequest struct {
	FileIDs []string `json:"fileIds"`
}

type fileURLsReply struct {
	Files []domain.PostFile `json:"files"`
}

// Create stores the post, hands its attachments to the files service and emits
// post.created. Upload happens first so a files-service failure leaves no post.
func (s *PostService) Create(ctx context.Context, authorID, text string, files []FileUpload) (*domain.Post, error) {
	if authorID == "" {
		return nil, fmt.Errorf("author id is required")
	}
	if text == "" && len(files) == 0 {
		return nil, fmt.Errorf("post needs text or attachments")
	}

	post := domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: s.now(),
	}

	if len(files) > 0 {
		body, err := s.rpc.Request(ctx, domain.PatternFilesUpload, uploadRequest{
			PostID:   post.ID,
			AuthorID: authorID,
			Files:    files,
		}, s.rpcTimeout)
		if err != nil {
			return nil, fmt.Errorf("upload files: %w", err)
		}

		var reply uploadReply
		if err := json.Unmarshal(body, &reply); err != nil {
			return nil, fmt.Errorf("decode upload reply: %w", err)
		}
		for _, file := range reply.Files {
			post.FileIDs = append(post.FileIDs, file.ID)
		}
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	event := domain.PostEvent{
		EventID: uuid.NewString(),
		PostID:  post.ID,
		UserID:  authorID,
		FileIDs: post.FileIDs,
		At:      post.CreatedAt,
	}
	if err := s.publisher.PublishPostEvent(ctx, domain.EventPostCreated, event); err != nil {
		s.logger.Warn("publish post.created failed", zap.String("post_id", post.ID), zap.Error(err))
	}

	return &post, nil
}

// Get returns a post by id.
func (s *PostService) Get(ctx context.Context, postID string) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ListByAuthor returns the author's newest posts.
func (s *PostService) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	posts, err := s.posts.ListByAuthor(ctx, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Delete removes the caller's post, asks the files service to drop its
// attachments and emits post.deleted. Only the author may delete.
func (s *PostService) Delete(ctx context.Context, authorID, postID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("get post: %w", err)
	}
	if post.AuthorID != authorID {
		return ErrForbidden
	}

	if err := s.posts.Delete(ctx, authorID, postID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	if len(post.FileIDs) > 0 {
		if _, err := s.rpc.Request(ctx, domain.PatternFilesDelete, deleteFilesRequest{FileIDs: post.FileIDs}, s.rpcTimeout); err != nil {
			// The post is already gone; orphaned files are reconciled by the files
			// service's own cleanup, so log and move on.
			s.logger.Warn("delete files rpc failed",
				zap.String("post_id", postID),
				zap.Error(err))
		}
	}

	event := domain.PostEvent{
		EventID: uuid.NewString(),
		PostID:  postID,
		UserID:  authorID,
		FileIDs: post.FileIDs,
		At:      s.now(),
	}
	if err := s.publisher.PublishPostEvent(ctx, domain.EventPostDeleted, event); err != nil {
		s.logger.Warn("publish post.deleted failed", zap.String("post_id", postID), zap.Error(err))
	}

	return nil
}

// Files resolves the post's attachment ids to download URLs via the files service.
func (s *PostService) Files(ctx context.Context, postID string) ([]domain.PostFile, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	if len(post.FileIDs) == 0 {
		return nil, nil
	}

	body, err := s.rpc.Request(ctx, domain.PatternFilesGetURLs, fileURLsRequest{FileIDs: post.FileIDs}, s.rpcTimeout)
	if err != nil {
		return nil, fmt.Errorf("get file urls: %w", err)
	}

	var reply fileURLsReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode file urls reply: %w", err)
	}

	return reply.Files, nil
}
