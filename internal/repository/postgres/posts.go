package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

// PostRepository implements port.PostRepository for PostgreSQL. Attachment ids are
// stored as a text array; the file payloads themselves live in the files service.
type PostRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPostRepository constructs a PostRepository.
func NewPostRepository(exec pgExecutor) *PostRepository {
	return &PostRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a post record.
func (r *PostRepository) Create(ctx context.Context, post domain.Post) error {
	sqlStmt, args, err := r.builder.Insert("lumio.posts").
		Columns("id", "author_id", "text", "file_ids", "created_at", "deleted_at").
		Values(
			post.ID,
			post.AuthorID,
			post.Text,
			post.FileIDs,
			post.CreatedAt,
			post.DeletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert post sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// GetByID returns a non-deleted post by identifier.
func (r *PostRepository) GetByID(ctx context.Context, postID string) (*domain.Post, error) {
	sqlStmt, args, err := r.selectActive().
		Where(squirrel.Eq{"id": postID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select post sql: %w", err)
	}

	return scanPost(r.exec.QueryRow(ctx, sqlStmt, args...))
}

// ListByAuthor returns the newest non-deleted posts of the author.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlStmt, args, err := r.selectActive().
		Where(squirrel.Eq{"author_id": authorID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}

// Delete soft-deletes a post scoped by its author.
func (r *PostRepository) Delete(ctx context.Context, authorID, postID string, deletedAt time.Time) error {
	sqlStmt, args, err := r.builder.Update("lumio.posts").
		Set("deleted_at", deletedAt).
		Where(squirrel.Eq{"id": postID, "author_id": authorID}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete post sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// AttachFile appends a confirmed file id to the post's attachment list.
// file_ids is NULL for posts created without attachments, and NULL poisons both
// array_append and the ANY membership check, so coalesce it to an empty array.
func (r *PostRepository) AttachFile(ctx context.Context, postID, fileID string) error {
	tag, err := r.exec.Exec(ctx,
		"UPDATE lumio.posts SET file_ids = array_append(COALESCE(file_ids, '{}'), $2) WHERE id = $1 AND deleted_at IS NULL AND NOT ($2 = ANY(COALESCE(file_ids, '{}')))",
		postID, fileID)
	if err != nil {
		return fmt.Errorf("attach file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DetachFile removes a file id from every post referencing it.
func (r *PostRepository) DetachFile(ctx context.Context, fileID string) error {
	if _, err := r.exec.Exec(ctx,
		"UPDATE lumio.posts SET file_ids = array_remove(file_ids, $1) WHERE $1 = ANY(file_ids)",
		fileID); err != nil {
		return fmt.Errorf("detach file: %w", err)
	}
	return nil
}

func (r *PostRepository) selectActive() squirrel.SelectBuilder {
	return r.builder.
		Select("id", "author_id", "text", "file_ids", "created_at", "deleted_at").
		From("lumio.posts").
		Where("deleted_at IS NULL")
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		post      domain.Post
		deletedAt sql.NullTime
	)

	if err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Text,
		&post.FileIDs,
		&post.CreatedAt,
		&deletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		post.DeletedAt = &t
	}

	return &post, nil
}

var _ port.PostRepository = (*PostRepository)(nil)
