package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"avatar_url",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository for PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": userID})
}

// GetByEmail returns a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// GetByIdentifier returns a user matching either username or email.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Or{
		squirrel.Eq{"username": identifier},
		squirrel.Eq{"email": identifier},
	})
}

// Create inserts a user record.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	sqlStmt, args, err := r.builder.Insert("lumio.users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.AvatarURL,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// UpdateAvatar stores the avatar URL reported by the files service.
func (r *UserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	sqlStmt, args, err := r.builder.Update("lumio.users").
		Set("avatar_url", avatarURL).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update avatar sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where any) (*domain.User, error) {
	sqlStmt, args, err := r.builder.
		Select(userColumns...).
		From("lumio.users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user      domain.User
		avatarURL sql.NullString
	)
	if err := r.exec.QueryRow(ctx, sqlStmt, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&avatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if avatarURL.Valid {
		url := avatarURL.String
		user.AvatarURL = &url
	}

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)

// IdentityRepository implements port.IdentityRepository for PostgreSQL.
type IdentityRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository constructs an IdentityRepository.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	return &IdentityRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByProvider returns the identity registered for (provider, externalID).
func (r *IdentityRepository) GetByProvider(ctx context.Context, provider, externalID string) (*domain.OAuthIdentity, error) {
	sqlStmt, args, err := r.builder.
		Select("id", "user_id", "provider", "external_id", "email", "created_at").
		From("lumio.oauth_identities").
		Where(squirrel.Eq{"provider": provider, "external_id": externalID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	var identity domain.OAuthIdentity
	if err := r.exec.QueryRow(ctx, sqlStmt, args...).Scan(
		&identity.ID,
		&identity.UserID,
		&identity.Provider,
		&identity.ExternalID,
		&identity.Email,
		&identity.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &identity, nil
}

// Create inserts an identity record.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.OAuthIdentity) error {
	sqlStmt, args, err := r.builder.Insert("lumio.oauth_identities").
		Columns("id", "user_id", "provider", "external_id", "email", "created_at").
		Values(
			identity.ID,
			identity.UserID,
			identity.Provider,
			identity.ExternalID,
			identity.Email,
			identity.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
