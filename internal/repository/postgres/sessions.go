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

var sessionColumns = []string{
	"id",
	"user_id",
	"device_id",
	"device_name",
	"ip",
	"created_at",
	"expires_at",
	"token_version",
	"deleted_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// selectActive is the single place the soft-delete filter is spelled out. Every read
// goes through it so a forgotten deleted_at clause cannot leak revoked sessions.
func (r *SessionRepository) selectActive() squirrel.SelectBuilder {
	return r.builder.
		Select(sessionColumns...).
		From("lumio.sessions").
		Where("deleted_at IS NULL")
}

// Find returns the newest non-deleted session matching the filter.
func (r *SessionRepository) Find(ctx context.Context, filter domain.SessionFilter) (*domain.Session, error) {
	if filter.IsEmpty() {
		return nil, fmt.Errorf("session filter requires at least one field")
	}

	query := r.selectActive().OrderBy("created_at DESC").Limit(1)
	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.DeviceID != "" {
		query = query.Where(squirrel.Eq{"device_id": filter.DeviceID})
	}
	if filter.DeviceName != "" {
		query = query.Where(squirrel.Eq{"device_name": filter.DeviceName})
	}

	sqlStmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find session sql: %w", err)
	}

	return scanSession(r.exec.QueryRow(ctx, sqlStmt, args...))
}

// GetByID returns a non-deleted session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sqlStmt, args, err := r.selectActive().
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	return scanSession(r.exec.QueryRow(ctx, sqlStmt, args...))
}

// Create inserts a session record. Token version always starts at 1.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	version := session.TokenVersion
	if version <= 0 {
		version = 1
	}

	sqlStmt, args, err := r.builder.Insert("lumio.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.DeviceID,
			session.DeviceName,
			session.IP,
			session.CreatedAt,
			session.ExpiresAt,
			version,
			session.DeletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Rotate moves the token window forward and bumps the version by exactly one.
// The update is conditional on fromVersion so concurrent rotations cannot silently
// lose an increment; the loser observes ErrVersionConflict.
func (r *SessionRepository) Rotate(ctx context.Context, sessionID string, issuedAt, expiresAt time.Time, fromVersion int64) (*domain.Session, error) {
	sqlStmt, args, err := r.builder.Update("lumio.sessions").
		Set("created_at", issuedAt).
		Set("expires_at", expiresAt).
		Set("token_version", fromVersion+1).
		Where(squirrel.Eq{"id": sessionID, "token_version": fromVersion}).
		Where("deleted_at IS NULL").
		Suffix("RETURNING " + joinColumns(sessionColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rotate session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, sqlStmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, r.classifyRotateMiss(ctx, sessionID)
		}
		return nil, err
	}

	return session, nil
}

// classifyRotateMiss distinguishes a vanished session from a lost version race.
func (r *SessionRepository) classifyRotateMiss(ctx context.Context, sessionID string) error {
	if _, err := r.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return err
	}
	return repository.ErrVersionConflict
}

// Delete soft-deletes exactly one session, scoped by both user and device so a
// colliding device id can never remove another account's session.
func (r *SessionRepository) Delete(ctx context.Context, userID, deviceID, sessionID string, deletedAt time.Time) error {
	sqlStmt, args, err := r.builder.Update("lumio.sessions").
		Set("deleted_at", deletedAt).
		Where(squirrel.Eq{"id": sessionID, "user_id": userID, "device_id": deviceID}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteAllExceptCurrent soft-deletes every other non-deleted session of the user.
func (r *SessionRepository) DeleteAllExceptCurrent(ctx context.Context, userID, currentSessionID string, deletedAt time.Time) (int, error) {
	sqlStmt, args, err := r.builder.Update("lumio.sessions").
		Set("deleted_at", deletedAt).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.NotEq{"id": currentSessionID}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete other sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete other sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteAllForUser hard-deletes every session of the user, invalidating all devices
// immediately. Used only on password reset.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	sqlStmt, args, err := r.builder.Delete("lumio.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListActiveByUser returns non-deleted, non-expired sessions for the user.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	now := time.Now().UTC()
	sqlStmt, args, err := r.selectActive().
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	session, err := scanSessionRow(row)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func scanSessionRow(row pgx.Row) (*domain.Session, error) {
	var (
		session   domain.Session
		deletedAt sql.NullTime
	)

	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.DeviceID,
		&session.DeviceName,
		&session.IP,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.TokenVersion,
		&deletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		session.DeletedAt = &t
	}

	return &session, nil
}

func joinColumns(columns []string) string {
	out := ""
	for i, col := range columns {
		if i > 0 {
			out += ", "
		}
		out += col
	}
	return out
}

var _ port.SessionRepository = (*SessionRepository)(nil)
