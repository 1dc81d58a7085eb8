package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// pgExecutor abstracts pgxpool.Pool, pgx.Tx and pgxmock for repository code.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories aggregates the PostgreSQL-backed repositories sharing one pool.
type Repositories struct {
	Users      *UserRepository
	Identities *IdentityRepository
	Sessions   *SessionRepository
	Payments   *PaymentRepository
	Posts      *PostRepository
}

// NewRepositories wires every repository to the supplied pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:      NewUserRepository(pool),
		Identities: NewIdentityRepository(pool),
		Sessions:   NewSessionRepository(pool),
		Payments:   NewPaymentRepository(pool),
		Posts:      NewPostRepository(pool),
	}
}
