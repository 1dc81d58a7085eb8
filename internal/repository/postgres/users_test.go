package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

func TestUserRepository_Create_DuplicateUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{
		ID:           "user-1",
		Username:     "bob",
		Email:        "bob@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO lumio\.users`).
		WithArgs(user.ID, user.Username, user.Email, user.PasswordHash, user.AvatarURL, user.CreatedAt, user.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"})

	if err := repo.Create(context.Background(), user); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Create_OtherErrorsPassThrough(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{ID: "user-1", Username: "bob", Email: "bob@example.com", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(`INSERT INTO lumio\.users`).
		WithArgs(user.ID, user.Username, user.Email, user.PasswordHash, user.AvatarURL, user.CreatedAt, user.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "53300"})

	err = repo.Create(context.Background(), user)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("non-unique failure must not map to ErrDuplicate: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_Create_DuplicateIdentity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	identity := domain.OAuthIdentity{
		ID:         "identity-1",
		UserID:     "user-1",
		Provider:   "google",
		ExternalID: "ext-1",
		Email:      "bob@example.com",
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO lumio\.oauth_identities`).
		WithArgs(identity.ID, identity.UserID, identity.Provider, identity.ExternalID, identity.Email, identity.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "oauth_identities_provider_external_id_key"})

	if err := repo.Create(context.Background(), identity); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
