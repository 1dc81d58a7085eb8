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

var paymentColumns = []string{
	"id",
	"profile_id",
	"amount",
	"currency",
	"status",
	"subscription_id",
	"subscription_type",
	"period_start",
	"period_end",
	"next_payment_date",
	"payments_url",
	"created_at",
	"updated_at",
}

// PaymentRepository implements port.PaymentRepository for PostgreSQL.
type PaymentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(exec pgExecutor) *PaymentRepository {
	return &PaymentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a payment row and returns its generated identifier.
func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) (int64, error) {
	status := payment.Status
	if status == "" {
		status = domain.PaymentStatusPending
	}

	sqlStmt, args, err := r.builder.Insert("lumio.payments").
		Columns("profile_id", "amount", "currency", "status", "subscription_type", "created_at", "updated_at").
		Values(
			payment.ProfileID,
			payment.Amount,
			payment.Currency,
			string(status),
			payment.SubscriptionType,
			payment.CreatedAt,
			payment.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert payment sql: %w", err)
	}

	var id int64
	if err := r.exec.QueryRow(ctx, sqlStmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}

	return id, nil
}

// GetByID returns a payment row by identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	return r.getOne(ctx, squirrel.Eq{"id": paymentID})
}

// GetBySubscriptionID returns the payment referencing the provider subscription.
func (r *PaymentRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Payment, error) {
	return r.getOne(ctx, squirrel.Eq{"subscription_id": subscriptionID})
}

// MarkSuccessful transitions the payment to successful and binds the provider
// subscription with its billing period.
func (r *PaymentRepository) MarkSuccessful(ctx context.Context, paymentID int64, subscriptionID string, period domain.BillingPeriod) error {
	sqlStmt, args, err := r.builder.Update("lumio.payments").
		Set("status", string(domain.PaymentStatusSuccessful)).
		Set("subscription_id", subscriptionID).
		Set("period_start", period.Start).
		Set("period_end", period.End).
		Set("next_payment_date", period.NextPayment).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark successful sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("mark payment successful: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RollPeriod moves the billing window of the payment forward.
func (r *PaymentRepository) RollPeriod(ctx context.Context, paymentID int64, period domain.BillingPeriod) error {
	sqlStmt, args, err := r.builder.Update("lumio.payments").
		Set("period_start", period.Start).
		Set("period_end", period.End).
		Set("next_payment_date", period.NextPayment).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build roll period sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("roll payment period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Cancel transitions the payment to cancelled.
func (r *PaymentRepository) Cancel(ctx context.Context, paymentID int64) error {
	sqlStmt, args, err := r.builder.Update("lumio.payments").
		Set("status", string(domain.PaymentStatusCancelled)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cancel payment sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("cancel payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetPaymentsURL persists the hosted checkout URL returned by the provider.
func (r *PaymentRepository) SetPaymentsURL(ctx context.Context, paymentID int64, url string) error {
	sqlStmt, args, err := r.builder.Update("lumio.payments").
		Set("payments_url", url).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set payments url sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("set payments url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListAutoRenewing returns successful subscription payments for the profile,
// excluding the supplied payment id.
func (r *PaymentRepository) ListAutoRenewing(ctx context.Context, profileID string, excludePaymentID int64) ([]domain.Payment, error) {
	sqlStmt, args, err := r.builder.
		Select(paymentColumns...).
		From("lumio.payments").
		Where(squirrel.Eq{"profile_id": profileID, "status": string(domain.PaymentStatusSuccessful)}).
		Where(squirrel.NotEq{"id": excludePaymentID}).
		Where("subscription_id IS NOT NULL").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list auto-renewing sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query auto-renewing payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}

	return payments, nil
}

func (r *PaymentRepository) getOne(ctx context.Context, where any) (*domain.Payment, error) {
	sqlStmt, args, err := r.builder.
		Select(paymentColumns...).
		From("lumio.payments").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select payment sql: %w", err)
	}

	return scanPayment(r.exec.QueryRow(ctx, sqlStmt, args...))
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment        domain.Payment
		status         string
		subscriptionID sql.NullString
		periodStart    sql.NullTime
		periodEnd      sql.NullTime
		nextPayment    sql.NullTime
		paymentsURL    sql.NullString
	)

	if err := row.Scan(
		&payment.ID,
		&payment.ProfileID,
		&payment.Amount,
		&payment.Currency,
		&status,
		&subscriptionID,
		&payment.SubscriptionType,
		&periodStart,
		&periodEnd,
		&nextPayment,
		&paymentsURL,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	payment.Status = domain.PaymentStatus(status)
	if subscriptionID.Valid {
		id := subscriptionID.String
		payment.SubscriptionID = &id
	}
	if periodStart.Valid {
		t := periodStart.Time
		payment.PeriodStart = &t
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		payment.PeriodEnd = &t
	}
	if nextPayment.Valid {
		t := nextPayment.Time
		payment.NextPaymentDate = &t
	}
	if paymentsURL.Valid {
		url := paymentsURL.String
		payment.PaymentsURL = &url
	}

	return &payment, nil
}

var _ port.PaymentRepository = (*PaymentRepository)(nil)
