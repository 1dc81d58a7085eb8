package port

import (
	"context"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// PaymentRepository deals with subscription payment rows.
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) (int64, error)
	GetByID(ctx context.Context, paymentID int64) (*domain.Payment, error)
	// GetBySubscriptionID returns repository.ErrNotFound when no payment references
	// the provider subscription yet.
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Payment, error)
	// MarkSuccessful transitions the row to successful and binds the provider
	// subscription and its billing period.
	MarkSuccessful(ctx context.Context, paymentID int64, subscriptionID string, period domain.BillingPeriod) error
	// RollPeriod moves the billing window of a successful payment forward.
	RollPeriod(ctx context.Context, paymentID int64, period domain.BillingPeriod) error
	Cancel(ctx context.Context, paymentID int64) error
	SetPaymentsURL(ctx context.Context, paymentID int64, url string) error
	// ListAutoRenewing returns successful subscription payments of the profile,
	// excluding the supplied payment id.
	ListAutoRenewing(ctx context.Context, profileID string, excludePaymentID int64) ([]domain.Payment, error)
}
