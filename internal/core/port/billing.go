package port

import (
	"context"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// CheckoutParams describes the checkout session requested from the provider.
type CheckoutParams struct {
	PaymentID        int64
	ProfileID        string
	Amount           int64
	Currency         string
	SubscriptionType string
}

// BillingProvider wraps the external payment provider.
type BillingProvider interface {
	// CreateCheckoutSession returns the hosted checkout URL for the payment.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	// GetBillingPeriod fetches the subscription and derives its current charge
	// window from the billing-cycle anchor.
	GetBillingPeriod(ctx context.Context, subscriptionID string) (domain.BillingPeriod, error)
	// DisableAutoRenewal asks the provider to stop renewing the subscription.
	DisableAutoRenewal(ctx context.Context, subscriptionID string) error
	// VerifyWebhook checks the provider signature and resolves the payload into the
	// tagged event union. Verification failure precedes all branching.
	VerifyWebhook(payload []byte, signature string) (domain.WebhookEvent, error)
}
