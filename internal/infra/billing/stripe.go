package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
)

// Config carries the Stripe credentials and redirect URLs.
type Config struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// StripeProvider implements port.BillingProvider against the Stripe API.
type StripeProvider struct {
	cfg    Config
	logger *zap.Logger
}

// NewStripeProvider sets the global Stripe key and returns the provider.
func NewStripeProvider(cfg Config, logger *zap.Logger) *StripeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	stripe.Key = cfg.APIKey
	return &StripeProvider{cfg: cfg, logger: logger}
}

// CreateCheckoutSession opens a subscription-mode checkout session. The local
// payment id travels as client_reference_id so the completed-session webhook can
// find its row back.
func (p *StripeProvider) CreateCheckoutSession(_ context.Context, params port.CheckoutParams) (string, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(strconv.FormatInt(params.PaymentID, 10)),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.SubscriptionType),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.cfg.SuccessURL),
		CancelURL:  stripe.String(p.cfg.CancelURL),
		Metadata: map[string]string{
			"profile_id": params.ProfileID,
		},
	}

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	return sess.URL, nil
}

// GetBillingPeriod fetches the subscription and derives the current charge window.
// The next payment date comes from the billing-cycle anchor projected one period
// forward; the item-level bounds carry the active window.
func (p *StripeProvider) GetBillingPeriod(_ context.Context, subscriptionID string) (domain.BillingPeriod, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return domain.BillingPeriod{}, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return domain.BillingPeriod{}, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	item := sub.Items.Data[0]
	period := domain.BillingPeriod{
		Start:       time.Unix(item.CurrentPeriodStart, 0).UTC(),
		End:         time.Unix(item.CurrentPeriodEnd, 0).UTC(),
		NextPayment: time.Unix(item.CurrentPeriodEnd, 0).UTC(),
	}

	return period, nil
}

// DisableAutoRenewal flags the subscription to lapse at period end instead of
// cancelling it immediately, so the already-paid window stays usable.
func (p *StripeProvider) DisableAutoRenewal(_ context.Context, subscriptionID string) error {
	_, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("disable auto renewal for %s: %w", subscriptionID, err)
	}
	return nil
}

// VerifyWebhook checks the signature and resolves the provider event into the
// tagged union. Unknown event types map to WebhookIgnored, never to an error.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (domain.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.cfg.WebhookSecret)
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("verify webhook signature: %w", err)
	}

	resolved := domain.WebhookEvent{ID: event.ID, Kind: domain.WebhookIgnored}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("unmarshal checkout session: %w", err)
		}

		paymentID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
		if err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("parse client_reference_id %q: %w", sess.ClientReferenceID, err)
		}

		completed := &domain.SessionCompletedEvent{
			PaymentID: paymentID,
			Paid:      sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		}
		if sess.Subscription != nil {
			completed.SubscriptionID = sess.Subscription.ID
		}

		resolved.Kind = domain.WebhookSessionCompleted
		resolved.SessionCompleted = completed

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("unmarshal invoice: %w", err)
		}

		subscriptionID := subscriptionIDFromInvoice(invoice)
		if subscriptionID == "" {
			p.logger.Debug("invoice without subscription parent, ignoring",
				zap.String("event_id", event.ID))
			break
		}

		resolved.Kind = domain.WebhookInvoicePaid
		resolved.InvoicePaid = &domain.InvoicePaidEvent{
			SubscriptionID: subscriptionID,
			Paid:           invoice.Status == stripe.InvoiceStatusPaid,
			PeriodStart:    time.Unix(invoice.PeriodStart, 0).UTC(),
			PeriodEnd:      time.Unix(invoice.PeriodEnd, 0).UTC(),
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("unmarshal subscription: %w", err)
		}

		resolved.Kind = domain.WebhookSubscriptionDeleted
		resolved.SubscriptionDeleted = &domain.SubscriptionDeletedEvent{SubscriptionID: sub.ID}

	default:
		p.logger.Debug("ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)))
	}

	return resolved, nil
}

// subscriptionIDFromInvoice digs the subscription out of the invoice parent.
func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

var _ port.BillingProvider = (*StripeProvider)(nil)
