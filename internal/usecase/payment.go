package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

// PaymentService runs the checkout saga and reconciles provider webhooks onto the
// local payment rows.
type PaymentService struct {
	payments port.PaymentRepository
	billing  port.BillingProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentService constructs a PaymentService instance.
func NewPaymentService(payments port.PaymentRepository, billing port.BillingProvider, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments: payments,
		billing:  billing,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *PaymentService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateCheckout opens a hosted checkout session for the profile. The pending row
// is created first so the webhook has something to reconcile against; any later
// step failing cancels the row so no payment is ever stranded in pending.
func (s *PaymentService) CreateCheckout(ctx context.Context, profileID string, amount int64, currency, subscriptionType string) (string, int64, error) {
	if profileID == "" {
		return "", 0, fmt.Errorf("profile id is required")
	}
	if amount <= 0 {
		return "", 0, fmt.Errorf("amount must be positive")
	}

	now := s.now()
	paymentID, err := s.payments.Create(ctx, domain.Payment{
		ProfileID:        profileID,
		Amount:           amount,
		Currency:         currency,
		Status:           domain.PaymentStatusPending,
		SubscriptionType: subscriptionType,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return "", 0, fmt.Errorf("create payment: %w", err)
	}

	url, err := s.billing.CreateCheckoutSession(ctx, port.CheckoutParams{
		PaymentID:        paymentID,
		ProfileID:        profileID,
		Amount:           amount,
		Currency:         currency,
		SubscriptionType: subscriptionType,
	})
	if err != nil {
		s.compensate(ctx, paymentID)
		return "", 0, fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.payments.SetPaymentsURL(ctx, paymentID, url); err != nil {
		s.compensate(ctx, paymentID)
		return "", 0, fmt.Errorf("persist checkout url: %w", err)
	}

	return url, paymentID, nil
}

// HandleWebhook verifies the provider signature and reconciles the event.
// Verification failure precedes all branching.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.billing.VerifyWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("verify webhook: %w", err)
	}
	return s.ProcessEvent(ctx, event)
}

// ProcessEvent dispatches one resolved webhook event.
func (s *PaymentService) ProcessEvent(ctx context.Context, event domain.WebhookEvent) error {
	switch event.Kind {
	case domain.WebhookSessionCompleted:
		return s.onSessionCompleted(ctx, event.ID, event.SessionCompleted)
	case domain.WebhookInvoicePaid:
		return s.onInvoicePaid(ctx, event.ID, event.InvoicePaid)
	case domain.WebhookSubscriptionDeleted:
		return s.onSubscriptionDeleted(ctx, event.ID, event.SubscriptionDeleted)
	case domain.WebhookIgnored:
		return nil
	default:
		return nil
	}
}

// onSessionCompleted activates the payment the checkout session referenced. The
// row must already exist; an unknown reference is an error with no mutation so the
// provider retries once the row appears.
func (s *PaymentService) onSessionCompleted(ctx context.Context, eventID string, completed *domain.SessionCompletedEvent) error {
	if completed == nil || !completed.Paid {
		return nil
	}
	if completed.SubscriptionID == "" {
		return fmt.Errorf("event %s: completed session has no subscription", eventID)
	}

	payment, err := s.payments.GetByID(ctx, completed.PaymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("checkout completed for unknown payment",
				zap.String("event_id", eventID),
				zap.Int64("payment_id", completed.PaymentID))
			return ErrPaymentNotFound
		}
		return fmt.Errorf("get payment: %w", err)
	}

	// One auto-renewing subscription per profile: ask the provider to let every
	// competing subscription lapse. Best effort per subscription; a provider error
	// here must not block activating the new payment.
	competing, err := s.payments.ListAutoRenewing(ctx, payment.ProfileID, payment.ID)
	if err != nil {
		return fmt.Errorf("list auto-renewing payments: %w", err)
	}
	for _, other := range competing {
		if !other.AutoRenews() {
			continue
		}
		if err := s.billing.DisableAutoRenewal(ctx, *other.SubscriptionID); err != nil {
			s.logger.Warn("disable auto renewal failed",
				zap.String("event_id", eventID),
				zap.Int64("payment_id", other.ID),
				zap.String("subscription_id", *other.SubscriptionID),
				zap.Error(err))
		}
	}

	period, err := s.billing.GetBillingPeriod(ctx, completed.SubscriptionID)
	if err != nil {
		return fmt.Errorf("get billing period: %w", err)
	}

	if err := s.payments.MarkSuccessful(ctx, payment.ID, completed.SubscriptionID, period); err != nil {
		return fmt.Errorf("mark payment successful: %w", err)
	}

	s.logger.Info("payment activated",
		zap.String("event_id", eventID),
		zap.Int64("payment_id", payment.ID),
		zap.String("subscription_id", completed.SubscriptionID))

	return nil
}

// onInvoicePaid rolls the billing window forward. The row can legitimately be
// missing when the invoice webhook outruns the session-completed one; that is a
// skip, not an error, because session-completed will carry the same period.
func (s *PaymentService) onInvoicePaid(ctx context.Context, eventID string, invoice *domain.InvoicePaidEvent) error {
	if invoice == nil || !invoice.Paid {
		return nil
	}

	payment, err := s.payments.GetBySubscriptionID(ctx, invoice.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("invoice for untracked subscription, skipping",
				zap.String("event_id", eventID),
				zap.String("subscription_id", invoice.SubscriptionID))
			return nil
		}
		return fmt.Errorf("get payment by subscription: %w", err)
	}

	period := domain.BillingPeriod{
		Start:       invoice.PeriodStart,
		End:         invoice.PeriodEnd,
		NextPayment: invoice.PeriodEnd,
	}
	if err := s.payments.RollPeriod(ctx, payment.ID, period); err != nil {
		return fmt.Errorf("roll payment period: %w", err)
	}

	return nil
}

// onSubscriptionDeleted marks the tracked payment cancelled.
func (s *PaymentService) onSubscriptionDeleted(ctx context.Context, eventID string, deleted *domain.SubscriptionDeletedEvent) error {
	if deleted == nil {
		return nil
	}

	payment, err := s.payments.GetBySubscriptionID(ctx, deleted.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get payment by subscription: %w", err)
	}

	if err := s.payments.Cancel(ctx, payment.ID); err != nil {
		return fmt.Errorf("cancel payment: %w", err)
	}

	s.logger.Info("subscription cancelled",
		zap.String("event_id", eventID),
		zap.Int64("payment_id", payment.ID),
		zap.String("subscription_id", deleted.SubscriptionID))

	return nil
}

func (s *PaymentService) compensate(ctx context.Context, paymentID int64) {
	if err := s.payments.Cancel(ctx, paymentID); err != nil {
		s.logger.Error("checkout compensation failed",
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
	}
}
