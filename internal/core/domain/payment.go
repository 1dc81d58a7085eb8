package domain

import "time"

// PaymentStatus tracks the subscription payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// Payment is a subscription payment row. SubscriptionID stays nil until the first
// successful charge is confirmed by the provider.
type Payment struct {
	ID               int64
	ProfileID        string
	Amount           int64
	Currency         string
	Status           PaymentStatus
	SubscriptionID   *string
	SubscriptionType string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	NextPaymentDate  *time.Time
	PaymentsURL      *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AutoRenews reports whether the payment represents a live auto-renewing subscription.
func (p Payment) AutoRenews() bool {
	return p.Status == PaymentStatusSuccessful && p.SubscriptionID != nil
}

// BillingPeriod is the provider-reported charge window for a subscription.
type BillingPeriod struct {
	Start       time.Time
	End         time.Time
	NextPayment time.Time
}
