package domain

import "time"

// WebhookEventKind discriminates provider webhook payloads after signature
// verification. The raw provider event is resolved into exactly one of these once,
// at the top of the reconciler.
type WebhookEventKind int

const (
	// WebhookIgnored covers every event type the reconciler does not act on.
	WebhookIgnored WebhookEventKind = iota
	WebhookSessionCompleted
	WebhookInvoicePaid
	WebhookSubscriptionDeleted
)

// WebhookEvent is the tagged union of provider events the reconciler handles.
// Only the payload matching Kind is populated.
type WebhookEvent struct {
	ID   string
	Kind WebhookEventKind

	SessionCompleted    *SessionCompletedEvent
	InvoicePaid         *InvoicePaidEvent
	SubscriptionDeleted *SubscriptionDeletedEvent
}

// SessionCompletedEvent signals a finished checkout session.
type SessionCompletedEvent struct {
	// PaymentID is the local payment row referenced by the checkout session's
	// client_reference_id.
	PaymentID      int64
	SubscriptionID string
	Paid           bool
}

// InvoicePaidEvent signals a period rollover charge on an existing subscription.
type InvoicePaidEvent struct {
	SubscriptionID string
	Paid           bool
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// SubscriptionDeletedEvent signals the provider terminated a subscription.
type SubscriptionDeletedEvent struct {
	SubscriptionID string
}
