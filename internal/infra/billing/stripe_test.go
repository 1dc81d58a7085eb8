package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

const testWebhookSecret = "whsec_test"

func signedHeader(t *testing.T, payload []byte) string {
	t.Helper()

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object,
	))
}

func newTestProvider() *StripeProvider {
	return NewStripeProvider(Config{APIKey: "sk_test", WebhookSecret: testWebhookSecret}, nil)
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	provider := newTestProvider()

	payload := eventPayload("checkout.session.completed", `{"id":"cs_1"}`)
	if _, err := provider.VerifyWebhook(payload, "t=1,v1=deadbeef"); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestVerifyWebhookCheckoutCompleted(t *testing.T) {
	provider := newTestProvider()

	payload := eventPayload("checkout.session.completed",
		`{"id":"cs_1","client_reference_id":"42","payment_status":"paid","subscription":"sub_123"}`)

	event, err := provider.VerifyWebhook(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}

	if event.Kind != domain.WebhookSessionCompleted {
		t.Fatalf("expected session-completed, got %v", event.Kind)
	}
	completed := event.SessionCompleted
	if completed == nil || completed.PaymentID != 42 || !completed.Paid {
		t.Fatalf("unexpected payload: %+v", completed)
	}
	if completed.SubscriptionID != "sub_123" {
		t.Fatalf("expected sub_123, got %q", completed.SubscriptionID)
	}
}

func TestVerifyWebhookInvoicePaid(t *testing.T) {
	provider := newTestProvider()

	payload := eventPayload("invoice.paid",
		`{"id":"in_1","status":"paid","period_start":1748736000,"period_end":1751328000,`+
			`"parent":{"subscription_details":{"subscription":"sub_123"}}}`)

	event, err := provider.VerifyWebhook(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}

	if event.Kind != domain.WebhookInvoicePaid {
		t.Fatalf("expected invoice-paid, got %v", event.Kind)
	}
	invoice := event.InvoicePaid
	if invoice == nil || invoice.SubscriptionID != "sub_123" || !invoice.Paid {
		t.Fatalf("unexpected payload: %+v", invoice)
	}
	if invoice.PeriodStart.IsZero() || !invoice.PeriodEnd.After(invoice.PeriodStart) {
		t.Fatalf("unexpected period: %v .. %v", invoice.PeriodStart, invoice.PeriodEnd)
	}
}

func TestVerifyWebhookInvoiceWithoutSubscriptionIgnored(t *testing.T) {
	provider := newTestProvider()

	// One-off invoices have no subscription parent; they are not reconciled.
	payload := eventPayload("invoice.paid", `{"id":"in_1","status":"paid"}`)

	event, err := provider.VerifyWebhook(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if event.Kind != domain.WebhookIgnored {
		t.Fatalf("expected ignored, got %v", event.Kind)
	}
}

func TestVerifyWebhookSubscriptionDeleted(t *testing.T) {
	provider := newTestProvider()

	payload := eventPayload("customer.subscription.deleted", `{"id":"sub_123"}`)

	event, err := provider.VerifyWebhook(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if event.Kind != domain.WebhookSubscriptionDeleted {
		t.Fatalf("expected subscription-deleted, got %v", event.Kind)
	}
	if event.SubscriptionDeleted == nil || event.SubscriptionDeleted.SubscriptionID != "sub_123" {
		t.Fatalf("unexpected payload: %+v", event.SubscriptionDeleted)
	}
}

func TestVerifyWebhookUnknownTypeIgnored(t *testing.T) {
	provider := newTestProvider()

	payload := eventPayload("customer.created", `{"id":"cus_1"}`)

	event, err := provider.VerifyWebhook(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if event.Kind != domain.WebhookIgnored {
		t.Fatalf("expected ignored, got %v", event.Kind)
	}
}

func TestSubscriptionIDFromInvoiceNilSafety(t *testing.T) {
	if id := subscriptionIDFromInvoice(stripe.Invoice{}); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
	if id := subscriptionIDFromInvoice(stripe.Invoice{Parent: &stripe.InvoiceParent{}}); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}

	invoice := stripe.Invoice{
		Parent: &stripe.InvoiceParent{
			SubscriptionDetails: &stripe.InvoiceParentSubscriptionDetails{
				Subscription: &stripe.Subscription{ID: "sub_123"},
			},
		},
	}
	if id := subscriptionIDFromInvoice(invoice); id != "sub_123" {
		t.Fatalf("expected sub_123, got %q", id)
	}
}
