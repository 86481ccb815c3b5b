package stripe_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	stripeinternal "github.com/nyashahama/gallery-paywall-backend/internal/stripe"
)

// ─── ExtractCheckoutCompletion ────────────────────────────────────────────────

func TestExtractCheckoutCompletion_Success(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id":                  "cs_test_1",
		"object":              "checkout.session",
		"payment_intent":      "pi_abc123",
		"payment_status":      "paid",
		"amount_total":        199,
		"currency":            "gbp",
		"client_reference_id": "user_1",
		"customer_details":    map[string]any{"email": "buyer@example.com"},
		"metadata":            map[string]string{"type": "single", "contentItemId": "A"},
	})

	c, err := stripeinternal.ExtractCheckoutCompletion(stripeinternal.Event{ID: "evt_1", DataRaw: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PaymentRef != "pi_abc123" {
		t.Errorf("PaymentRef: got %q", c.PaymentRef)
	}
	if c.AmountMinor != 199 || c.Currency != "gbp" {
		t.Errorf("amount: got %d %s", c.AmountMinor, c.Currency)
	}
	if c.PurchaserID != "user_1" {
		t.Errorf("PurchaserID: got %q", c.PurchaserID)
	}
	if c.CustomerEmail != "buyer@example.com" {
		t.Errorf("CustomerEmail: got %q", c.CustomerEmail)
	}
	if !c.Paid {
		t.Error("expected Paid=true")
	}
	if c.Metadata["contentItemId"] != "A" {
		t.Errorf("metadata: got %v", c.Metadata)
	}
}

func TestExtractCheckoutCompletion_PurchaserFallsBackToMetadata(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id":             "cs_test_2",
		"payment_intent": "pi_2",
		"payment_status": "paid",
		"metadata":       map[string]string{"type": "lifetime", "purchaserId": "user_9"},
	})

	c, err := stripeinternal.ExtractCheckoutCompletion(stripeinternal.Event{DataRaw: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PurchaserID != "user_9" {
		t.Errorf("PurchaserID: got %q", c.PurchaserID)
	}
}

func TestExtractCheckoutCompletion_UnpaidSession(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id":             "cs_test_3",
		"payment_intent": "pi_3",
		"payment_status": "unpaid",
	})

	c, err := stripeinternal.ExtractCheckoutCompletion(stripeinternal.Event{DataRaw: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Paid {
		t.Error("expected Paid=false for unpaid session")
	}
}

func TestExtractCheckoutCompletion_MissingPaymentIntentReturnsError(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{"id": "cs_test_4", "payment_status": "paid"})

	_, err := stripeinternal.ExtractCheckoutCompletion(stripeinternal.Event{DataRaw: raw})
	if err == nil {
		t.Error("expected error when payment_intent is missing")
	}
}

func TestExtractCheckoutCompletion_MalformedJSONReturnsError(t *testing.T) {
	_, err := stripeinternal.ExtractCheckoutCompletion(stripeinternal.Event{DataRaw: json.RawMessage(`{bad json`)})
	if err == nil {
		t.Error("expected error for malformed JSON")
	}
}

// ─── ExtractPaymentIntentCompletion ───────────────────────────────────────────

func TestExtractPaymentIntentCompletion_Success(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id":              "pi_abc123",
		"object":          "payment_intent",
		"status":          "succeeded",
		"amount":          199,
		"amount_received": 199,
		"currency":        "gbp",
		"receipt_email":   "buyer@example.com",
		"metadata":        map[string]string{"type": "single", "contentItemId": "A", "purchaserId": "user_1"},
	})

	c, err := stripeinternal.ExtractPaymentIntentCompletion(stripeinternal.Event{ID: "evt_2", DataRaw: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PaymentRef != "pi_abc123" || c.AmountMinor != 199 {
		t.Errorf("got %+v", c)
	}
	if c.PurchaserID != "user_1" {
		t.Errorf("PurchaserID: got %q", c.PurchaserID)
	}
	if !c.Paid {
		t.Error("expected Paid=true")
	}
}

func TestExtractPaymentIntentCompletion_EmptyIDReturnsError(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{"id": "", "object": "payment_intent"})

	_, err := stripeinternal.ExtractPaymentIntentCompletion(stripeinternal.Event{DataRaw: raw})
	if err == nil {
		t.Error("expected error for empty id, got nil")
	}
}

// ─── VerifyWebhook ────────────────────────────────────────────────────────────

const testSecret = "whsec_test_secret"

func signedEvent(t *testing.T, secret string) ([]byte, string) {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{
		"id":          "evt_signed",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{"id": "cs_signed", "object": "checkout.session"},
		},
	})
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	client := stripeinternal.NewClient("sk_test_unused", 0)
	payload, header := signedEvent(t, testSecret)

	event, err := client.VerifyWebhook(payload, header, testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_signed" || event.Type != stripeinternal.EventCheckoutSessionCompleted {
		t.Errorf("got %+v", event)
	}
	if len(event.DataRaw) == 0 {
		t.Error("expected DataRaw to carry data.object")
	}
}

func TestVerifyWebhook_WrongSecretRejected(t *testing.T) {
	client := stripeinternal.NewClient("sk_test_unused", 0)
	payload, header := signedEvent(t, "whsec_other")

	if _, err := client.VerifyWebhook(payload, header, testSecret); err == nil {
		t.Error("expected verification error for wrong secret")
	}
}

func TestVerifyWebhook_TamperedPayloadRejected(t *testing.T) {
	client := stripeinternal.NewClient("sk_test_unused", 0)
	payload, header := signedEvent(t, testSecret)
	payload = append(payload[:len(payload)-1], []byte(`,"x":1}`)...)

	if _, err := client.VerifyWebhook(payload, header, testSecret); err == nil {
		t.Error("expected verification error for tampered payload")
	}
}

// ─── ToUpsertParams / ToMarkFailedParams ──────────────────────────────────────

func TestToUpsertParams_SetsAllFields(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	event := stripeinternal.Event{
		ID:   "evt_123",
		Type: "payment_intent.succeeded",
	}

	params := stripeinternal.ToUpsertParams(event, payload)

	if params.StripeEventID != "evt_123" {
		t.Errorf("StripeEventID: got %q", params.StripeEventID)
	}
	if params.Type != "payment_intent.succeeded" {
		t.Errorf("Type: got %q", params.Type)
	}
	if string(params.Payload) != string(payload) {
		t.Errorf("Payload mismatch")
	}
}

func TestToMarkFailedParams_SetsErrorMessage(t *testing.T) {
	testErr := &testError{"something went wrong"}
	params := stripeinternal.ToMarkFailedParams("evt_456", testErr)

	if params.StripeEventID != "evt_456" {
		t.Errorf("StripeEventID: got %q", params.StripeEventID)
	}
	if !params.Error.Valid || params.Error.String != "something went wrong" {
		t.Errorf("error: got %+v", params.Error)
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
