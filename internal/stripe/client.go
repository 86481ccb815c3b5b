// Package stripe defines the interface for Stripe API calls and webhook
// verification, and provides helpers that turn verified events into the
// typed completions the paywall records.
package stripe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/stripe/stripe-go/v82"
)

// Event types the paywall acts on.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// CreatePaymentIntentParams holds the inputs for creating a Stripe PI.
type CreatePaymentIntentParams struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// PaymentIntent is the subset of a Stripe PaymentIntent that callers need.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// CreateCheckoutSessionParams describes a single-line hosted checkout.
type CreateCheckoutSessionParams struct {
	AmountMinor        int64
	Currency           string
	ProductName        string
	ProductDescription string
	ImageURL           string
	SuccessURL         string
	CancelURL          string
	ClientReferenceID  string
	// Metadata is attached to the session and to its PaymentIntent.
	Metadata map[string]string
}

// CheckoutSession is the subset of a Stripe Checkout Session returned on create.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutSessionStatus is what a return page needs to corroborate a redirect.
type CheckoutSessionStatus struct {
	ID            string
	Status        string // open | complete | expired
	PaymentStatus string // paid | unpaid | no_payment_required
	Metadata      map[string]string
}

// Event is a parsed Stripe webhook event. DataRaw contains the raw JSON of the
// event's data.object so handlers can unmarshal only what they need.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// Completion is a successful payment extracted from a verified event.
type Completion struct {
	// PaymentRef is the PaymentIntent id; checkout sessions and their
	// payment_intent.succeeded events share it.
	PaymentRef    string
	AmountMinor   int64
	Currency      string
	PurchaserID   string
	CustomerEmail string
	Metadata      map[string]string
	Paid          bool
}

// ─── CLIENT INTERFACE ─────────────────────────────────────────────────────────

// Client is the interface the paywall package uses for all Stripe calls.
// The concrete implementation wraps the official stripe-go SDK.
// Tests inject a stub.
type Client interface {
	// CreatePaymentIntent creates a PI confirmable by Stripe.js.
	CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error)

	// CreateCheckoutSession creates a hosted checkout in payment mode.
	CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (CheckoutSession, error)

	// GetCheckoutSession fetches the current status of a session by id.
	GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSessionStatus, error)

	// VerifyWebhook validates the Stripe-Signature header and returns the
	// parsed event. Returns an error if the signature is invalid or expired.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

// ToUpsertParams converts a parsed Event and its raw payload into the params
// needed by db.Querier.UpsertStripeEvent.
func ToUpsertParams(event Event, rawPayload []byte) db.UpsertStripeEventParams {
	return db.UpsertStripeEventParams{
		StripeEventID: event.ID,
		Type:          event.Type,
		Payload:       json.RawMessage(rawPayload),
	}
}

// ToMarkFailedParams builds the params for db.Querier.MarkStripeEventFailed.
func ToMarkFailedParams(eventID string, err error) db.MarkStripeEventFailedParams {
	return db.MarkStripeEventFailedParams{
		StripeEventID: eventID,
		Error:         sql.NullString{String: err.Error(), Valid: true},
	}
}

// ExtractCheckoutCompletion reads a checkout.session.completed data.object.
// The purchaser comes from client_reference_id, falling back to metadata.
func ExtractCheckoutCompletion(event Event) (Completion, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.DataRaw, &s); err != nil {
		return Completion{}, fmt.Errorf("stripe: unmarshal checkout session: %w", err)
	}
	if s.PaymentIntent == nil || s.PaymentIntent.ID == "" {
		return Completion{}, fmt.Errorf("stripe: no payment_intent on checkout session in event %s", event.ID)
	}

	c := Completion{
		PaymentRef:  s.PaymentIntent.ID,
		AmountMinor: s.AmountTotal,
		Currency:    string(s.Currency),
		PurchaserID: s.ClientReferenceID,
		Metadata:    s.Metadata,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if c.PurchaserID == "" {
		c.PurchaserID = s.Metadata["purchaserId"]
	}
	if s.CustomerDetails != nil {
		c.CustomerEmail = s.CustomerDetails.Email
	}
	return c, nil
}

// ExtractPaymentIntentCompletion reads a payment_intent.succeeded data.object.
func ExtractPaymentIntentCompletion(event Event) (Completion, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.DataRaw, &pi); err != nil {
		return Completion{}, fmt.Errorf("stripe: unmarshal payment intent: %w", err)
	}
	if pi.ID == "" {
		return Completion{}, fmt.Errorf("stripe: payment intent id is empty in event %s", event.ID)
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	return Completion{
		PaymentRef:    pi.ID,
		AmountMinor:   amount,
		Currency:      string(pi.Currency),
		PurchaserID:   pi.Metadata["purchaserId"],
		CustomerEmail: pi.ReceiptEmail,
		Metadata:      pi.Metadata,
		Paid:          pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}
