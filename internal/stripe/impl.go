package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeClient is the concrete implementation of Client backed by the
// official stripe-go SDK. Construct it with NewClient.
type stripeClient struct {
	secretKey string
	tolerance time.Duration
}

// NewClient returns a Client backed by the Stripe SDK. tolerance bounds the
// age of a webhook signature timestamp; zero uses the SDK default.
func NewClient(secretKey string, tolerance time.Duration) Client {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &stripeClient{secretKey: secretKey, tolerance: tolerance}
}

// CreatePaymentIntent creates a PaymentIntent for the canonical amount with
// automatic payment methods, so Stripe.js can confirm it client-side.
func (c *stripeClient) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error) {
	stripe.Key = c.secretKey

	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountMinor),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: copyMetadata(p.Metadata),
	}
	if p.Description != "" {
		piParams.Description = stripe.String(p.Description)
	}
	// Propagate context deadline to the Stripe HTTP call.
	piParams.Context = ctx

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	return PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// CreateCheckoutSession creates a hosted Checkout Session with a single
// price_data line item. Metadata is copied onto payment_intent_data so the
// resulting payment_intent.succeeded event carries it too.
func (c *stripeClient) CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (CheckoutSession, error) {
	stripe.Key = c.secretKey

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(p.ProductName),
	}
	if p.ProductDescription != "" {
		product.Description = stripe.String(p.ProductDescription)
	}
	if p.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{p.ImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(p.Currency),
					ProductData: product,
					UnitAmount:  stripe.Int64(p.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Metadata:   copyMetadata(p.Metadata),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(p.Metadata),
		},
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// GetCheckoutSession retrieves a Checkout Session by id.
func (c *stripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSessionStatus, error) {
	stripe.Key = c.secretKey

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(sessionID, params)
	if err != nil {
		return CheckoutSessionStatus{}, fmt.Errorf("stripe: get checkout session %s: %w", sessionID, err)
	}
	return CheckoutSessionStatus{
		ID:            s.ID,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}, nil
}

// VerifyWebhook validates the Stripe-Signature header and returns the parsed
// event. Returns an error if the signature is invalid or older than the
// configured tolerance. Events from other API versions are accepted because
// only data.object fields that are stable across versions are read.
func (c *stripeClient) VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("stripe: webhook verification failed: %w", err)
	}

	return Event{
		ID:      stripeEvent.ID,
		Type:    string(stripeEvent.Type),
		DataRaw: stripeEvent.Data.Raw,
	}, nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
