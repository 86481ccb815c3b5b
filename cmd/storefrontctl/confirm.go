package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
	"github.com/nyashahama/gallery-paywall-backend/internal/viewer"
)

// testCardConfirmer stands in for Stripe.js on the command line: it confirms
// the PaymentIntent server-side with Stripe's test Visa card. Test mode only.
type testCardConfirmer struct {
	secretKey string
}

func newTestCardConfirmer(secretKey string) (*testCardConfirmer, error) {
	switch {
	case secretKey == "":
		return nil, errors.New("embedded purchases need STRIPE_SECRET_KEY (a test key) to confirm; use --redirect otherwise")
	case !strings.HasPrefix(secretKey, "sk_test_"):
		return nil, errors.New("refusing to confirm with a live key: STRIPE_SECRET_KEY must start with sk_test_")
	}
	return &testCardConfirmer{secretKey: secretKey}, nil
}

func (c *testCardConfirmer) Confirm(ctx context.Context, intent viewer.Intent) error {
	if intent.PaymentIntentID == "" {
		return errors.New("intent has no payment intent id")
	}
	stripe.Key = c.secretKey

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String("pm_card_visa"),
		ReturnURL:     stripe.String("https://example.com/return"),
	}
	params.Context = ctx

	pi, err := paymentintent.Confirm(intent.PaymentIntentID, params)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", intent.PaymentIntentID, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("payment %s is %s (%s)", pi.ID, pi.Status, pricing.FormatMinor(pi.Amount)+" "+string(pi.Currency))
	}
	return nil
}
