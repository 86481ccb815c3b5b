// Package paywall creates payment intents against canonical prices and turns
// verified Stripe deliveries into exactly-once purchase records and
// lifetime grants.
package paywall

import (
	"errors"

	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
)

// Error taxonomy. Callers classify with errors.Is; the HTTP layer maps each
// to a status code.
var (
	// ErrNotFound means the referenced content item does not exist.
	ErrNotFound = errors.New("content item not found")

	// ErrPriceMismatch means the client-supplied price diverged from the
	// canonical price beyond tolerance.
	ErrPriceMismatch = pricing.ErrPriceMismatch

	// ErrInvalidInput covers missing or malformed fields, including webhook
	// events that lack the metadata needed to interpret them.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyEntitled means the purchaser already holds what they are
	// trying to buy.
	ErrAlreadyEntitled = errors.New("already entitled")

	// ErrSignatureInvalid means a webhook delivery failed authentication.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrProvider wraps Stripe API failures. Never retried by this package.
	ErrProvider = errors.New("payment provider error")

	// ErrPersistence wraps durable store failures.
	ErrPersistence = errors.New("persistence error")
)
