// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
)

// PurchaseReceiptParams holds the data for a single-artwork receipt.
type PurchaseReceiptParams struct {
	To          string
	ItemTitle   string
	AmountMinor int64  // e.g. 199 for £1.99
	Currency    string // e.g. "gbp"
	PaymentRef  string
}

// LifetimeReceiptParams holds the data for a lifetime-access receipt.
type LifetimeReceiptParams struct {
	To          string
	AmountMinor int64
	Currency    string
	PaymentRef  string
}

// Sender is the interface the receipt worker uses to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	SendPurchaseReceipt(ctx context.Context, p PurchaseReceiptParams) error
	SendLifetimeReceipt(ctx context.Context, p LifetimeReceiptParams) error
}

// FormatAmount renders minor units with the currency symbol, e.g. "£49.00".
// Unknown currencies fall back to the upper-cased code: "49.00 CHF".
func FormatAmount(amountMinor int64, currency string) string {
	amount := pricing.FormatMinor(amountMinor)
	switch strings.ToLower(currency) {
	case "gbp":
		return "£" + amount
	case "usd":
		return "$" + amount
	case "eur":
		return "€" + amount
	default:
		return fmt.Sprintf("%s %s", amount, strings.ToUpper(currency))
	}
}
