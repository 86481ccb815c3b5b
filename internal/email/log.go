package email

import (
	"context"
	"log/slog"
)

// logSender records receipts in the log instead of sending them. Used when
// RESEND_API_KEY is unset, typically in development.
type logSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender that only logs.
func NewLogSender(logger *slog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) SendPurchaseReceipt(ctx context.Context, p PurchaseReceiptParams) error {
	s.logger.InfoContext(ctx, "email: purchase receipt (not sent)",
		"to", p.To, "item", p.ItemTitle, "amount", FormatAmount(p.AmountMinor, p.Currency))
	return nil
}

func (s *logSender) SendLifetimeReceipt(ctx context.Context, p LifetimeReceiptParams) error {
	s.logger.InfoContext(ctx, "email: lifetime receipt (not sent)",
		"to", p.To, "amount", FormatAmount(p.AmountMinor, p.Currency))
	return nil
}
