package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/email"
)

// ReceiptKind says which table a receipt row lives in.
type ReceiptKind string

const (
	ReceiptPurchase ReceiptKind = "purchase"
	ReceiptLifetime ReceiptKind = "lifetime"
)

// Receipt identifies one receipt to deliver.
type Receipt struct {
	Kind ReceiptKind
	ID   uuid.UUID
}

func (r Receipt) String() string { return string(r.Kind) + ":" + r.ID.String() }

// Job delivers one receipt email and stamps receipt_sent_at.
type Job struct {
	q      db.Querier
	mailer email.Sender
	logger *slog.Logger
}

// NewJob constructs a Job with all required dependencies.
func NewJob(q db.Querier, mailer email.Sender, logger *slog.Logger) *Job {
	return &Job{q: q, mailer: mailer, logger: logger}
}

// Run delivers the receipt. Rows that were already sent, or that carry no
// customer email, complete without sending. Any returned error is retried
// by the Runner.
func (j *Job) Run(ctx context.Context, r Receipt) error {
	log := j.logger.With("receipt", r.String())

	switch r.Kind {
	case ReceiptPurchase:
		return j.runPurchase(ctx, r.ID, log)
	case ReceiptLifetime:
		return j.runLifetime(ctx, r.ID, log)
	default:
		return fmt.Errorf("job: unknown receipt kind %q", r.Kind)
	}
}

func (j *Job) runPurchase(ctx context.Context, id uuid.UUID, log *slog.Logger) error {
	purchase, err := j.q.GetPurchaseByID(ctx, id)
	if err != nil {
		return fmt.Errorf("job: get purchase: %w", err)
	}
	if purchase.ReceiptSentAt.Valid {
		log.Debug("job: receipt already sent")
		return nil
	}
	if !purchase.CustomerEmail.Valid || purchase.CustomerEmail.String == "" {
		log.Warn("job: purchase has no email address, skipping receipt")
		return nil
	}

	// A missing catalog row should not block the receipt; fall back to the id.
	title := purchase.ContentItemID
	item, err := j.q.GetContentItem(ctx, purchase.ContentItemID)
	switch {
	case err == nil:
		title = item.Title
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("job: get content item: %w", err)
	}

	if err := j.mailer.SendPurchaseReceipt(ctx, email.PurchaseReceiptParams{
		To:          purchase.CustomerEmail.String,
		ItemTitle:   title,
		AmountMinor: purchase.AmountMinor,
		Currency:    purchase.Currency,
		PaymentRef:  purchase.PaymentRef,
	}); err != nil {
		return fmt.Errorf("job: send purchase receipt: %w", err)
	}

	if err := j.q.MarkPurchaseReceiptSent(ctx, id); err != nil {
		return fmt.Errorf("job: mark purchase receipt sent: %w", err)
	}
	log.Info("job: purchase receipt sent", "payment_ref", purchase.PaymentRef)
	return nil
}

func (j *Job) runLifetime(ctx context.Context, id uuid.UUID, log *slog.Logger) error {
	grant, err := j.q.GetLifetimeGrantByID(ctx, id)
	if err != nil {
		return fmt.Errorf("job: get lifetime grant: %w", err)
	}
	if grant.ReceiptSentAt.Valid {
		log.Debug("job: receipt already sent")
		return nil
	}
	if !grant.CustomerEmail.Valid || grant.CustomerEmail.String == "" {
		log.Warn("job: lifetime grant has no email address, skipping receipt")
		return nil
	}

	if err := j.mailer.SendLifetimeReceipt(ctx, email.LifetimeReceiptParams{
		To:          grant.CustomerEmail.String,
		AmountMinor: grant.AmountMinor,
		Currency:    grant.Currency,
		PaymentRef:  grant.PaymentRef,
	}); err != nil {
		return fmt.Errorf("job: send lifetime receipt: %w", err)
	}

	if err := j.q.MarkLifetimeReceiptSent(ctx, id); err != nil {
		return fmt.Errorf("job: mark lifetime receipt sent: %w", err)
	}
	log.Info("job: lifetime receipt sent", "payment_ref", grant.PaymentRef)
	return nil
}
