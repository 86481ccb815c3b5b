package paywall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/store"
	stripeinternal "github.com/nyashahama/gallery-paywall-backend/internal/stripe"
	"github.com/nyashahama/gallery-paywall-backend/internal/worker"
)

// Outcome is the result of handling one verified delivery. Every outcome is
// acknowledged to Stripe with 200.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	// OutcomeUnrecorded is a paid lifetime purchase by a purchaser who
	// already holds a grant. Nothing is written; the audit row is marked
	// failed so an operator can refund the payment.
	OutcomeUnrecorded Outcome = "unrecorded"
)

// Ledger is the write side of the durable store. *store.Store satisfies it.
type Ledger interface {
	LogStripeEvent(ctx context.Context, p db.UpsertStripeEventParams) (db.StripeEvent, error)
	MarkStripeEventFailed(ctx context.Context, p db.MarkStripeEventFailedParams) error
	RecordPurchase(ctx context.Context, p store.RecordPurchaseParams) (db.Purchase, error)
	GrantLifetime(ctx context.Context, p store.GrantLifetimeParams) (db.LifetimeGrant, error)
}

// EntitlementInvalidator drops cached entitlements after a new record.
type EntitlementInvalidator interface {
	Invalidate(ctx context.Context, purchaserID string) error
}

// WebhookProcessor verifies Stripe deliveries and records completions
// exactly once, keyed on the PaymentIntent id.
type WebhookProcessor struct {
	stripe        stripeinternal.Client
	webhookSecret string
	ledger        Ledger
	entitlements  EntitlementInvalidator
	receipts      worker.Enqueuer
	logger        *slog.Logger
}

// NewWebhookProcessor wires a WebhookProcessor. entitlements and receipts may
// be nil.
func NewWebhookProcessor(
	sc stripeinternal.Client,
	webhookSecret string,
	ledger Ledger,
	entitlements EntitlementInvalidator,
	receipts worker.Enqueuer,
	logger *slog.Logger,
) *WebhookProcessor {
	return &WebhookProcessor{
		stripe:        sc,
		webhookSecret: webhookSecret,
		ledger:        ledger,
		entitlements:  entitlements,
		receipts:      receipts,
		logger:        logger,
	}
}

// Handle authenticates and processes one delivery.
//
// Signature failures return ErrSignatureInvalid before anything is written.
// Malformed payloads and incomplete metadata return ErrInvalidInput, also
// before any write. Store failures return ErrPersistence so Stripe redelivers.
func (p *WebhookProcessor) Handle(ctx context.Context, rawBody []byte, sigHeader string) (Outcome, error) {
	event, err := p.stripe.VerifyWebhook(rawBody, sigHeader, p.webhookSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}

	log := p.logger.With("event_id", event.ID, "event_type", event.Type)

	var completion stripeinternal.Completion
	switch event.Type {
	case stripeinternal.EventCheckoutSessionCompleted:
		completion, err = stripeinternal.ExtractCheckoutCompletion(event)
	case stripeinternal.EventPaymentIntentSucceeded:
		completion, err = stripeinternal.ExtractPaymentIntentCompletion(event)
	default:
		log.DebugContext(ctx, "webhook: ignoring event type")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !completion.Paid {
		// Delayed payment methods complete the session before funds arrive;
		// the later payment_intent.succeeded carries the same metadata.
		log.InfoContext(ctx, "webhook: completion not yet paid, ignoring")
		return OutcomeIgnored, nil
	}

	tag, err := ParseMetadata(completion.Metadata)
	if err != nil {
		log.WarnContext(ctx, "webhook: rejecting event with incomplete metadata", "error", err)
		return "", err
	}

	audit, err := p.ledger.LogStripeEvent(ctx, stripeinternal.ToUpsertParams(event, rawBody))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if audit.ProcessedAt.Valid {
		log.InfoContext(ctx, "webhook: event already processed", "attempts", audit.Attempts)
		return OutcomeDuplicate, nil
	}

	outcome, receipt, err := p.record(ctx, event.ID, tag, completion)
	if err != nil {
		if markErr := p.ledger.MarkStripeEventFailed(ctx, stripeinternal.ToMarkFailedParams(event.ID, err)); markErr != nil {
			log.ErrorContext(ctx, "webhook: could not mark event failed", "error", markErr)
		}
		return "", err
	}

	log = log.With("payment_ref", completion.PaymentRef, "kind", tag.Kind, "outcome", outcome)
	switch outcome {
	case OutcomeDuplicate:
		log.InfoContext(ctx, "webhook: duplicate delivery acknowledged")
		return outcome, nil
	case OutcomeUnrecorded:
		log.WarnContext(ctx, "webhook: lifetime already active, payment needs a refund",
			"purchaser_id", completion.PurchaserID,
			"amount_minor", completion.AmountMinor,
			"currency", completion.Currency,
		)
		reason := fmt.Errorf("%w: refund %s", store.ErrLifetimeAlreadyActive, completion.PaymentRef)
		if err := p.ledger.MarkStripeEventFailed(ctx, stripeinternal.ToMarkFailedParams(event.ID, reason)); err != nil {
			log.ErrorContext(ctx, "webhook: could not mark event failed", "error", err)
		}
		return outcome, nil
	}
	log.InfoContext(ctx, "webhook: entitlement recorded", "purchaser_id", completion.PurchaserID)

	p.afterRecord(ctx, log, completion, receipt)
	return outcome, nil
}

// record performs the idempotent insert for tag's kind.
func (p *WebhookProcessor) record(
	ctx context.Context,
	eventID string,
	tag Tag,
	c stripeinternal.Completion,
) (Outcome, *worker.Receipt, error) {
	switch tag.Kind {
	case KindSingle:
		purchase, err := p.ledger.RecordPurchase(ctx, store.RecordPurchaseParams{
			StripeEventID: eventID,
			PurchaserID:   c.PurchaserID,
			ContentItemID: tag.ContentItemID,
			AmountMinor:   c.AmountMinor,
			Currency:      c.Currency,
			PaymentRef:    c.PaymentRef,
			CustomerEmail: c.CustomerEmail,
			Metadata:      c.Metadata,
		})
		switch {
		case errors.Is(err, store.ErrAlreadyRecorded):
			return OutcomeDuplicate, nil, nil
		case errors.Is(err, store.ErrContentItemNotFound):
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		case err != nil:
			return "", nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return OutcomeRecorded, &worker.Receipt{Kind: worker.ReceiptPurchase, ID: purchase.ID}, nil

	case KindLifetime:
		grant, err := p.ledger.GrantLifetime(ctx, store.GrantLifetimeParams{
			StripeEventID: eventID,
			PurchaserID:   c.PurchaserID,
			AmountMinor:   c.AmountMinor,
			Currency:      c.Currency,
			PaymentRef:    c.PaymentRef,
			CustomerEmail: c.CustomerEmail,
		})
		switch {
		case errors.Is(err, store.ErrAlreadyRecorded):
			return OutcomeDuplicate, nil, nil
		case errors.Is(err, store.ErrLifetimeAlreadyActive):
			return OutcomeUnrecorded, nil, nil
		case err != nil:
			return "", nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return OutcomeRecorded, &worker.Receipt{Kind: worker.ReceiptLifetime, ID: grant.ID}, nil
	}

	return "", nil, fmt.Errorf("%w: unknown purchase type %q", ErrInvalidInput, tag.Kind)
}

// afterRecord runs the side effects of a new entitlement. Failures are logged
// only: the record is durable and both effects have a fallback (cache TTL,
// receipt poller).
func (p *WebhookProcessor) afterRecord(
	ctx context.Context,
	log *slog.Logger,
	c stripeinternal.Completion,
	receipt *worker.Receipt,
) {
	if p.entitlements != nil && c.PurchaserID != "" {
		if err := p.entitlements.Invalidate(ctx, c.PurchaserID); err != nil {
			log.WarnContext(ctx, "webhook: entitlement cache invalidation failed", "error", err)
		}
	}
	if p.receipts != nil && receipt != nil && c.CustomerEmail != "" {
		if err := p.receipts.Enqueue(ctx, *receipt); err != nil {
			log.WarnContext(ctx, "webhook: receipt not enqueued, poller will pick it up", "error", err)
		}
	}
}
