package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// RecordPurchaseParams describes a completed single-item payment.
type RecordPurchaseParams struct {
	// StripeEventID, when set, is marked processed in the same transaction.
	StripeEventID string
	PurchaserID   string // empty for guest checkouts
	ContentItemID string
	AmountMinor   int64
	Currency      string
	PaymentRef    string
	CustomerEmail string
	Metadata      map[string]string
}

// GrantLifetimeParams describes a completed lifetime-access payment.
type GrantLifetimeParams struct {
	StripeEventID string
	PurchaserID   string
	AmountMinor   int64
	Currency      string
	PaymentRef    string
	CustomerEmail string
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrAlreadyRecorded is returned when the payment reference (or, for lifetime
// grants, the purchaser's active grant) already exists. The webhook handler
// treats it as a successful duplicate delivery.
var ErrAlreadyRecorded = errors.New("store: payment already recorded")

// ─── METHODS ─────────────────────────────────────────────────────────────────

// LogStripeEvent appends a verified delivery to the audit log, bumping the
// attempt counter when Stripe redelivers the same event id.
func (s *Store) LogStripeEvent(ctx context.Context, p db.UpsertStripeEventParams) (db.StripeEvent, error) {
	ev, err := s.q.UpsertStripeEvent(ctx, p)
	if err != nil {
		return db.StripeEvent{}, fmt.Errorf("store: log stripe event %s: %w", p.StripeEventID, err)
	}
	return ev, nil
}

// MarkStripeEventFailed records the failure reason on an audited event.
func (s *Store) MarkStripeEventFailed(ctx context.Context, p db.MarkStripeEventFailedParams) error {
	if _, err := s.q.MarkStripeEventFailed(ctx, p); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: mark stripe event %s failed: %w", p.StripeEventID, err)
	}
	return nil
}

// RecordPurchase inserts a completed PurchaseRecord keyed on PaymentRef.
//
// A duplicate delivery inserts nothing; the existing row is returned together
// with ErrAlreadyRecorded. In both cases the audited event is marked
// processed in the same transaction.
func (s *Store) RecordPurchase(ctx context.Context, p RecordPurchaseParams) (db.Purchase, error) {
	var (
		purchase  db.Purchase
		duplicate bool
	)

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return db.Purchase{}, fmt.Errorf("RecordPurchase: marshal metadata: %w", err)
	}

	err = s.withTx(ctx, sql.LevelReadCommitted, func(ctx context.Context, q db.Querier) error {
		inserted, err := q.InsertPurchase(ctx, db.InsertPurchaseParams{
			PurchaserID:   nullString(p.PurchaserID),
			ContentItemID: p.ContentItemID,
			AmountMinor:   p.AmountMinor,
			Currency:      p.Currency,
			PaymentRef:    p.PaymentRef,
			Status:        db.PurchaseStatusCompleted,
			CustomerEmail: nullString(p.CustomerEmail),
			Metadata:      pqtype.NullRawMessage{RawMessage: meta, Valid: p.Metadata != nil},
		})
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// ON CONFLICT DO NOTHING returned no row: already recorded.
			existing, err := q.GetPurchaseByPaymentRef(ctx, p.PaymentRef)
			if err != nil {
				return fmt.Errorf("RecordPurchase: get existing purchase: %w", err)
			}
			purchase, duplicate = existing, true
		case isForeignKeyViolation(err):
			return fmt.Errorf("RecordPurchase: %w: %s", ErrContentItemNotFound, p.ContentItemID)
		case err != nil:
			return fmt.Errorf("RecordPurchase: insert purchase: %w", err)
		default:
			purchase = inserted
		}

		return markProcessed(ctx, q, p.StripeEventID)
	})
	if err != nil {
		return db.Purchase{}, err
	}
	if duplicate {
		return purchase, ErrAlreadyRecorded
	}
	return purchase, nil
}

// GrantLifetime inserts a completed LifetimeGrant keyed on PaymentRef.
//
// A conflict on the payment reference inserts nothing and returns the
// existing row with ErrAlreadyRecorded. A conflict on the purchaser's active
// grant under another payment reference writes nothing at all, leaves the
// audited event unprocessed and returns ErrLifetimeAlreadyActive: that
// payment holds money with no entitlement behind it.
func (s *Store) GrantLifetime(ctx context.Context, p GrantLifetimeParams) (db.LifetimeGrant, error) {
	var (
		grant     db.LifetimeGrant
		duplicate bool
	)

	err := s.withTx(ctx, sql.LevelReadCommitted, func(ctx context.Context, q db.Querier) error {
		inserted, err := q.InsertLifetimeGrant(ctx, db.InsertLifetimeGrantParams{
			PurchaserID:   nullString(p.PurchaserID),
			AmountMinor:   p.AmountMinor,
			Currency:      p.Currency,
			PaymentRef:    p.PaymentRef,
			Status:        db.PurchaseStatusCompleted,
			CustomerEmail: nullString(p.CustomerEmail),
		})
		switch {
		case errors.Is(err, sql.ErrNoRows):
			existing, err := q.GetLifetimeGrantByPaymentRef(ctx, p.PaymentRef)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("GrantLifetime: %w: %s", ErrLifetimeAlreadyActive, p.PurchaserID)
			}
			if err != nil {
				return fmt.Errorf("GrantLifetime: get existing grant: %w", err)
			}
			grant, duplicate = existing, true
		case err != nil:
			return fmt.Errorf("GrantLifetime: insert grant: %w", err)
		default:
			grant = inserted
		}

		return markProcessed(ctx, q, p.StripeEventID)
	})
	if err != nil {
		return db.LifetimeGrant{}, err
	}
	if duplicate {
		return grant, ErrAlreadyRecorded
	}
	return grant, nil
}

// markProcessed stamps the audited event. A missing audit row is not an error:
// the audit log never gates the entitlement write.
func markProcessed(ctx context.Context, q db.Querier, stripeEventID string) error {
	if stripeEventID == "" {
		return nil
	}
	if _, err := q.MarkStripeEventProcessed(ctx, stripeEventID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("mark stripe event processed: %w", err)
	}
	return nil
}

// isForeignKeyViolation reports a Postgres foreign_key_violation (23503).
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
