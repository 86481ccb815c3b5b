package paywall

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/store"
	stripeinternal "github.com/nyashahama/gallery-paywall-backend/internal/stripe"
	"github.com/nyashahama/gallery-paywall-backend/internal/worker"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ─── STRIPE ───────────────────────────────────────────────────────────────────

type stubStripe struct {
	piCalls      []stripeinternal.CreatePaymentIntentParams
	sessionCalls []stripeinternal.CreateCheckoutSessionParams
	status       stripeinternal.CheckoutSessionStatus
	err          error

	// webhook
	event     stripeinternal.Event
	verifyErr error
}

func (s *stubStripe) CreatePaymentIntent(_ context.Context, p stripeinternal.CreatePaymentIntentParams) (stripeinternal.PaymentIntent, error) {
	s.piCalls = append(s.piCalls, p)
	if s.err != nil {
		return stripeinternal.PaymentIntent{}, s.err
	}
	return stripeinternal.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret_abc"}, nil
}

func (s *stubStripe) CreateCheckoutSession(_ context.Context, p stripeinternal.CreateCheckoutSessionParams) (stripeinternal.CheckoutSession, error) {
	s.sessionCalls = append(s.sessionCalls, p)
	if s.err != nil {
		return stripeinternal.CheckoutSession{}, s.err
	}
	return stripeinternal.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.com/c/pay/cs_test"}, nil
}

func (s *stubStripe) GetCheckoutSession(_ context.Context, id string) (stripeinternal.CheckoutSessionStatus, error) {
	if s.err != nil {
		return stripeinternal.CheckoutSessionStatus{}, s.err
	}
	st := s.status
	st.ID = id
	return st, nil
}

func (s *stubStripe) VerifyWebhook(_ []byte, _ string, _ string) (stripeinternal.Event, error) {
	if s.verifyErr != nil {
		return stripeinternal.Event{}, s.verifyErr
	}
	return s.event, nil
}

func (s *stubStripe) calls() int { return len(s.piCalls) + len(s.sessionCalls) }

// ─── CATALOG ──────────────────────────────────────────────────────────────────

type stubCatalog struct {
	items    map[string]db.ContentItem
	lifetime map[string]bool
	err      error
}

func (c *stubCatalog) HasLifetime(_ context.Context, purchaserID string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.lifetime[purchaserID], nil
}

func (c *stubCatalog) GetContentItem(_ context.Context, id string) (db.ContentItem, error) {
	if c.err != nil {
		return db.ContentItem{}, c.err
	}
	it, ok := c.items[id]
	if !ok {
		return db.ContentItem{}, store.ErrContentItemNotFound
	}
	return it, nil
}

// ─── LEDGER ───────────────────────────────────────────────────────────────────

// fakeLedger mimics the conflict-ignoring inserts keyed on payment_ref.
type fakeLedger struct {
	mu        sync.Mutex
	events    map[string]db.StripeEvent
	purchases map[string]db.Purchase
	grants    map[string]db.LifetimeGrant
	failed    map[string]string
	writes    int
	err       error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		events:    map[string]db.StripeEvent{},
		purchases: map[string]db.Purchase{},
		grants:    map[string]db.LifetimeGrant{},
		failed:    map[string]string{},
	}
}

func (l *fakeLedger) LogStripeEvent(_ context.Context, p db.UpsertStripeEventParams) (db.StripeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	ev, ok := l.events[p.StripeEventID]
	if !ok {
		ev = db.StripeEvent{ID: uuid.New(), StripeEventID: p.StripeEventID, Type: p.Type, Payload: p.Payload}
	}
	ev.Attempts++
	l.events[p.StripeEventID] = ev
	return ev, nil
}

func (l *fakeLedger) MarkStripeEventFailed(_ context.Context, p db.MarkStripeEventFailedParams) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed[p.StripeEventID] = p.Error.String
	return nil
}

func (l *fakeLedger) markProcessed(eventID string) {
	ev := l.events[eventID]
	ev.ProcessedAt = sql.NullTime{Time: time.Now(), Valid: true}
	l.events[eventID] = ev
}

func (l *fakeLedger) RecordPurchase(_ context.Context, p store.RecordPurchaseParams) (db.Purchase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return db.Purchase{}, l.err
	}
	if existing, ok := l.purchases[p.PaymentRef]; ok {
		l.markProcessed(p.StripeEventID)
		return existing, store.ErrAlreadyRecorded
	}
	l.writes++
	rec := db.Purchase{
		ID:            uuid.New(),
		PurchaserID:   sql.NullString{String: p.PurchaserID, Valid: p.PurchaserID != ""},
		ContentItemID: p.ContentItemID,
		AmountMinor:   p.AmountMinor,
		Currency:      p.Currency,
		PaymentRef:    p.PaymentRef,
		Status:        db.PurchaseStatusCompleted,
	}
	l.purchases[p.PaymentRef] = rec
	l.markProcessed(p.StripeEventID)
	return rec, nil
}

func (l *fakeLedger) GrantLifetime(_ context.Context, p store.GrantLifetimeParams) (db.LifetimeGrant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return db.LifetimeGrant{}, l.err
	}
	if existing, ok := l.grants[p.PaymentRef]; ok {
		l.markProcessed(p.StripeEventID)
		return existing, store.ErrAlreadyRecorded
	}
	for _, g := range l.grants {
		if p.PurchaserID != "" && g.PurchaserID.String == p.PurchaserID {
			return db.LifetimeGrant{}, store.ErrLifetimeAlreadyActive
		}
	}
	l.writes++
	g := db.LifetimeGrant{
		ID:          uuid.New(),
		PurchaserID: sql.NullString{String: p.PurchaserID, Valid: p.PurchaserID != ""},
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		PaymentRef:  p.PaymentRef,
		Status:      db.PurchaseStatusCompleted,
	}
	l.grants[p.PaymentRef] = g
	l.markProcessed(p.StripeEventID)
	return g, nil
}

// ─── SIDE EFFECTS ─────────────────────────────────────────────────────────────

type stubInvalidator struct {
	purchasers []string
	err        error
}

func (s *stubInvalidator) Invalidate(_ context.Context, purchaserID string) error {
	s.purchasers = append(s.purchasers, purchaserID)
	return s.err
}

type stubEnqueuer struct {
	receipts []worker.Receipt
}

func (s *stubEnqueuer) Enqueue(_ context.Context, r worker.Receipt) error {
	s.receipts = append(s.receipts, r)
	return nil
}

var errBoom = errors.New("boom")
