package api_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/nyashahama/gallery-paywall-backend/internal/api"
	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
	"github.com/nyashahama/gallery-paywall-backend/internal/paywall"
	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
	"github.com/nyashahama/gallery-paywall-backend/internal/store"
	stripeinternal "github.com/nyashahama/gallery-paywall-backend/internal/stripe"
)

const scenarioSecret = "whsec_scenario"

// scenarioStripe verifies signatures with the real SDK and fakes the API calls.
type scenarioStripe struct {
	stripeinternal.Client
	creates int
}

func (s *scenarioStripe) CreatePaymentIntent(_ context.Context, p stripeinternal.CreatePaymentIntentParams) (stripeinternal.PaymentIntent, error) {
	s.creates++
	return stripeinternal.PaymentIntent{ID: "pi_A", ClientSecret: "pi_A_secret"}, nil
}

func (s *scenarioStripe) CreateCheckoutSession(_ context.Context, _ stripeinternal.CreateCheckoutSessionParams) (stripeinternal.CheckoutSession, error) {
	s.creates++
	return stripeinternal.CheckoutSession{ID: "cs_A", URL: "https://checkout.stripe.com/c/pay/cs_A"}, nil
}

type scenarioCatalog map[string]db.ContentItem

func (c scenarioCatalog) GetContentItem(_ context.Context, id string) (db.ContentItem, error) {
	it, ok := c[id]
	if !ok {
		return db.ContentItem{}, store.ErrContentItemNotFound
	}
	return it, nil
}

func (c scenarioCatalog) HasLifetime(context.Context, string) (bool, error) { return false, nil }

// memLedger keeps records in memory with the same conflict semantics as the
// Postgres store: one purchase per payment_ref.
type memLedger struct {
	mu        sync.Mutex
	events    map[string]db.StripeEvent
	purchases map[string]db.Purchase
}

func newMemLedger() *memLedger {
	return &memLedger{events: map[string]db.StripeEvent{}, purchases: map[string]db.Purchase{}}
}

func (l *memLedger) LogStripeEvent(_ context.Context, p db.UpsertStripeEventParams) (db.StripeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, ok := l.events[p.StripeEventID]
	if !ok {
		ev = db.StripeEvent{ID: uuid.New(), StripeEventID: p.StripeEventID, Type: p.Type}
	}
	ev.Attempts++
	l.events[p.StripeEventID] = ev
	return ev, nil
}

func (l *memLedger) MarkStripeEventFailed(context.Context, db.MarkStripeEventFailedParams) error {
	return nil
}

func (l *memLedger) RecordPurchase(_ context.Context, p store.RecordPurchaseParams) (db.Purchase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := l.events[p.StripeEventID]
	ev.ProcessedAt = sql.NullTime{Time: time.Now(), Valid: true}
	l.events[p.StripeEventID] = ev

	if existing, ok := l.purchases[p.PaymentRef]; ok {
		return existing, store.ErrAlreadyRecorded
	}
	rec := db.Purchase{
		ID:            uuid.New(),
		PurchaserID:   sql.NullString{String: p.PurchaserID, Valid: p.PurchaserID != ""},
		ContentItemID: p.ContentItemID,
		AmountMinor:   p.AmountMinor,
		PaymentRef:    p.PaymentRef,
		Status:        db.PurchaseStatusCompleted,
	}
	l.purchases[p.PaymentRef] = rec
	return rec, nil
}

func (l *memLedger) GrantLifetime(context.Context, store.GrantLifetimeParams) (db.LifetimeGrant, error) {
	return db.LifetimeGrant{}, fmt.Errorf("not used in this scenario")
}

func (l *memLedger) Entitlements(_ context.Context, purchaserID string) (store.Entitlements, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ent := store.Entitlements{}
	for _, p := range l.purchases {
		if p.PurchaserID.String == purchaserID {
			ent.ContentItemIDs = append(ent.ContentItemIDs, p.ContentItemID)
		}
	}
	return ent, nil
}

func signedEvent(t *testing.T, eventID, paymentRef, purchaser string) (string, string) {
	t.Helper()
	payload := fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"api_version": "2025-01-27.acacia",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": %q,
			"object": "payment_intent",
			"amount": 199,
			"amount_received": 199,
			"currency": "gbp",
			"status": "succeeded",
			"metadata": {"type": "single", "contentItemId": "A", "purchaserId": %q}
		}}
	}`, eventID, paymentRef, purchaser)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    scenarioSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

// TestScenario_SingleItemPurchase walks one purchase through the HTTP layer:
// intent at the catalog price, duplicate webhook delivery, entitlement read,
// then a request at a stale price.
func TestScenario_SingleItemPurchase(t *testing.T) {
	logger := discardLogger()
	sc := &scenarioStripe{Client: stripeinternal.NewClient("sk_test_unused", 0)}
	catalog := scenarioCatalog{"A": {ID: "A", Title: "Harbour at Dawn", PriceMinor: 199}}
	ledger := newMemLedger()
	ents := entitlement.NewService(ledger, nil, logger)

	intents := paywall.NewIntentService(catalog, sc, pricing.NewValidator(pricing.DefaultToleranceMinor),
		paywall.IntentConfig{Currency: "gbp", LifetimePriceMinor: 4900, BaseURL: "http://localhost:5173"}, logger)
	webhooks := paywall.NewWebhookProcessor(sc, scenarioSecret, ledger, ents, nil, logger)
	handler := api.NewServer(intents, webhooks, ents, testConfig(), logger)

	headers := map[string]string{"X-Purchaser-ID": testPurchaser}

	// 1. Intent at the canonical price.
	rr := doRequest(t, handler, http.MethodPost, "/create-payment-intent",
		`{"contentItemId":"A","price":199,"type":"single_embedded"}`, headers)
	if rr.Code != http.StatusOK {
		t.Fatalf("create intent: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var intent struct {
		ClientSecret string `json:"clientSecret"`
	}
	decodeJSON(t, rr, &intent)
	if intent.ClientSecret != "pi_A_secret" {
		t.Fatalf("unexpected client secret %q", intent.ClientSecret)
	}

	// 2. The same event delivered twice records one purchase.
	body, sig := signedEvent(t, "evt_A", "pi_A", testPurchaser)
	for i := range 2 {
		rr = doRequest(t, handler, http.MethodPost, "/stripe-webhook", body,
			map[string]string{"Stripe-Signature": sig})
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d: %s", i+1, rr.Code, rr.Body.String())
		}
	}
	if n := len(ledger.purchases); n != 1 {
		t.Fatalf("expected exactly 1 purchase, got %d", n)
	}
	if ev := ledger.events["evt_A"]; ev.Attempts != 2 {
		t.Errorf("expected 2 logged attempts, got %d", ev.Attempts)
	}

	// 3. The purchaser now holds A.
	rr = doRequest(t, handler, http.MethodGet, "/api/entitlements", nil, headers)
	var ent struct {
		ContentItemIDs []string `json:"contentItemIds"`
	}
	decodeJSON(t, rr, &ent)
	if len(ent.ContentItemIDs) != 1 || ent.ContentItemIDs[0] != "A" {
		t.Fatalf("expected entitlement to A, got %v", ent.ContentItemIDs)
	}

	// 4. A stale price is rejected before Stripe is contacted.
	rr = doRequest(t, handler, http.MethodPost, "/create-payment-intent",
		`{"contentItemId":"A","price":99,"type":"single_embedded"}`, headers)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("stale price: expected 400, got %d", rr.Code)
	}
	if sc.creates != 1 {
		t.Errorf("expected 1 provider call in total, got %d", sc.creates)
	}
}

func TestScenario_ForgedWebhookIsInert(t *testing.T) {
	logger := discardLogger()
	sc := &scenarioStripe{Client: stripeinternal.NewClient("sk_test_unused", 0)}
	ledger := newMemLedger()
	webhooks := paywall.NewWebhookProcessor(sc, scenarioSecret, ledger, nil, nil, logger)
	handler := api.NewServer(&stubIntents{}, webhooks, &stubEntitlements{}, testConfig(), logger)

	body, _ := signedEvent(t, "evt_forged", "pi_forged", testPurchaser)
	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    "whsec_attacker",
		Timestamp: time.Now(),
	})

	rr := doRequest(t, handler, http.MethodPost, "/stripe-webhook", body,
		map[string]string{"Stripe-Signature": forged.Header})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(ledger.events) != 0 || len(ledger.purchases) != 0 {
		t.Error("forged delivery must not write anything")
	}
}
