package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/gallery-paywall-backend/internal/unlock"
)

// fakeStore is a minimal storefront API.
type fakeStore struct {
	mu        sync.Mutex
	intents   []IntentRequest
	bodies    []map[string]any
	session   CheckoutSession
	lifetime  bool
	items     []string
	intentErr int
	purchaser string
}

func (f *fakeStore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /create-payment-intent", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req IntentRequest
		_ = json.Unmarshal(raw, &req)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		f.mu.Lock()
		f.intents = append(f.intents, req)
		f.bodies = append(f.bodies, body)
		f.purchaser = r.Header.Get("X-Purchaser-ID")
		status := f.intentErr
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "price mismatch: requested 99, canonical 199"})
			return
		}
		_ = json.NewEncoder(w).Encode(Intent{
			ClientSecret:    "pi_1_secret",
			PaymentIntentID: "pi_1",
			SessionID:       "cs_1",
			CheckoutURL:     "https://checkout.stripe.com/c/pay/cs_1",
		})
	})
	mux.HandleFunc("GET /api/checkout-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		cs := f.session
		f.mu.Unlock()
		cs.SessionID = r.PathValue("id")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cs)
	})
	mux.HandleFunc("GET /api/entitlements", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"lifetime": f.lifetime, "contentItemIds": f.items})
	})
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(StoreConfig{PublishableKey: "pk_test", Currency: "gbp", UpsellDelayMs: 5000})
	})
	return mux
}

type confirmFunc func(ctx context.Context, in Intent) error

func (f confirmFunc) Confirm(ctx context.Context, in Intent) error { return f(ctx, in) }

func succeed(context.Context, Intent) error { return nil }

type offers struct {
	mu    sync.Mutex
	items []string
}

func (o *offers) record(item string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, item)
}

func (o *offers) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

const purchaser = "7f1c2b9e-4a61-4d2e-9a55-0b8f7c3d2e10"

func newTestSession(t *testing.T, fs *fakeStore, c Confirmer, delay time.Duration) (*Session, *offers) {
	t.Helper()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	o := &offers{}
	s := NewSession(NewClient(srv.URL, purchaser), c, delay, o.record,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Leave)
	return s, o
}

func TestClient_Config(t *testing.T) {
	srv := httptest.NewServer((&fakeStore{}).handler())
	t.Cleanup(srv.Close)

	cfg, err := NewClient(srv.URL, "").Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pk_test", cfg.PublishableKey)
	assert.Equal(t, 5*time.Second, cfg.UpsellDelay())
}

func TestClient_CreateIntentSendsPriceAsNumber(t *testing.T) {
	fs := &fakeStore{}
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL, purchaser).CreateIntent(context.Background(),
		IntentRequest{ContentItemID: "A", Price: decimal.NewFromInt(199), Type: "single_embedded"})
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.bodies, 1)
	assert.Equal(t, map[string]any{
		"contentItemId": "A",
		"price":         float64(199),
		"type":          "single_embedded",
	}, fs.bodies[0])
}

func TestIntentRequest_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(IntentRequest{Price: decimal.RequireFromString("4900"), Type: "lifetime"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":4900,"type":"lifetime"}`, string(raw))

	raw, err = json.Marshal(IntentRequest{ContentItemID: "B", Price: decimal.RequireFromString("199.5"), Type: "single_redirect"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"contentItemId":"B","price":199.5,"type":"single_redirect"}`, string(raw))
}

func TestBuyEmbedded_UnlocksAndSchedulesUpsell(t *testing.T) {
	fs := &fakeStore{}
	s, o := newTestSession(t, fs, confirmFunc(succeed), 10*time.Millisecond)

	require.NoError(t, s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(199)))

	assert.True(t, s.Machine().IsUnlocked("A"))
	assert.Eventually(t, func() bool { return o.count() == 1 }, time.Second, 5*time.Millisecond)

	require.Len(t, fs.intents, 1)
	assert.Equal(t, "single_embedded", fs.intents[0].Type)
	assert.True(t, fs.intents[0].Price.Equal(decimal.NewFromInt(199)))
	assert.Equal(t, purchaser, fs.purchaser)
}

func TestBuyEmbedded_ServerRejectionRevertsWithMessage(t *testing.T) {
	fs := &fakeStore{intentErr: http.StatusBadRequest}
	s, o := newTestSession(t, fs, confirmFunc(succeed), 10*time.Millisecond)

	err := s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(99))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	st := s.Machine().Item("A")
	assert.Equal(t, unlock.Locked, st.State)
	assert.Contains(t, st.Err, "price mismatch")
	assert.Never(t, func() bool { return o.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestBuyEmbedded_DeclinedCardRevertsWithMessage(t *testing.T) {
	declined := confirmFunc(func(context.Context, Intent) error { return errors.New("card declined") })
	s, _ := newTestSession(t, &fakeStore{}, declined, time.Hour)

	err := s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(199))
	require.Error(t, err)
	assert.Equal(t, unlock.ItemState{State: unlock.Locked, Err: "card declined"}, s.Machine().Item("A"))
}

func TestLeave_AfterSuccessfulConfirmationKeepsUnlock(t *testing.T) {
	var s *Session
	// The viewer navigates away just as Stripe.js reports success.
	leaveThenSucceed := confirmFunc(func(context.Context, Intent) error {
		s.Leave()
		return nil
	})
	s, o := newTestSession(t, &fakeStore{}, leaveThenSucceed, 10*time.Millisecond)

	err := s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(199))
	require.NoError(t, err)
	assert.Equal(t, unlock.ItemState{State: unlock.Unlocked}, s.Machine().Item("A"))
	assert.Never(t, func() bool { return o.count() > 0 }, 100*time.Millisecond, 5*time.Millisecond,
		"no upsell for a viewer who already left")
}

func TestLeave_CancelsInFlightConfirmation(t *testing.T) {
	started := make(chan struct{})
	blocking := confirmFunc(func(ctx context.Context, _ Intent) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	s, o := newTestSession(t, &fakeStore{}, blocking, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(199)) }()

	<-started
	assert.Equal(t, unlock.Unlocking, s.Machine().Item("A").State)
	s.Leave()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("BuyEmbedded did not return after Leave")
	}
	assert.Equal(t, unlock.ItemState{State: unlock.Locked}, s.Machine().Item("A"))
	assert.Never(t, func() bool { return o.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLeave_CancelsPendingUpsell(t *testing.T) {
	s, o := newTestSession(t, &fakeStore{}, confirmFunc(succeed), 100*time.Millisecond)

	require.NoError(t, s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(199)))
	s.Leave()

	assert.Never(t, func() bool { return o.count() > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestCompleteRedirect_UnlocksOnlyWhenPaid(t *testing.T) {
	fs := &fakeStore{session: CheckoutSession{Status: "open", PaymentStatus: "unpaid", Type: "single", ContentItemID: "A"}}
	s, _ := newTestSession(t, fs, confirmFunc(succeed), time.Hour)

	url, err := s.BuyRedirect(context.Background(), "A", decimal.NewFromInt(199))
	require.NoError(t, err)
	assert.Contains(t, url, "checkout.stripe.com")
	assert.Equal(t, unlock.Unlocking, s.Machine().Item("A").State)

	err = s.CompleteRedirect(context.Background(), "cs_1")
	assert.ErrorIs(t, err, ErrNotPaid)
	assert.Equal(t, unlock.Locked, s.Machine().Item("A").State)

	// Retry and this time the session is paid.
	_, err = s.BuyRedirect(context.Background(), "A", decimal.NewFromInt(199))
	require.NoError(t, err)
	fs.mu.Lock()
	fs.session = CheckoutSession{Status: "complete", PaymentStatus: "paid", Paid: true, Type: "single", ContentItemID: "A"}
	fs.mu.Unlock()

	require.NoError(t, s.CompleteRedirect(context.Background(), "cs_1"))
	assert.True(t, s.Machine().IsUnlocked("A"))
}

func TestCompleteRedirect_FreshPageHydrates(t *testing.T) {
	fs := &fakeStore{
		session: CheckoutSession{Status: "complete", PaymentStatus: "paid", Paid: true, Type: "single", ContentItemID: "A"},
		items:   []string{"A"},
	}
	s, _ := newTestSession(t, fs, confirmFunc(succeed), time.Hour)

	require.NoError(t, s.CompleteRedirect(context.Background(), "cs_1"))
	assert.True(t, s.Machine().IsUnlocked("A"))
}

func TestCompleteRedirect_LifetimeUnlocksEverythingAndStopsUpsell(t *testing.T) {
	fs := &fakeStore{}
	s, o := newTestSession(t, fs, confirmFunc(succeed), 200*time.Millisecond)

	require.NoError(t, s.BuyEmbedded(context.Background(), "A", decimal.NewFromInt(199)))

	fs.mu.Lock()
	fs.session = CheckoutSession{Status: "complete", PaymentStatus: "paid", Paid: true, Type: "lifetime"}
	fs.mu.Unlock()
	require.NoError(t, s.CompleteRedirect(context.Background(), "cs_life"))

	assert.True(t, s.Machine().IsUnlocked("anything"))
	assert.Never(t, func() bool { return o.count() > 0 }, 300*time.Millisecond, 10*time.Millisecond)
}

func TestHydrate_LifetimeFromServer(t *testing.T) {
	s, _ := newTestSession(t, &fakeStore{lifetime: true}, confirmFunc(succeed), time.Hour)

	require.NoError(t, s.Hydrate(context.Background()))
	assert.True(t, s.Machine().Lifetime())
	assert.True(t, s.Machine().IsUnlocked("Z"))
}
