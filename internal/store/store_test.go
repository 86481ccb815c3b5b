package store_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"

	_ "github.com/lib/pq"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/store"
)

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

// openTestDB returns a migrated *sql.DB from DATABASE_URL. Skips if the env
// var is not set so the suite still passes without a Postgres instance.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store integration tests")
	}
	if err := db.MigrateUp(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// seedItem inserts a content item and removes it, with every purchase of it,
// when the test ends.
func seedItem(t *testing.T, pool *sql.DB, id string, priceMinor int64) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.ExecContext(ctx,
		`INSERT INTO content_items (id, title, media_url, price_minor) VALUES ($1, $2, $3, $4)`,
		id, "Test "+id, "https://cdn.example/"+id+".jpg", priceMinor)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.ExecContext(ctx, "DELETE FROM purchases WHERE content_item_id=$1", id)
		_, _ = pool.ExecContext(ctx, "DELETE FROM content_items WHERE id=$1", id)
	})
}

func cleanupGrants(t *testing.T, pool *sql.DB, purchaserID string) {
	t.Cleanup(func() {
		_, _ = pool.ExecContext(context.Background(), "DELETE FROM lifetime_grants WHERE purchaser_id=$1", purchaserID)
	})
}

// ─── GetContentItem ───────────────────────────────────────────────────────────

func TestGetContentItem_NotFound(t *testing.T) {
	pool := openTestDB(t)
	st := store.New(pool, db.New(pool))

	_, err := st.GetContentItem(context.Background(), "missing_"+t.Name())
	if !errors.Is(err, store.ErrContentItemNotFound) {
		t.Errorf("expected ErrContentItemNotFound, got %v", err)
	}
}

// ─── RecordPurchase ───────────────────────────────────────────────────────────

func TestRecordPurchase_DuplicateDeliveryRecordsOnce(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	itemID := "item_" + t.Name()
	seedItem(t, pool, itemID, 199)

	params := store.RecordPurchaseParams{
		PurchaserID:   "user_" + t.Name(),
		ContentItemID: itemID,
		AmountMinor:   199,
		Currency:      "gbp",
		PaymentRef:    "pi_dup_" + t.Name(),
		Metadata:      map[string]string{"type": "single", "contentItemId": itemID},
	}

	first, err := st.RecordPurchase(ctx, params)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Status != db.PurchaseStatusCompleted {
		t.Errorf("status: got %s", first.Status)
	}

	second, err := st.RecordPurchase(ctx, params)
	if !errors.Is(err, store.ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate returned a different row: %s vs %s", second.ID, first.ID)
	}

	var n int
	if err := pool.QueryRowContext(ctx, "SELECT count(*) FROM purchases WHERE payment_ref=$1", params.PaymentRef).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one purchase row, got %d", n)
	}
}

func TestRecordPurchase_ConcurrentDeliveriesRecordOnce(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	itemID := "item_" + t.Name()
	seedItem(t, pool, itemID, 500)

	params := store.RecordPurchaseParams{
		ContentItemID: itemID,
		AmountMinor:   500,
		Currency:      "gbp",
		PaymentRef:    "pi_race_" + t.Name(),
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.RecordPurchase(ctx, params)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, store.ErrAlreadyRecorded):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("expected one creating delivery, got %d", created)
	}
}

func TestRecordPurchase_UnknownItem(t *testing.T) {
	pool := openTestDB(t)
	st := store.New(pool, db.New(pool))

	_, err := st.RecordPurchase(context.Background(), store.RecordPurchaseParams{
		ContentItemID: "missing_" + t.Name(),
		AmountMinor:   100,
		Currency:      "gbp",
		PaymentRef:    "pi_missing_" + t.Name(),
	})
	if !errors.Is(err, store.ErrContentItemNotFound) {
		t.Errorf("expected ErrContentItemNotFound, got %v", err)
	}
}

func TestRecordPurchase_MarksAuditedEventProcessed(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	itemID := "item_" + t.Name()
	seedItem(t, pool, itemID, 199)
	eventID := "evt_" + t.Name()
	t.Cleanup(func() { _, _ = pool.ExecContext(ctx, "DELETE FROM stripe_events WHERE stripe_event_id=$1", eventID) })

	if _, err := st.LogStripeEvent(ctx, db.UpsertStripeEventParams{
		StripeEventID: eventID,
		Type:          "checkout.session.completed",
		Payload:       []byte(`{}`),
	}); err != nil {
		t.Fatalf("LogStripeEvent: %v", err)
	}

	if _, err := st.RecordPurchase(ctx, store.RecordPurchaseParams{
		StripeEventID: eventID,
		ContentItemID: itemID,
		AmountMinor:   199,
		Currency:      "gbp",
		PaymentRef:    "pi_audit_" + t.Name(),
	}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}

	again, err := st.LogStripeEvent(ctx, db.UpsertStripeEventParams{
		StripeEventID: eventID,
		Type:          "checkout.session.completed",
		Payload:       []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("LogStripeEvent again: %v", err)
	}
	if again.Attempts != 2 {
		t.Errorf("attempts: got %d, want 2", again.Attempts)
	}
	if !again.ProcessedAt.Valid {
		t.Error("expected processed_at to be set")
	}
}

// ─── GrantLifetime / Entitlements ─────────────────────────────────────────────

func TestGrantLifetime_OneActiveGrantPerPurchaser(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	purchaser := "user_" + t.Name()
	cleanupGrants(t, pool, purchaser)

	if _, err := st.GrantLifetime(ctx, store.GrantLifetimeParams{
		PurchaserID: purchaser, AmountMinor: 4900, Currency: "gbp", PaymentRef: "pi_life_1_" + t.Name(),
	}); err != nil {
		t.Fatalf("first grant: %v", err)
	}

	// Redelivery of the same payment is a plain duplicate.
	_, err := st.GrantLifetime(ctx, store.GrantLifetimeParams{
		PurchaserID: purchaser, AmountMinor: 4900, Currency: "gbp", PaymentRef: "pi_life_1_" + t.Name(),
	})
	if !errors.Is(err, store.ErrAlreadyRecorded) {
		t.Errorf("expected ErrAlreadyRecorded for redelivery, got %v", err)
	}

	// A second payment is not a duplicate: it has no grant behind it.
	_, err = st.GrantLifetime(ctx, store.GrantLifetimeParams{
		PurchaserID: purchaser, AmountMinor: 4900, Currency: "gbp", PaymentRef: "pi_life_2_" + t.Name(),
	})
	if !errors.Is(err, store.ErrLifetimeAlreadyActive) {
		t.Errorf("expected ErrLifetimeAlreadyActive for second payment, got %v", err)
	}

	has, err := st.HasLifetime(ctx, purchaser)
	if err != nil {
		t.Fatalf("HasLifetime: %v", err)
	}
	if !has {
		t.Error("expected HasLifetime to be true")
	}
}

func TestEntitlements_LifetimeAndItems(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	purchaser := "user_" + t.Name()
	cleanupGrants(t, pool, purchaser)
	itemA, itemB := "a_"+t.Name(), "b_"+t.Name()
	seedItem(t, pool, itemA, 199)
	seedItem(t, pool, itemB, 299)

	if _, err := st.RecordPurchase(ctx, store.RecordPurchaseParams{
		PurchaserID: purchaser, ContentItemID: itemA, AmountMinor: 199, Currency: "gbp", PaymentRef: "pi_a_" + t.Name(),
	}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}

	ent, err := st.Entitlements(ctx, purchaser)
	if err != nil {
		t.Fatalf("Entitlements: %v", err)
	}
	if ent.Lifetime || len(ent.ContentItemIDs) != 1 || ent.ContentItemIDs[0] != itemA {
		t.Errorf("got %+v", ent)
	}

	if ok, _ := st.HasAccess(ctx, purchaser, itemB); ok {
		t.Error("expected no access to unpurchased item")
	}

	if _, err := st.GrantLifetime(ctx, store.GrantLifetimeParams{
		PurchaserID: purchaser, AmountMinor: 4900, Currency: "gbp", PaymentRef: "pi_l_" + t.Name(),
	}); err != nil {
		t.Fatalf("GrantLifetime: %v", err)
	}
	if ok, err := st.HasAccess(ctx, purchaser, itemB); err != nil || !ok {
		t.Errorf("expected lifetime access to item B, got %v %v", ok, err)
	}
}

func TestEntitlements_GuestHoldsNothing(t *testing.T) {
	pool := openTestDB(t)
	st := store.New(pool, db.New(pool))

	ent, err := st.Entitlements(context.Background(), "")
	if err != nil {
		t.Fatalf("Entitlements: %v", err)
	}
	if ent.Lifetime || len(ent.ContentItemIDs) != 0 {
		t.Errorf("got %+v", ent)
	}
}
