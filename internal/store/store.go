// Package store wraps db.Querier with transaction support and groups the
// multi-step write operations that must execute atomically.
//
// Purchases and lifetime grants are written only through this package, and
// only by the webhook processor. Single-query reads used by the receipt
// worker go straight to db.Querier via Q().
//
// Dependency rule: store imports db only. It never imports api, paywall,
// stripe, worker, or email.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
)

// ErrContentItemNotFound is returned when a content item id has no row.
var ErrContentItemNotFound = errors.New("store: content item not found")

// ErrLifetimeAlreadyActive is returned when a lifetime payment arrives for a
// purchaser who already holds an active grant under a different payment.
var ErrLifetimeAlreadyActive = errors.New("store: purchaser already holds a lifetime grant")

// Store holds a *sql.DB for starting transactions and a db.Querier for
// executing queries outside of transactions. The operation files
// (payments.go, entitlements.go) attach methods to this type.
type Store struct {
	// pool is the raw connection pool, used only to begin transactions.
	pool *sql.DB

	// q is the Querier used for non-transactional calls.
	q db.Querier
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via db.PingContext) before calling New.
func New(pool *sql.DB, q db.Querier) *Store {
	return &Store{pool: pool, q: q}
}

// Q exposes the underlying Querier so the worker can run single-query reads
// without going through a store method.
func (s *Store) Q() db.Querier {
	return s.q
}

// GetContentItem returns the catalog row for id, or ErrContentItemNotFound.
// Any other error is a persistence failure.
func (s *Store) GetContentItem(ctx context.Context, id string) (db.ContentItem, error) {
	item, err := s.q.GetContentItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return db.ContentItem{}, fmt.Errorf("%w: %s", ErrContentItemNotFound, id)
	}
	if err != nil {
		return db.ContentItem{}, fmt.Errorf("store: get content item %s: %w", id, err)
	}
	return item, nil
}

// txQuerier is a function that receives a transactional Querier and returns an
// error. Returning a non-nil error causes withTx to roll back automatically.
type txQuerier func(ctx context.Context, q db.Querier) error

// withTx begins a transaction at the given isolation level, passes a Querier
// scoped to that transaction to fn, and commits on success or rolls back on
// any error (including panics).
//
// Entitlement writes run at read committed: uniqueness is enforced by the
// conflict-ignoring inserts, not by read-then-write checks.
func (s *Store) withTx(ctx context.Context, level sql.IsolationLevel, fn txQuerier) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	// db.Queries.WithTx re-uses prepared statements scoped to the transaction.
	txQ := s.q.(*db.Queries).WithTx(tx)

	if err := fn(ctx, txQ); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
