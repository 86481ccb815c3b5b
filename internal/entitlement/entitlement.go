// Package entitlement answers "may this purchaser view this item?" from the
// durable store, optionally through a cache that the webhook invalidates.
package entitlement

import (
	"context"
	"log/slog"
	"slices"

	"github.com/nyashahama/gallery-paywall-backend/internal/store"
)

// Snapshot is everything a client needs to rebuild its unlock state.
type Snapshot struct {
	PurchaserID    string   `json:"purchaserId"`
	Lifetime       bool     `json:"lifetime"`
	ContentItemIDs []string `json:"contentItemIds"`
}

// Unlocked reports whether the snapshot grants access to itemID.
func (s Snapshot) Unlocked(itemID string) bool {
	return s.Lifetime || slices.Contains(s.ContentItemIDs, itemID)
}

// Reader loads entitlements from the durable store. *store.Store satisfies it.
type Reader interface {
	Entitlements(ctx context.Context, purchaserID string) (store.Entitlements, error)
}

// Cache stores snapshots keyed by purchaser. A miss is (zero, false, nil).
//
// Every Invalidate bumps the purchaser's generation. Set stores a snapshot
// only while the generation still equals gen, so a snapshot read from the
// store before an invalidation is never written back after it.
type Cache interface {
	Get(ctx context.Context, purchaserID string) (Snapshot, bool, error)
	Generation(ctx context.Context, purchaserID string) (int64, error)
	Set(ctx context.Context, s Snapshot, gen int64) (bool, error)
	Invalidate(ctx context.Context, purchaserID string) error
}

// Service reads entitlements. With a nil Cache every call hits the store.
type Service struct {
	reader Reader
	cache  Cache
	logger *slog.Logger
}

// NewService wires a Service. cache may be nil.
func NewService(reader Reader, cache Cache, logger *slog.Logger) *Service {
	return &Service{reader: reader, cache: cache, logger: logger}
}

// Snapshot returns the purchaser's entitlements. Cache failures degrade to a
// store read; they are never returned to the caller.
func (s *Service) Snapshot(ctx context.Context, purchaserID string) (Snapshot, error) {
	if purchaserID == "" {
		return Snapshot{ContentItemIDs: []string{}}, nil
	}

	cacheable := false
	var gen int64
	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, purchaserID)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "entitlement: cache read failed", "purchaser_id", purchaserID, "error", err)
		case ok:
			return snap, nil
		}

		// The generation must be read before the store.
		gen, err = s.cache.Generation(ctx, purchaserID)
		if err != nil {
			s.logger.WarnContext(ctx, "entitlement: cache generation read failed", "purchaser_id", purchaserID, "error", err)
		} else {
			cacheable = true
		}
	}

	ent, err := s.reader.Entitlements(ctx, purchaserID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		PurchaserID:    purchaserID,
		Lifetime:       ent.Lifetime,
		ContentItemIDs: ent.ContentItemIDs,
	}
	if snap.ContentItemIDs == nil {
		snap.ContentItemIDs = []string{}
	}

	if cacheable {
		stored, err := s.cache.Set(ctx, snap, gen)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "entitlement: cache write failed", "purchaser_id", purchaserID, "error", err)
		case !stored:
			s.logger.DebugContext(ctx, "entitlement: invalidated during read, not caching", "purchaser_id", purchaserID)
		}
	}
	return snap, nil
}

// Check reports whether purchaserID may view contentItemID.
func (s *Service) Check(ctx context.Context, purchaserID, contentItemID string) (bool, error) {
	snap, err := s.Snapshot(ctx, purchaserID)
	if err != nil {
		return false, err
	}
	return snap.Unlocked(contentItemID), nil
}

// Invalidate drops the cached snapshot so the next read sees new records, and
// bumps the generation so reads already in flight do not re-cache old data.
func (s *Service) Invalidate(ctx context.Context, purchaserID string) error {
	if s.cache == nil || purchaserID == "" {
		return nil
	}
	return s.cache.Invalidate(ctx, purchaserID)
}
