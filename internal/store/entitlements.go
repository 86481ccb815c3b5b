package store

import (
	"context"
	"fmt"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
)

// Entitlements is the server-side truth about what a purchaser may view.
type Entitlements struct {
	Lifetime       bool
	ContentItemIDs []string
}

// Entitlements loads the lifetime flag and the unlocked item ids for a
// purchaser. Guests (empty purchaserID) hold nothing.
func (s *Store) Entitlements(ctx context.Context, purchaserID string) (Entitlements, error) {
	if purchaserID == "" {
		return Entitlements{ContentItemIDs: []string{}}, nil
	}
	pid := nullString(purchaserID)

	lifetime, err := s.q.HasActiveLifetimeGrant(ctx, pid)
	if err != nil {
		return Entitlements{}, fmt.Errorf("store: lifetime grant for %s: %w", purchaserID, err)
	}
	ids, err := s.q.ListUnlockedContentItemIDs(ctx, pid)
	if err != nil {
		return Entitlements{}, fmt.Errorf("store: unlocked items for %s: %w", purchaserID, err)
	}
	return Entitlements{Lifetime: lifetime, ContentItemIDs: ids}, nil
}

// HasLifetime reports whether purchaserID holds an active lifetime grant.
func (s *Store) HasLifetime(ctx context.Context, purchaserID string) (bool, error) {
	if purchaserID == "" {
		return false, nil
	}
	lifetime, err := s.q.HasActiveLifetimeGrant(ctx, nullString(purchaserID))
	if err != nil {
		return false, fmt.Errorf("store: lifetime grant for %s: %w", purchaserID, err)
	}
	return lifetime, nil
}

// HasAccess reports whether purchaserID may view contentItemID: either a
// completed purchase of it or an active lifetime grant.
func (s *Store) HasAccess(ctx context.Context, purchaserID, contentItemID string) (bool, error) {
	if purchaserID == "" {
		return false, nil
	}
	pid := nullString(purchaserID)

	lifetime, err := s.q.HasActiveLifetimeGrant(ctx, pid)
	if err != nil {
		return false, fmt.Errorf("store: lifetime grant for %s: %w", purchaserID, err)
	}
	if lifetime {
		return true, nil
	}
	owned, err := s.q.HasCompletedPurchase(ctx, db.HasCompletedPurchaseParams{
		PurchaserID:   pid,
		ContentItemID: contentItemID,
	})
	if err != nil {
		return false, fmt.Errorf("store: purchase of %s by %s: %w", contentItemID, purchaserID, err)
	}
	return owned, nil
}
