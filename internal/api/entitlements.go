package api

import (
	"fmt"
	"net/http"
)

// ─── GET /api/entitlements ────────────────────────────────────────────────────

type entitlementsResponse struct {
	Lifetime       bool     `json:"lifetime"`
	ContentItemIDs []string `json:"contentItemIds"`
}

// handleGetEntitlements returns what the purchaser holds so the client can
// rebuild its unlock state on load. Guests always hold nothing.
func (s *Server) handleGetEntitlements(w http.ResponseWriter, r *http.Request) {
	snap, err := s.entitlements.Snapshot(r.Context(), purchaserID(r))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load entitlements: %w", err))
		return
	}

	ids := snap.ContentItemIDs
	if ids == nil {
		ids = []string{}
	}
	respond(w, http.StatusOK, entitlementsResponse{
		Lifetime:       snap.Lifetime,
		ContentItemIDs: ids,
	})
}
