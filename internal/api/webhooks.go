package api

import (
	"io"
	"net/http"
)

// ─── POST /stripe-webhook ─────────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and retries on non-2xx responses. The
// processor is idempotent, so a 500 here is always safe to redeliver.
// Duplicates and ignored event types are acknowledged with 200.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// Read the raw body before anything else: the signature covers the exact
	// bytes Stripe sent.
	r.Body = http.MaxBytesReader(w, r.Body, 65536) // 64 KB
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	outcome, err := s.webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("webhook: rejected", "error", err, logField(r))
		s.respondPaywallErr(w, r, err)
		return
	}

	s.logger.Debug("webhook: acknowledged", "outcome", outcome, logField(r))
	respond(w, http.StatusOK, map[string]bool{"received": true})
}
