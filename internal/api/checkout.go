package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/gallery-paywall-backend/internal/paywall"
	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
)

// ─── POST /create-payment-intent ──────────────────────────────────────────────

type createPaymentIntentRequest struct {
	ContentItemID string `json:"contentItemId" validate:"required_unless=Type lifetime"`
	// Price is what the client displayed, in minor units. It is compared
	// against the catalog, never charged.
	Price *decimal.Decimal `json:"price" validate:"required"`
	Type  string           `json:"type" validate:"required,oneof=single single_embedded single_redirect lifetime"`
}

type itemResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"priceMinor"`
	Price      string `json:"price"`
}

type createPaymentIntentResponse struct {
	ClientSecret    string        `json:"clientSecret,omitempty"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
	SessionID       string        `json:"sessionId,omitempty"`
	CheckoutURL     string        `json:"checkoutUrl,omitempty"`
	Item            *itemResponse `json:"item,omitempty"`
}

// handleCreatePaymentIntent validates the displayed price against the
// catalog and returns either a client secret (embedded) or a hosted checkout
// URL (redirect and lifetime).
func (s *Server) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createPaymentIntentRequest
	if !s.decode(w, r, &req) {
		return
	}

	mode := paywall.Mode(req.Type)
	if req.Type == "single" {
		mode = paywall.ModeSingleRedirect
	}

	handle, err := s.intents.CreateIntent(r.Context(), paywall.IntentRequest{
		Mode:          mode,
		ContentItemID: req.ContentItemID,
		Price:         *req.Price,
		PurchaserID:   purchaserID(r),
	})
	if err != nil {
		s.respondPaywallErr(w, r, err)
		return
	}

	resp := createPaymentIntentResponse{
		ClientSecret:    handle.ClientSecret,
		PaymentIntentID: handle.PaymentIntentID,
		SessionID:       handle.SessionID,
		CheckoutURL:     handle.CheckoutURL,
	}
	if handle.Item != nil {
		resp.Item = &itemResponse{
			ID:         handle.Item.ID,
			Title:      handle.Item.Title,
			PriceMinor: handle.Item.PriceMinor,
			Price:      pricing.FormatMinor(handle.Item.PriceMinor),
		}
	}
	respond(w, http.StatusOK, resp)
}

// ─── GET /api/checkout-sessions/:sessionID ────────────────────────────────────

type checkoutSessionResponse struct {
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Paid          bool   `json:"paid"`
	Type          string `json:"type,omitempty"`
	ContentItemID string `json:"contentItemId,omitempty"`
}

// handleGetCheckoutSession lets the success page corroborate a redirect
// return before it unlocks anything.
func (s *Server) handleGetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.intents.CheckoutStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondPaywallErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, checkoutSessionResponse{
		SessionID:     st.SessionID,
		Status:        st.Status,
		PaymentStatus: st.PaymentStatus,
		Paid:          st.Paid(),
		Type:          string(st.Kind),
		ContentItemID: st.ContentItemID,
	})
}

// ─── GET /api/config ──────────────────────────────────────────────────────────

type configResponse struct {
	PublishableKey     string `json:"publishableKey"`
	Currency           string `json:"currency"`
	LifetimePriceMinor int64  `json:"lifetimePriceMinor"`
	LifetimePrice      string `json:"lifetimePrice"`
	UpsellDelayMs      int64  `json:"upsellDelayMs"`
}

// handleGetConfig returns the public settings Stripe.js and the storefront
// need at load time.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, configResponse{
		PublishableKey:     s.cfg.PublishableKey,
		Currency:           s.cfg.Currency,
		LifetimePriceMinor: s.cfg.LifetimePriceMinor,
		LifetimePrice:      pricing.FormatMinor(s.cfg.LifetimePriceMinor),
		UpsellDelayMs:      s.cfg.UpsellDelay.Milliseconds(),
	})
}
