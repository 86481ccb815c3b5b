// Package api implements the HTTP layer for the gallery paywall.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
	"github.com/nyashahama/gallery-paywall-backend/internal/paywall"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// AllowedOrigin is the storefront origin allowed by CORS in production.
	AllowedOrigin string

	// Public checkout settings served by GET /api/config.
	PublishableKey     string
	Currency           string
	LifetimePriceMinor int64
	UpsellDelay        time.Duration

	// RequestTimeout bounds each request, including the Stripe call.
	RequestTimeout time.Duration
}

// Intents creates payment intents and reads checkout sessions.
// *paywall.IntentService satisfies it.
type Intents interface {
	CreateIntent(ctx context.Context, req paywall.IntentRequest) (paywall.IntentHandle, error)
	CheckoutStatus(ctx context.Context, sessionID string) (paywall.SessionStatus, error)
}

// Webhooks processes Stripe deliveries. *paywall.WebhookProcessor satisfies it.
type Webhooks interface {
	Handle(ctx context.Context, rawBody []byte, sigHeader string) (paywall.Outcome, error)
}

// Entitlements reads a purchaser's entitlements. *entitlement.Service
// satisfies it.
type Entitlements interface {
	Snapshot(ctx context.Context, purchaserID string) (entitlement.Snapshot, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	intents      Intents
	webhooks     Webhooks
	entitlements Entitlements

	validate *validator.Validate
	cfg      Config
	logger   *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to an http.Server.
func NewServer(
	intents Intents,
	webhooks Webhooks,
	entitlements Entitlements,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		intents:      intents,
		webhooks:     webhooks,
		entitlements: entitlements,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		cfg:          cfg,
		logger:       logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── Payment endpoints ─────────────────────────────────────────────────────
	// Paths match what the storefront and the Stripe dashboard are configured
	// with, so they sit outside /api.
	r.With(s.purchaserMiddleware).Post("/create-payment-intent", s.handleCreatePaymentIntent)

	// Stripe webhook. No auth; the processor verifies the signature.
	r.Post("/stripe-webhook", s.handleStripeWebhook)

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Get("/checkout-sessions/{sessionID}", s.handleGetCheckoutSession)

		r.With(s.purchaserMiddleware).Get("/entitlements", s.handleGetEntitlements)
	})

	return r
}
