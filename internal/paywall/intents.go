package paywall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
	"github.com/nyashahama/gallery-paywall-backend/internal/store"
	stripeinternal "github.com/nyashahama/gallery-paywall-backend/internal/stripe"
)

// Mode selects how the client completes payment.
type Mode string

const (
	ModeSingleEmbedded Mode = "single_embedded"
	ModeSingleRedirect Mode = "single_redirect"
	ModeLifetime       Mode = "lifetime"
)

// IntentRequest is a validated-shape purchase request. Price is in minor
// units and is only ever compared, never charged.
type IntentRequest struct {
	Mode          Mode
	ContentItemID string
	Price         decimal.Decimal
	PurchaserID   string // empty for guests
}

// ItemEcho is the canonical view of the item being bought.
type ItemEcho struct {
	ID         string
	Title      string
	PriceMinor int64
}

// IntentHandle carries the provider-opaque identifiers for one checkout
// attempt. Embedded handles set ClientSecret and PaymentIntentID; redirect
// and lifetime handles set SessionID and CheckoutURL.
type IntentHandle struct {
	Mode            Mode
	ClientSecret    string
	PaymentIntentID string
	SessionID       string
	CheckoutURL     string
	Item            *ItemEcho
}

// Catalog is the read-only view of content items and grants the service
// needs. *store.Store satisfies it.
type Catalog interface {
	GetContentItem(ctx context.Context, id string) (db.ContentItem, error)
	HasLifetime(ctx context.Context, purchaserID string) (bool, error)
}

// IntentConfig holds the server-side pricing facts.
type IntentConfig struct {
	Currency           string
	LifetimePriceMinor int64
	// BaseURL is the storefront origin used for Checkout return URLs.
	BaseURL string
}

// IntentService creates PaymentIntents and Checkout Sessions. It is stateless
// and safe for concurrent use.
type IntentService struct {
	catalog   Catalog
	stripe    stripeinternal.Client
	validator pricing.Validator
	cfg       IntentConfig
	logger    *slog.Logger
}

// NewIntentService wires an IntentService.
func NewIntentService(
	catalog Catalog,
	sc stripeinternal.Client,
	validator pricing.Validator,
	cfg IntentConfig,
	logger *slog.Logger,
) *IntentService {
	return &IntentService{
		catalog:   catalog,
		stripe:    sc,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateIntent looks up the item, validates the price and only then asks
// Stripe for an intent or session tied to the canonical price.
func (s *IntentService) CreateIntent(ctx context.Context, req IntentRequest) (IntentHandle, error) {
	switch req.Mode {
	case ModeSingleEmbedded, ModeSingleRedirect:
		return s.createSingle(ctx, req)
	case ModeLifetime:
		return s.createLifetime(ctx, req)
	default:
		return IntentHandle{}, fmt.Errorf("%w: unknown purchase type %q", ErrInvalidInput, req.Mode)
	}
}

func (s *IntentService) createSingle(ctx context.Context, req IntentRequest) (IntentHandle, error) {
	if req.ContentItemID == "" {
		return IntentHandle{}, fmt.Errorf("%w: contentItemId is required", ErrInvalidInput)
	}

	item, err := s.catalog.GetContentItem(ctx, req.ContentItemID)
	if errors.Is(err, store.ErrContentItemNotFound) {
		return IntentHandle{}, fmt.Errorf("%w: %s", ErrNotFound, req.ContentItemID)
	}
	if err != nil {
		return IntentHandle{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := s.validator.Validate(req.Price, item.PriceMinor); err != nil {
		s.logger.WarnContext(ctx, "paywall: price mismatch",
			"content_item_id", item.ID,
			"requested", req.Price.String(),
			"canonical", item.PriceMinor,
		)
		return IntentHandle{}, err
	}

	meta := SingleMetadata(item.ID, req.PurchaserID)
	echo := &ItemEcho{ID: item.ID, Title: item.Title, PriceMinor: item.PriceMinor}

	if req.Mode == ModeSingleEmbedded {
		pi, err := s.stripe.CreatePaymentIntent(ctx, stripeinternal.CreatePaymentIntentParams{
			AmountMinor: item.PriceMinor,
			Currency:    s.cfg.Currency,
			Description: item.Title,
			Metadata:    meta,
		})
		if err != nil {
			return IntentHandle{}, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		s.logger.InfoContext(ctx, "paywall: payment intent created",
			"payment_intent_id", pi.ID,
			"content_item_id", item.ID,
		)
		return IntentHandle{
			Mode:            ModeSingleEmbedded,
			ClientSecret:    pi.ClientSecret,
			PaymentIntentID: pi.ID,
			Item:            echo,
		}, nil
	}

	cs, err := s.stripe.CreateCheckoutSession(ctx, stripeinternal.CreateCheckoutSessionParams{
		AmountMinor:        item.PriceMinor,
		Currency:           s.cfg.Currency,
		ProductName:        item.Title,
		ProductDescription: item.Description,
		ImageURL:           item.MediaUrl,
		SuccessURL:         s.successURL(),
		CancelURL:          s.cancelURL(),
		ClientReferenceID:  req.PurchaserID,
		Metadata:           meta,
	})
	if err != nil {
		return IntentHandle{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	s.logger.InfoContext(ctx, "paywall: checkout session created",
		"session_id", cs.ID,
		"content_item_id", item.ID,
	)
	return IntentHandle{
		Mode:        ModeSingleRedirect,
		SessionID:   cs.ID,
		CheckoutURL: cs.URL,
		Item:        echo,
	}, nil
}

func (s *IntentService) createLifetime(ctx context.Context, req IntentRequest) (IntentHandle, error) {
	// A second grant could never be recorded, so the payment would be lost.
	// Guests are not checked: they have no identity to hold a grant under.
	if req.PurchaserID != "" {
		has, err := s.catalog.HasLifetime(ctx, req.PurchaserID)
		if err != nil {
			return IntentHandle{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if has {
			return IntentHandle{}, fmt.Errorf("%w: lifetime access is already active", ErrAlreadyEntitled)
		}
	}

	if err := s.validator.Validate(req.Price, s.cfg.LifetimePriceMinor); err != nil {
		s.logger.WarnContext(ctx, "paywall: lifetime price mismatch",
			"requested", req.Price.String(),
			"canonical", s.cfg.LifetimePriceMinor,
		)
		return IntentHandle{}, err
	}

	cs, err := s.stripe.CreateCheckoutSession(ctx, stripeinternal.CreateCheckoutSessionParams{
		AmountMinor:        s.cfg.LifetimePriceMinor,
		Currency:           s.cfg.Currency,
		ProductName:        "Lifetime Access",
		ProductDescription: "Unlock every artwork in the gallery, forever.",
		SuccessURL:         s.successURL(),
		CancelURL:          s.cancelURL(),
		ClientReferenceID:  req.PurchaserID,
		Metadata:           LifetimeMetadata(req.PurchaserID),
	})
	if err != nil {
		return IntentHandle{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	s.logger.InfoContext(ctx, "paywall: lifetime checkout session created", "session_id", cs.ID)
	return IntentHandle{
		Mode:        ModeLifetime,
		SessionID:   cs.ID,
		CheckoutURL: cs.URL,
	}, nil
}

// SessionStatus is a Checkout Session as seen by a return page.
type SessionStatus struct {
	SessionID     string
	Status        string
	PaymentStatus string
	Kind          Kind
	ContentItemID string
}

// Paid reports whether Stripe considers the session paid. A return
// navigation is only corroborated when this is true.
func (s SessionStatus) Paid() bool { return s.PaymentStatus == "paid" }

// CheckoutStatus fetches a session so a redirect return can be corroborated
// before the client unlocks anything.
func (s *IntentService) CheckoutStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	if sessionID == "" {
		return SessionStatus{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	cs, err := s.stripe.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return SessionStatus{
		SessionID:     cs.ID,
		Status:        cs.Status,
		PaymentStatus: cs.PaymentStatus,
		Kind:          Kind(cs.Metadata[MetaType]),
		ContentItemID: cs.Metadata[MetaContentItemID],
	}, nil
}

func (s *IntentService) successURL() string {
	return s.cfg.BaseURL + "/success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *IntentService) cancelURL() string {
	return s.cfg.BaseURL + "/"
}
