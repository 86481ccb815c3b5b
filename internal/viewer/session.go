package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/gallery-paywall-backend/internal/unlock"
	"github.com/nyashahama/gallery-paywall-backend/internal/upsell"
)

// ErrNotPaid means a redirect return could not be corroborated.
var ErrNotPaid = errors.New("viewer: checkout session is not paid")

// Confirmer completes an embedded payment, the way Stripe.js does in a
// browser. It must return promptly once ctx is cancelled.
type Confirmer interface {
	Confirm(ctx context.Context, intent Intent) error
}

// Session is one viewer's visit: unlock state, in-flight purchases and the
// pending upsell.
type Session struct {
	client    *Client
	confirmer Confirmer
	machine   *unlock.Machine
	upsell    *upsell.Scheduler
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

// NewSession wires a Session. offer is called when the upsell fires.
func NewSession(client *Client, confirmer Confirmer, upsellDelay time.Duration, offer func(item string), logger *slog.Logger) *Session {
	return &Session{
		client:    client,
		confirmer: confirmer,
		machine:   unlock.New(),
		upsell:    upsell.NewScheduler(upsellDelay, offer),
		logger:    logger,
		inFlight:  make(map[string]context.CancelFunc),
	}
}

// Machine exposes the unlock state for rendering.
func (s *Session) Machine() *unlock.Machine { return s.machine }

// Hydrate rebuilds unlock state from the server.
func (s *Session) Hydrate(ctx context.Context) error {
	snap, err := s.client.Entitlements(ctx)
	if err != nil {
		return err
	}
	if err := s.machine.Dispatch(unlock.Hydrate{Snapshot: snap}); err != nil {
		return err
	}
	if snap.Lifetime {
		s.upsell.LifetimeGranted()
	}
	return nil
}

// BuyEmbedded buys item in place. The item is Unlocking while the intent is
// created and confirmed, then Unlocked on success or Locked with the error
// retained on failure. Leave or cancelling ctx abandons an attempt that has
// not yet succeeded and returns the item to Locked.
func (s *Session) BuyEmbedded(ctx context.Context, item string, price decimal.Decimal) error {
	if err := s.machine.Dispatch(unlock.RequestUnlock{Item: item}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.track(item, cancel)
	defer s.untrack(item)

	intent, err := s.client.CreateIntent(ctx, IntentRequest{ContentItemID: item, Price: price, Type: "single_embedded"})
	if err == nil {
		err = s.confirmer.Confirm(ctx, intent)
	}

	// A confirmation that succeeded stands even if the viewer left meanwhile.
	if err != nil {
		if ctx.Err() != nil {
			_ = s.machine.Dispatch(unlock.CancelUnlock{Item: item})
			return ctx.Err()
		}
		_ = s.machine.Dispatch(unlock.FailUnlock{Item: item, Err: err})
		return err
	}

	if err := s.machine.Dispatch(unlock.ConfirmUnlock{Item: item}); err != nil {
		// A lifetime grant applied meanwhile already unlocked the item.
		s.logger.DebugContext(ctx, "viewer: confirm after lifetime grant", "item", item, "error", err)
		return nil
	}
	if ctx.Err() == nil && !s.machine.Lifetime() {
		s.upsell.PurchaseSucceeded(item)
	}
	return nil
}

// BuyRedirect starts a hosted checkout for item and returns its URL. The item
// stays Unlocking until CompleteRedirect corroborates the return.
func (s *Session) BuyRedirect(ctx context.Context, item string, price decimal.Decimal) (string, error) {
	if err := s.machine.Dispatch(unlock.RequestUnlock{Item: item}); err != nil {
		return "", err
	}
	intent, err := s.client.CreateIntent(ctx, IntentRequest{ContentItemID: item, Price: price, Type: "single_redirect"})
	if err != nil {
		_ = s.machine.Dispatch(unlock.FailUnlock{Item: item, Err: err})
		return "", err
	}
	return intent.CheckoutURL, nil
}

// BuyLifetime starts a hosted checkout for lifetime access.
func (s *Session) BuyLifetime(ctx context.Context, price decimal.Decimal) (string, error) {
	intent, err := s.client.CreateIntent(ctx, IntentRequest{Price: price, Type: "lifetime"})
	if err != nil {
		return "", err
	}
	return intent.CheckoutURL, nil
}

// CompleteRedirect handles a return to the success page. The session_id in
// the URL is only a hint: nothing unlocks until the server reports the
// session paid.
func (s *Session) CompleteRedirect(ctx context.Context, sessionID string) error {
	cs, err := s.client.CheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if !cs.Paid {
		if cs.ContentItemID != "" && s.machine.Item(cs.ContentItemID).State == unlock.Unlocking {
			_ = s.machine.Dispatch(unlock.FailUnlock{Item: cs.ContentItemID, Err: ErrNotPaid})
		}
		return fmt.Errorf("%w: %s is %s", ErrNotPaid, sessionID, cs.PaymentStatus)
	}

	switch cs.Type {
	case "lifetime":
		s.upsell.LifetimeGranted()
		return s.machine.Dispatch(unlock.ApplyLifetimeGrant{})
	case "single":
		if s.machine.Item(cs.ContentItemID).State == unlock.Unlocking {
			if err := s.machine.Dispatch(unlock.ConfirmUnlock{Item: cs.ContentItemID}); err != nil {
				return err
			}
		} else {
			// A fresh page load after the redirect has no Unlocking item.
			if err := s.Hydrate(ctx); err != nil {
				return err
			}
		}
		if !s.machine.Lifetime() {
			s.upsell.PurchaseSucceeded(cs.ContentItemID)
		}
		return nil
	default:
		return fmt.Errorf("viewer: checkout session %s has unknown type %q", sessionID, cs.Type)
	}
}

// Leave is navigation away: in-flight confirmations are cancelled and no
// upsell fires afterwards.
func (s *Session) Leave() {
	s.mu.Lock()
	for item, cancel := range s.inFlight {
		cancel()
		delete(s.inFlight, item)
	}
	s.mu.Unlock()
	s.upsell.Cancel()
}

func (s *Session) track(item string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[item] = cancel
}

func (s *Session) untrack(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inFlight[item]; ok {
		cancel()
		delete(s.inFlight, item)
	}
}
