// Package viewer is the client side of the paywall: an HTTP client for the
// storefront API plus a Session that drives unlock state and the lifetime
// upsell for one viewer.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
)

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	Status  int
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("viewer: api returned %d: %s", e.Status, e.Message)
}

// IntentRequest mirrors the POST /create-payment-intent body.
type IntentRequest struct {
	ContentItemID string
	Price         decimal.Decimal
	Type          string
}

// MarshalJSON sends price as a JSON number. decimal.Decimal on its own
// marshals as a quoted string.
func (r IntentRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ContentItemID string      `json:"contentItemId,omitempty"`
		Price         json.Number `json:"price"`
		Type          string      `json:"type"`
	}{
		ContentItemID: r.ContentItemID,
		Price:         json.Number(r.Price.String()),
		Type:          r.Type,
	})
}

// Item is the canonical item echoed back with an embedded intent.
type Item struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"priceMinor"`
	Price      string `json:"price"`
}

// Intent is the POST /create-payment-intent response.
type Intent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	SessionID       string `json:"sessionId"`
	CheckoutURL     string `json:"checkoutUrl"`
	Item            *Item  `json:"item"`
}

// CheckoutSession is the GET /api/checkout-sessions/{id} response.
type CheckoutSession struct {
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Paid          bool   `json:"paid"`
	Type          string `json:"type"`
	ContentItemID string `json:"contentItemId"`
}

// StoreConfig is the GET /api/config response.
type StoreConfig struct {
	PublishableKey     string `json:"publishableKey"`
	Currency           string `json:"currency"`
	LifetimePriceMinor int64  `json:"lifetimePriceMinor"`
	LifetimePrice      string `json:"lifetimePrice"`
	UpsellDelayMs      int64  `json:"upsellDelayMs"`
}

// UpsellDelay converts UpsellDelayMs.
func (c StoreConfig) UpsellDelay() time.Duration {
	return time.Duration(c.UpsellDelayMs) * time.Millisecond
}

// Client talks to the storefront API as one purchaser.
type Client struct {
	http        *resty.Client
	purchaserID string
}

// NewClient returns a Client for baseURL. purchaserID may be empty for a
// guest.
func NewClient(baseURL, purchaserID string) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})
	if purchaserID != "" {
		h.SetHeader("X-Purchaser-ID", purchaserID)
	}
	return &Client{http: h, purchaserID: purchaserID}
}

// PurchaserID returns the purchaser this client acts as.
func (c *Client) PurchaserID() string { return c.purchaserID }

// Config fetches the public store settings.
func (c *Client) Config(ctx context.Context) (StoreConfig, error) {
	var out StoreConfig
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/config")
	if err := check(resp, err); err != nil {
		return StoreConfig{}, err
	}
	return out, nil
}

// CreateIntent asks the server for an intent or checkout session.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	var out Intent
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/create-payment-intent")
	if err := check(resp, err); err != nil {
		return Intent{}, err
	}
	return out, nil
}

// CheckoutSession reads a checkout session to corroborate a redirect return.
func (c *Client) CheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	var out CheckoutSession
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).
		Get("/api/checkout-sessions/" + url.PathEscape(sessionID))
	if err := check(resp, err); err != nil {
		return CheckoutSession{}, err
	}
	return out, nil
}

// Entitlements fetches what the purchaser holds.
func (c *Client) Entitlements(ctx context.Context) (entitlement.Snapshot, error) {
	var out entitlement.Snapshot
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/entitlements")
	if err := check(resp, err); err != nil {
		return entitlement.Snapshot{}, err
	}
	out.PurchaserID = c.purchaserID
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("viewer: request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		return &APIError{Status: resp.StatusCode(), Message: resp.String()}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}
