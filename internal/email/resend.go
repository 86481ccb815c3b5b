package email

import (
	"context"
	"fmt"
	"html"

	"github.com/resendlabs/resend-go"
)

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	client   *resend.Client
	fromAddr string // e.g. "receipts@gallery.example"
	fromName string // e.g. "The Gallery"
	baseURL  string // storefront origin, linked from every receipt
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName, baseURL string) Sender {
	return &resendClient{
		client:   resend.NewClient(apiKey),
		fromAddr: fromAddr,
		fromName: fromName,
		baseURL:  baseURL,
	}
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendPurchaseReceipt sends the receipt for one unlocked artwork.
func (c *resendClient) SendPurchaseReceipt(ctx context.Context, p PurchaseReceiptParams) error {
	subject := fmt.Sprintf("Your receipt for %s", p.ItemTitle)
	body := purchaseReceiptHTML(p.ItemTitle, FormatAmount(p.AmountMinor, p.Currency), p.PaymentRef, c.baseURL)
	return c.send(ctx, p.To, subject, body)
}

// SendLifetimeReceipt sends the receipt for lifetime access.
func (c *resendClient) SendLifetimeReceipt(ctx context.Context, p LifetimeReceiptParams) error {
	subject := "Welcome to lifetime access"
	body := lifetimeReceiptHTML(FormatAmount(p.AmountMinor, p.Currency), p.PaymentRef, c.baseURL)
	return c.send(ctx, p.To, subject, body)
}

func (c *resendClient) send(ctx context.Context, to, subject, htmlBody string) error {
	// The SDK call takes no context; honour cancellation before dispatch.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email: %w", err)
	}

	res, err := c.client.Emails.Send(&resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr),
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("email: resend send: %w", err)
	}
	if res.Id == "" {
		return fmt.Errorf("email: resend returned no message id")
	}
	return nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

func purchaseReceiptHTML(itemTitle, amount, paymentRef, baseURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Thank you for your purchase</h2>
  <p>You unlocked <strong>%s</strong> for <strong>%s</strong>.</p>
  <p style="margin: 32px 0;">
    <a href="%s/"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Back to the gallery
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">Payment reference: %s</p>
</body>
</html>`, html.EscapeString(itemTitle), amount, baseURL, html.EscapeString(paymentRef))
}

func lifetimeReceiptHTML(amount, paymentRef, baseURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Lifetime access unlocked</h2>
  <p>Every artwork in the gallery is now yours to view. You paid <strong>%s</strong>.</p>
  <p style="margin: 32px 0;">
    <a href="%s/"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Explore the gallery
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">Payment reference: %s</p>
</body>
</html>`, amount, baseURL, html.EscapeString(paymentRef))
}
