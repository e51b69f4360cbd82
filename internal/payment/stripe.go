// internal/payment/stripe.go
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"fitgenius-bot/config"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
)

var ErrNotCheckoutCompleted = errors.New("event is not a completed checkout")

type StripeClient struct {
	secretKey     string
	publicKey     string
	webhookSecret string
	priceID       string
	productID     string
}

// NewStripeClient returns nil when checkout is not configured, which keeps
// onboarding ungated.
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	if !cfg.Enabled() {
		return nil
	}

	// Set the secret key for backend operations
	stripe.Key = cfg.SecretKey

	return &StripeClient{
		secretKey:     cfg.SecretKey,
		publicKey:     cfg.PublicKey,
		webhookSecret: cfg.WebhookKey,
		priceID:       cfg.PriceID,
		productID:     cfg.ProductID,
	}
}

func (s *StripeClient) GetWebhookSecret() string {
	return s.webhookSecret
}

func (s *StripeClient) GetPriceID() string {
	return s.priceID
}

// CreateCheckoutSession returns the session ID and the hosted checkout URL.
// The Telegram user ID travels as the client reference.
func (s *StripeClient) CreateCheckoutSession(userID int64, successURL, cancelURL string) (string, string, error) {
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(userID, 10)),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ID, sess.URL, nil
}

func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error) {
	if webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, webhookSecret)
}

// CompletedCheckout extracts the paying user and session from a
// checkout.session.completed event.
func CompletedCheckout(event stripe.Event) (userID int64, sessionID string, err error) {
	if event.Type != "checkout.session.completed" {
		return 0, "", ErrNotCheckoutCompleted
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return 0, "", fmt.Errorf("failed to parse checkout session: %w", err)
	}
	if sess.ClientReferenceID == "" {
		return 0, "", fmt.Errorf("checkout session %s has no client reference", sess.ID)
	}

	userID, err = strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid client reference %q: %w", sess.ClientReferenceID, err)
	}
	return userID, sess.ID, nil
}
