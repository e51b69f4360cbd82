package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"fitgenius-bot/internal/payment"

	"github.com/stripe/stripe-go/v72"
)

// HandleStripeWebhook completes onboarding for users whose checkout succeeded.
func (t *TelegramBot) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.logger.Errorw("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if t.stripeClient == nil || t.stripeClient.GetWebhookSecret() == "" {
		t.logger.Errorw("Webhook secret is not configured")
		http.Error(w, "Webhook not configured", http.StatusInternalServerError)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		t.logger.Errorw("Missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := t.stripeClient.VerifyWebhookSignature(body, signature, t.stripeClient.GetWebhookSecret())
	if err != nil {
		t.logger.Errorw("Failed to verify webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		userID, sessionID, err := payment.CompletedCheckout(event)
		if err != nil {
			t.logger.Errorw("Unusable checkout event", "error", err)
			http.Error(w, "Invalid checkout session", http.StatusBadRequest)
			return
		}

		// generation outlives the webhook request
		go t.handlePaymentSuccess(userID, sessionID)
		t.logger.Infow("Payment processing started", "user_id", userID, "session_id", sessionID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			t.logger.Errorw("Failed to parse payment intent", "error", err)
			break
		}
		t.logger.Warnw("Payment failed", "payment_id", intent.ID, "error", intent.LastPaymentError)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

func (t *TelegramBot) handlePaymentSuccess(userID int64, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.genTimeout)
	defer cancel()

	t.sessionMutex.RLock()
	s, ok := t.sessions[userID]
	t.sessionMutex.RUnlock()
	if !ok {
		t.logger.Warnw("Payment for unknown session", "user_id", userID, "session_id", sessionID)
		return
	}

	s.mu.Lock()
	profile := s.pending
	s.pending = nil
	s.mu.Unlock()
	if profile == nil {
		t.logger.Warnw("Payment without pending profile", "user_id", userID, "session_id", sessionID)
		return
	}

	t.send(s.chatID, "🎉 Pembayaran diterima! Rencana minggu pertamamu sedang disusun...")
	t.completeOnboarding(ctx, s, profile)
}

// WebhookHandler returns the Stripe endpoint, or nil when checkout is not
// configured.
func (t *TelegramBot) WebhookHandler() http.Handler {
	if t.stripeClient == nil {
		return nil
	}
	return http.HandlerFunc(t.HandleStripeWebhook)
}
