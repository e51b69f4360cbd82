package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fitgenius-bot/config"
	"fitgenius-bot/internal/app"
	"fitgenius-bot/internal/payment"
	"fitgenius-bot/internal/store"
	"fitgenius-bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

const webhookSecret = "whsec_test"

func newPaidBot(t *testing.T) (*TelegramBot, *fakeSender) {
	t.Helper()
	sc := payment.NewStripeClient(config.StripeConfig{SecretKey: "sk_test_x", PriceID: "price_1", WebhookKey: webhookSecret})
	require.NotNil(t, sc)
	out := &fakeSender{}
	b := newTelegramBot(out, "fitgenius_bot", Options{KeyPrefix: "fitgenius_data_v4"}, &fakeGen{keys: []string{"k1"}}, store.NewMemoryStore(), sc, logger.NewNop())
	return b, out
}

func signedRequest(payload string, secret string) *http.Request {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func checkoutEvent(clientRef string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","client_reference_id":%q}}}`,
		stripe.APIVersion, clientRef)
}

func TestWebhook_DisabledWithoutStripe(t *testing.T) {
	b, _ := newTestBot(&fakeGen{}, store.NewMemoryStore())
	assert.Nil(t, b.WebhookHandler())
}

func TestWebhook_RejectsBadRequests(t *testing.T) {
	b, _ := newPaidBot(t)
	h := b.WebhookHandler()
	require.NotNil(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/stripe", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(checkoutEvent("1001"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing signature")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(checkoutEvent("1001"), "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "wrong secret")
}

func TestWebhook_CompletedCheckoutGeneratesFirstPlan(t *testing.T) {
	ctx := context.Background()
	b, out := newPaidBot(t)

	s := b.sessionFor(ctx, testUserID, testUserID)
	require.Equal(t, app.ViewOnboarding, s.machine.View())
	s.mu.Lock()
	s.pending = testProfile()
	s.mu.Unlock()

	rec := httptest.NewRecorder()
	b.WebhookHandler().ServeHTTP(rec, signedRequest(checkoutEvent("1001"), webhookSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Webhook received", rec.Body.String())

	assert.Eventually(t, func() bool {
		return s.machine.View() == app.ViewDashboard
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.last(), "Minggu ke-1")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebhook_PendingProfileBlocksOnboardingAnswers(t *testing.T) {
	ctx := context.Background()
	b, out := newPaidBot(t)

	s := b.sessionFor(ctx, testUserID, testUserID)
	s.mu.Lock()
	s.pending = testProfile()
	s.mu.Unlock()

	b.handleMessage(ctx, text("halo"))

	assert.Contains(t, out.last(), "Selesaikan pembayaran")
	assert.Equal(t, app.ViewOnboarding, s.machine.View())
}
