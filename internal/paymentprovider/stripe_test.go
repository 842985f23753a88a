package paymentprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/career-entitlements/internal/config"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testAccountID     = "550e8400-e29b-41d4-a716-446655440000"
)

func testConfig() config.Stripe {
	return config.Stripe{
		SecretKey:         "sk_test_123",
		WebhookSecret:     testWebhookSecret,
		PriceIDProMonthly: "price_monthly",
		PriceIDProYearly:  "price_yearly",
		FrontendURL:       "https://app.example.com/",
	}
}

func signedPayload(t *testing.T, body string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func eventJSON(id, typ string, created int64, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":%d,"api_version":"2024-06-20","data":{"object":%s}}`,
		id, typ, created, object)
}

func TestClient_ParseWebhook(t *testing.T) {
	created := int64(1772366400)
	occurred := time.Unix(created, 0).UTC()

	tests := []struct {
		name   string
		body   string
		want   *models.BillingEvent
		ignore bool
	}{
		{
			name: "checkout completed",
			body: eventJSON("evt_1", "checkout.session.completed", created,
				`{"id":"cs_1","object":"checkout.session","mode":"subscription","payment_status":"paid",
				  "customer":"cus_1","client_reference_id":"`+testAccountID+`",
				  "metadata":{"plan_id":"pro_yearly"}}`),
			want: &models.BillingEvent{
				ID: "evt_1", Type: models.EventSubscriptionActivated, PlanID: models.PlanProYearly,
				CustomerRef: "cus_1", AccountRef: testAccountID, OccurredAt: occurred,
			},
		},
		{
			name: "unpaid checkout is ignored",
			body: eventJSON("evt_2", "checkout.session.completed", created,
				`{"id":"cs_2","object":"checkout.session","mode":"subscription","payment_status":"unpaid","customer":"cus_1"}`),
			ignore: true,
		},
		{
			name: "subscription updated to active maps price to plan",
			body: eventJSON("evt_3", "customer.subscription.updated", created,
				`{"id":"sub_1","object":"subscription","status":"active","customer":"cus_1",
				  "metadata":{"account_id":"`+testAccountID+`"},
				  "items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_monthly","object":"price"}}]}}`),
			want: &models.BillingEvent{
				ID: "evt_3", Type: models.EventSubscriptionActivated, PlanID: models.PlanProMonthly,
				CustomerRef: "cus_1", AccountRef: testAccountID, OccurredAt: occurred,
			},
		},
		{
			name: "unknown price is passed through",
			body: eventJSON("evt_4", "customer.subscription.created", created,
				`{"id":"sub_1","object":"subscription","status":"active","customer":"cus_1",
				  "items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_legacy","object":"price"}}]}}`),
			want: &models.BillingEvent{
				ID: "evt_4", Type: models.EventSubscriptionActivated, PlanID: "price_legacy",
				CustomerRef: "cus_1", OccurredAt: occurred,
			},
		},
		{
			name: "subscription unpaid expires",
			body: eventJSON("evt_5", "customer.subscription.updated", created,
				`{"id":"sub_1","object":"subscription","status":"unpaid","customer":"cus_1"}`),
			want: &models.BillingEvent{
				ID: "evt_5", Type: models.EventSubscriptionExpired, CustomerRef: "cus_1", OccurredAt: occurred,
			},
		},
		{
			name: "past due keeps current tier",
			body: eventJSON("evt_6", "customer.subscription.updated", created,
				`{"id":"sub_1","object":"subscription","status":"past_due","customer":"cus_1"}`),
			ignore: true,
		},
		{
			name: "subscription deleted",
			body: eventJSON("evt_7", "customer.subscription.deleted", created,
				`{"id":"sub_1","object":"subscription","status":"canceled","customer":"cus_1"}`),
			want: &models.BillingEvent{
				ID: "evt_7", Type: models.EventSubscriptionCancelled, CustomerRef: "cus_1", OccurredAt: occurred,
			},
		},
		{
			name:   "unrelated event",
			body:   eventJSON("evt_8", "invoice.paid", created, `{"id":"in_1","object":"invoice"}`),
			ignore: true,
		},
	}

	c := NewClient(testConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, header := signedPayload(t, tt.body)

			got, err := c.ParseWebhook(payload, header)
			require.NoError(t, err)
			if tt.ignore {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_ParseWebhookInvalidSignature(t *testing.T) {
	c := NewClient(testConfig(), nil)
	payload, _ := signedPayload(t, eventJSON("evt_1", "invoice.paid", 1, `{}`))

	_, err := c.ParseWebhook(payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)

	other := NewClient(config.Stripe{WebhookSecret: "whsec_other"}, nil)
	_, header := signedPayload(t, string(payload))
	_, err = other.ParseWebhook(payload, header)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestClient_ParseWebhookMalformedObject(t *testing.T) {
	c := NewClient(testConfig(), nil)
	payload, header := signedPayload(t, eventJSON("evt_1", "customer.subscription.updated", 1, `{"status":42}`))

	_, err := c.ParseWebhook(payload, header)
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func newTestBackendClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewClient(testConfig(), &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestClient_CreateCustomer(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/customers", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, testAccountID, r.PostForm.Get("metadata[account_id]"))
		assert.Equal(t, "dev@example.com", r.PostForm.Get("email"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cus_new","object":"customer"}`))
	})

	id, err := c.CreateCustomer(context.Background(), testAccountID, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_yearly", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, testAccountID, r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "pro_yearly", r.PostForm.Get("subscription_data[metadata][plan_id]"))
		assert.Equal(t, "https://app.example.com/billing/success", r.PostForm.Get("success_url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_1"}`))
	})

	sess, err := c.CreateCheckoutSession(context.Background(), CheckoutRequest{
		AccountID: testAccountID, CustomerID: "cus_1", PlanID: models.PlanProYearly,
	})
	require.NoError(t, err)
	assert.Equal(t, &CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, sess)
}

func TestClient_CreateCheckoutSessionUnknownPlan(t *testing.T) {
	c := NewClient(testConfig(), nil)

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutRequest{PlanID: "enterprise"})
	require.Error(t, err)
}

func TestClient_CreateCheckoutSessionProviderError(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	})

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutRequest{
		AccountID: testAccountID, CustomerID: "cus_1", PlanID: models.PlanProMonthly,
	})
	require.Error(t, err)
}

func TestClient_CreatePortalSession(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/billing_portal/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"bps_1","object":"billing_portal.session","url":"https://billing.stripe.com/p/session/1"}`))
	})

	url, err := c.CreatePortalSession(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/1", url)
}
