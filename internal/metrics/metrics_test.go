package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

func TestRecordDecision(t *testing.T) {
	m := New("test")

	m.RecordDecision("consume", models.TierPro, true, "")
	m.RecordDecision("consume", models.TierPro, true, "")
	m.RecordDecision("evaluate", models.TierFree, false, "quota_exceeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("consume", "pro", "allowed", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("evaluate", "free", "denied", "quota_exceeded")))
}

func TestRecordBillingAndPurge(t *testing.T) {
	m := New("test")

	m.RecordBillingEvent(models.EventSubscriptionActivated, "applied")
	m.RecordBillingRetry()
	m.RecordBillingRetry()
	m.RecordPurge(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.billingEvents.WithLabelValues("subscription.activated", "applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.billingRetries))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.purgedCounters))
}

func TestHandler(t *testing.T) {
	m := New("test")
	m.RecordDecision("evaluate", models.TierPro, true, "")
	m.ObserveRequest(http.MethodGet, "/api/v1/entitlements", http.StatusOK, 10*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "entitlement_decisions_total"))
	assert.True(t, strings.Contains(body, "http_request_duration_seconds"))
	assert.True(t, strings.Contains(body, `service="test"`))
}
