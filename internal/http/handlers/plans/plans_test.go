package plans

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestPlansHandler_ServeHTTP(t *testing.T) {
	handler := New(newNoopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string  `json:"status"`
		Data   Catalog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)

	assert.Equal(t, []TierInfo{
		{Tier: models.TierFree, Limits: models.TierLimits{}},
		{Tier: models.TierPro, Limits: models.TierLimits{RequestsPerMonth: 500, MaxTokensPerRequest: 4000}},
	}, resp.Data.Tiers)

	require.Len(t, resp.Data.Plans, 2)
	assert.Equal(t, models.PlanProMonthly, resp.Data.Plans[0].PlanID)
	assert.EqualValues(t, 999, resp.Data.Plans[0].AmountCents)
	assert.Equal(t, models.PlanProYearly, resp.Data.Plans[1].PlanID)
	assert.EqualValues(t, 9990, resp.Data.Plans[1].AmountCents)
}
