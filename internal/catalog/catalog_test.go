package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		name    string
		tier    models.SubscriptionTier
		want    models.TierLimits
		wantErr error
	}{
		{
			name: "free tier has no metered allowance",
			tier: models.TierFree,
			want: models.TierLimits{RequestsPerMonth: 0, MaxTokensPerRequest: 0},
		},
		{
			name: "pro tier",
			tier: models.TierPro,
			want: models.TierLimits{RequestsPerMonth: 500, MaxTokensPerRequest: 4000},
		},
		{
			name:    "unknown tier",
			tier:    "enterprise",
			wantErr: ErrUnknownTier,
		},
		{
			name:    "empty tier",
			tier:    "",
			wantErr: ErrUnknownTier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LimitsFor(tt.tier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimitsFor_TotalAndDeterministic(t *testing.T) {
	for _, tier := range Tiers() {
		first, err := LimitsFor(tier)
		require.NoError(t, err, tier)
		second, err := LimitsFor(tier)
		require.NoError(t, err, tier)
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.RequestsPerMonth, 0)
		assert.GreaterOrEqual(t, first.MaxTokensPerRequest, 0)
	}
}

func TestLimits_ProIsSupersetOfFree(t *testing.T) {
	free, err := LimitsFor(models.TierFree)
	require.NoError(t, err)
	pro, err := LimitsFor(models.TierPro)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, pro.RequestsPerMonth, free.RequestsPerMonth)
	assert.GreaterOrEqual(t, pro.MaxTokensPerRequest, free.MaxTokensPerRequest)
}

func TestPriceFor(t *testing.T) {
	monthly, err := PriceFor(models.PlanProMonthly)
	require.NoError(t, err)
	yearly, err := PriceFor(models.PlanProYearly)
	require.NoError(t, err)

	assert.Positive(t, monthly)
	assert.Positive(t, yearly)
	assert.LessOrEqual(t, yearly, 12*monthly)
	assert.Equal(t, 10*monthly, yearly)

	_, err = PriceFor("pro_weekly")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestPlans(t *testing.T) {
	plans := Plans()
	require.Len(t, plans, 2)
	for _, p := range plans {
		assert.Equal(t, models.TierPro, p.Tier)
		got, err := PlanFor(p.PlanID)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}
