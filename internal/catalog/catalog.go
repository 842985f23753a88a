// Package catalog содержит неизменяемый справочник тарифов: лимиты по
// каждому тарифу и цены платёжных планов.
package catalog

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

var (
	// ErrUnknownTier возвращается для тарифа вне фиксированного набора.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrUnknownPlan возвращается для неизвестного идентификатора плана.
	ErrUnknownPlan = errors.New("unknown plan")
)

const currency = "usd"

var limits = map[models.SubscriptionTier]models.TierLimits{
	models.TierFree: {RequestsPerMonth: 0, MaxTokensPerRequest: 0},
	models.TierPro:  {RequestsPerMonth: 500, MaxTokensPerRequest: 4000},
}

// Годовой план стоит как десять месяцев.
var plans = map[models.PlanID]models.PricingPlan{
	models.PlanProMonthly: {
		PlanID:      models.PlanProMonthly,
		Tier:        models.TierPro,
		AmountCents: 999,
		Currency:    currency,
		Interval:    models.IntervalMonth,
	},
	models.PlanProYearly: {
		PlanID:      models.PlanProYearly,
		Tier:        models.TierPro,
		AmountCents: 9990,
		Currency:    currency,
		Interval:    models.IntervalYear,
	},
}

// LimitsFor возвращает лимиты тарифа.
func LimitsFor(tier models.SubscriptionTier) (models.TierLimits, error) {
	const op = "catalog.LimitsFor"
	l, ok := limits[tier]
	if !ok {
		return models.TierLimits{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownTier, tier)
	}
	return l, nil
}

// PlanFor возвращает платёжный план по идентификатору.
func PlanFor(planID models.PlanID) (models.PricingPlan, error) {
	const op = "catalog.PlanFor"
	p, ok := plans[planID]
	if !ok {
		return models.PricingPlan{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownPlan, planID)
	}
	return p, nil
}

// PriceFor возвращает цену плана в минимальных единицах валюты.
func PriceFor(planID models.PlanID) (int64, error) {
	p, err := PlanFor(planID)
	if err != nil {
		return 0, err
	}
	return p.AmountCents, nil
}

// Tiers возвращает все тарифы в порядке возрастания лимитов.
func Tiers() []models.SubscriptionTier {
	return []models.SubscriptionTier{models.TierFree, models.TierPro}
}

// Plans возвращает все платёжные планы, сначала помесячный.
func Plans() []models.PricingPlan {
	return []models.PricingPlan{plans[models.PlanProMonthly], plans[models.PlanProYearly]}
}
