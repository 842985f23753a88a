// Package models содержит доменные структуры сервиса: тарифы, лимиты,
// аккаунты, счётчики использования и платёжные события.
package models

// SubscriptionTier — название тарифного плана.
type SubscriptionTier string

const (
	// TierFree — бесплатный тариф, назначается при регистрации.
	TierFree SubscriptionTier = "free"
	// TierPro — платный тариф.
	TierPro SubscriptionTier = "pro"
)

// Valid сообщает, входит ли значение в фиксированный набор тарифов.
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierFree, TierPro:
		return true
	}
	return false
}

func (t SubscriptionTier) String() string {
	return string(t)
}

// TierLimits описывает лимиты тарифа.
type TierLimits struct {
	RequestsPerMonth    int `json:"requests_per_month"`     // Сколько платных действий доступно за календарный месяц
	MaxTokensPerRequest int `json:"max_tokens_per_request"` // Максимальный размер одного действия в токенах
}

// PlanID — идентификатор платёжного плана.
type PlanID string

const (
	// PlanProMonthly — помесячная оплата тарифа pro.
	PlanProMonthly PlanID = "pro_monthly"
	// PlanProYearly — годовая оплата тарифа pro.
	PlanProYearly PlanID = "pro_yearly"
)

// BillingInterval — период списания по плану.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// PricingPlan представляет платёжный план с фиксированной ценой.
type PricingPlan struct {
	PlanID      PlanID           `json:"plan_id"`
	Tier        SubscriptionTier `json:"tier"`
	AmountCents int64            `json:"amount_cents"` // Цена в минимальных единицах валюты
	Currency    string           `json:"currency"`
	Interval    BillingInterval  `json:"interval"`
}
