package models

import "time"

// Account представляет аккаунт пользователя с текущим тарифом.
// Пользователи живут в управляемом auth-бэкенде, здесь хранится только
// состояние прав доступа.
type Account struct {
	ID               string           `json:"id"`
	Email            string           `json:"email,omitempty"`
	Tier             SubscriptionTier `json:"tier"`
	StripeCustomerID string           `json:"-"`
	TierUpdatedAt    *time.Time       `json:"tier_updated_at,omitempty"` // Время события, последним поменявшего тариф
	CreatedAt        time.Time        `json:"created_at"`
}

// UsageCounter — счётчик платных действий аккаунта за период.
type UsageCounter struct {
	AccountID string `json:"account_id"`
	Period    string `json:"period"` // Календарный месяц в UTC, формат 2006-01
	Used      int    `json:"used"`
}

// Caller — аутентифицированный пользователь, от имени которого выполняется запрос.
type Caller struct {
	AccountID string
	Email     string
}
