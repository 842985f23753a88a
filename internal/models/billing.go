package models

import "time"

// BillingEventType — нормализованный тип платёжного события.
type BillingEventType string

const (
	// EventSubscriptionActivated — подписка оплачена или продлена.
	EventSubscriptionActivated BillingEventType = "subscription.activated"
	// EventSubscriptionCancelled — подписка отменена.
	EventSubscriptionCancelled BillingEventType = "subscription.cancelled"
	// EventSubscriptionExpired — срок подписки истёк без продления.
	EventSubscriptionExpired BillingEventType = "subscription.expired"
)

// BillingEvent — проверенное событие платёжного провайдера.
// Подпись уже проверена обработчиком вебхука.
type BillingEvent struct {
	ID          string           `json:"id"`
	Type        BillingEventType `json:"type"`
	PlanID      PlanID           `json:"plan_id,omitempty"`
	CustomerRef string           `json:"customer_ref"`         // ID клиента у провайдера
	AccountRef  string           `json:"account_ref,omitempty"` // ID аккаунта из метаданных, если провайдер его передал
	OccurredAt  time.Time        `json:"occurred_at"`
}

// TierChange — запрос на смену тарифа аккаунта, порождённый событием.
type TierChange struct {
	EventID    string
	AccountID  string
	Tier       SubscriptionTier
	OccurredAt time.Time
}

// TierChangedMessage публикуется в канал оповещений после смены тарифа.
type TierChangedMessage struct {
	AccountID  string           `json:"account_id"`
	Tier       SubscriptionTier `json:"tier"`
	EventID    string           `json:"event_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// UnresolvedEventMessage публикуется в операторский канал, если
// событие не удалось сопоставить с аккаунтом или планом.
type UnresolvedEventMessage struct {
	Event  BillingEvent `json:"event"`
	Reason string       `json:"reason"`
}
