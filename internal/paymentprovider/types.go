package paymentprovider

import (
	"errors"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

var (
	// ErrInvalidSignature возвращается, если подпись вебхука не прошла проверку.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent возвращается, если тело события не удалось разобрать.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Ключи метаданных, которые сервис записывает в объекты провайдера.
const (
	MetadataAccountID = "account_id"
	MetadataPlanID    = "plan_id"
)

// CheckoutRequest параметры создания сессии оплаты
type CheckoutRequest struct {
	AccountID  string
	CustomerID string
	PlanID     models.PlanID
}

// CheckoutSession ответ провайдера на создание сессии оплаты
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
