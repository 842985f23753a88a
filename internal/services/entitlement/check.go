// Package entitlement решает, может ли аккаунт выполнить платное действие
// на своём тарифе, и ведёт учёт использования за календарный месяц.
package entitlement

import "github.com/magabrotheeeer/career-entitlements/internal/models"

// Reason — причина отказа.
type Reason string

const (
	// ReasonNone — действие разрешено.
	ReasonNone Reason = ""
	// ReasonQuotaExceeded — исчерпан месячный лимит тарифа.
	ReasonQuotaExceeded Reason = "quota_exceeded"
	// ReasonRequestTooLarge — действие больше допустимого размера.
	ReasonRequestTooLarge Reason = "request_too_large"
)

// Message возвращает текст для пользователя.
func (r Reason) Message() string {
	switch r {
	case ReasonQuotaExceeded:
		return "monthly limit reached, upgrade to Pro to continue"
	case ReasonRequestTooLarge:
		return "request too large"
	default:
		return ""
	}
}

// Decision — результат проверки прав. Отказ является штатным исходом,
// а не ошибкой.
type Decision struct {
	Allowed   bool                    `json:"allowed"`
	Reason    Reason                  `json:"reason,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Tier      models.SubscriptionTier `json:"tier"`
	Limit     int                     `json:"limit"`
	Used      int                     `json:"used"`
	Remaining int                     `json:"remaining"` // Сколько действий останется после текущего
}

// Check — чистая функция проверки. Порядок правил:
//  1. тариф без месячного лимита отклоняется как QuotaExceeded при любом запросе;
//  2. размер больше MaxTokensPerRequest отклоняется как RequestTooLarge;
//  3. used >= RequestsPerMonth отклоняется как QuotaExceeded;
//  4. иначе разрешено.
func Check(tier models.SubscriptionTier, limits models.TierLimits, used, size int) Decision {
	if used < 0 {
		used = 0
	}
	d := Decision{
		Tier:  tier,
		Limit: limits.RequestsPerMonth,
		Used:  used,
	}

	switch {
	case limits.RequestsPerMonth <= 0:
		return deny(d, ReasonQuotaExceeded)
	case size > limits.MaxTokensPerRequest:
		return deny(d, ReasonRequestTooLarge)
	case used >= limits.RequestsPerMonth:
		return deny(d, ReasonQuotaExceeded)
	}

	d.Allowed = true
	d.Remaining = limits.RequestsPerMonth - used - 1
	return d
}

func deny(d Decision, reason Reason) Decision {
	d.Allowed = false
	d.Reason = reason
	d.Message = reason.Message()
	d.Remaining = max(d.Limit-d.Used, 0)
	return d
}
