// Package billing переводит проверенные платёжные события в смену тарифа
// аккаунта и запускает оформление подписки у платёжного провайдера.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/career-entitlements/internal/catalog"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/services/entitlement"
	"github.com/magabrotheeeer/career-entitlements/internal/storage/repository"
)

var (
	// ErrUnknownAccount возвращается, если событие не удалось сопоставить с аккаунтом.
	ErrUnknownAccount = errors.New("billing event does not match any account")
	// ErrTransientPersistence возвращается, если смену тарифа не удалось
	// записать после всех повторных попыток.
	ErrTransientPersistence = errors.New("tier change could not be persisted")
)

// Причины, с которыми событие уходит в операторский канал.
const (
	ReasonUnknownAccount = "unknown_account"
	ReasonUnknownPlan    = "unknown_plan"
)

// Outcome итог обработки события.
type Outcome string

const (
	// OutcomeApplied тариф аккаунта изменён.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnchanged событие уже обработано или устарело.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeIgnored тип события не влияет на тариф.
	OutcomeIgnored Outcome = "ignored"
)

// Result результат обработки события.
type Result struct {
	Outcome   Outcome                 `json:"outcome"`
	AccountID string                  `json:"account_id,omitempty"`
	Tier      models.SubscriptionTier `json:"tier,omitempty"`
}

// Repository методы хранилища для применения смены тарифа.
type Repository interface {
	ResolveAccount(ctx context.Context, customerRef, accountRef string) (string, error)
	SetTier(ctx context.Context, change models.TierChange) (bool, error)
}

// Cache сбрасывает закэшированный тариф.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Notifier публикует уведомления о событиях биллинга.
type Notifier interface {
	PublishUnresolved(ctx context.Context, msg models.UnresolvedEventMessage) error
	PublishTierChanged(ctx context.Context, msg models.TierChangedMessage) error
}

// Recorder принимает метрики обработки событий.
type Recorder interface {
	RecordBillingEvent(eventType models.BillingEventType, result string)
	RecordBillingRetry()
}

// RetryPolicy ограничивает повторные попытки записи.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Bridge применяет платёжные события к тарифам аккаунтов.
type Bridge struct {
	repo     Repository
	cache    Cache
	notifier Notifier
	recorder Recorder
	retry    RetryPolicy
	log      *slog.Logger
}

// NewBridge создаёт новый экземпляр Bridge.
func NewBridge(repo Repository, cache Cache, notifier Notifier, recorder Recorder, retry RetryPolicy, log *slog.Logger) *Bridge {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	return &Bridge{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		recorder: recorder,
		retry:    retry,
		log:      log,
	}
}

// Apply применяет событие. Повторная доставка события ничего не меняет,
// событие старше уже применённого не перезаписывает тариф.
func (b *Bridge) Apply(ctx context.Context, ev models.BillingEvent) (Result, error) {
	const op = "services.billing.Apply"
	log := b.log.With(
		slog.String("op", op),
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Type)),
	)

	tier, err := targetTier(ev)
	if errors.Is(err, errIgnoredEvent) {
		log.Debug("event does not affect tiers")
		b.record(ev.Type, string(OutcomeIgnored))
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		log.Warn("event references unknown plan", slog.String("plan_id", string(ev.PlanID)))
		b.unresolved(ctx, log, ev, ReasonUnknownPlan)
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	var accountID string
	err = b.withRetry(ctx, log, func() error {
		var resolveErr error
		accountID, resolveErr = b.repo.ResolveAccount(ctx, ev.CustomerRef, ev.AccountRef)
		return resolveErr
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		log.Warn("event does not match any account", slog.String("customer_ref", ev.CustomerRef))
		b.unresolved(ctx, log, ev, ReasonUnknownAccount)
		return Result{}, fmt.Errorf("%s: %w", op, ErrUnknownAccount)
	}
	if err != nil {
		b.record(ev.Type, "failed")
		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrTransientPersistence, err)
	}

	change := models.TierChange{
		EventID:    ev.ID,
		AccountID:  accountID,
		Tier:       tier,
		OccurredAt: ev.OccurredAt,
	}
	var applied bool
	err = b.withRetry(ctx, log, func() error {
		var setErr error
		applied, setErr = b.repo.SetTier(ctx, change)
		return setErr
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		b.unresolved(ctx, log, ev, ReasonUnknownAccount)
		return Result{}, fmt.Errorf("%s: %w", op, ErrUnknownAccount)
	}
	if err != nil {
		log.Error("failed to persist tier change", sl.Err(err))
		b.record(ev.Type, "failed")
		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrTransientPersistence, err)
	}

	res := Result{AccountID: accountID, Tier: tier, Outcome: OutcomeUnchanged}
	if !applied {
		log.Info("event already applied or superseded", slog.String("account_id", accountID))
		b.record(ev.Type, string(OutcomeUnchanged))
		return res, nil
	}

	res.Outcome = OutcomeApplied
	if err := b.cache.Invalidate(ctx, entitlement.TierCacheKey(accountID)); err != nil {
		log.Warn("failed to invalidate tier cache", slog.String("account_id", accountID), sl.Err(err))
	}
	if b.notifier != nil {
		msg := models.TierChangedMessage{
			AccountID:  accountID,
			Tier:       tier,
			EventID:    ev.ID,
			OccurredAt: ev.OccurredAt,
		}
		if err := b.notifier.PublishTierChanged(ctx, msg); err != nil {
			log.Warn("failed to publish tier change", sl.Err(err))
		}
	}
	b.record(ev.Type, string(OutcomeApplied))
	log.Info("tier changed", slog.String("account_id", accountID), slog.String("tier", tier.String()))
	return res, nil
}

var errIgnoredEvent = errors.New("ignored event")

func targetTier(ev models.BillingEvent) (models.SubscriptionTier, error) {
	switch ev.Type {
	case models.EventSubscriptionActivated:
		plan, err := catalog.PlanFor(ev.PlanID)
		if err != nil {
			return "", err
		}
		return plan.Tier, nil
	case models.EventSubscriptionCancelled, models.EventSubscriptionExpired:
		return models.TierFree, nil
	default:
		return "", errIgnoredEvent
	}
}

// withRetry повторяет fn с экспоненциальной задержкой. Отсутствие аккаунта
// и ошибки данных не повторяются.
func (b *Bridge) withRetry(ctx context.Context, log *slog.Logger, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	if b.retry.InitialInterval > 0 {
		exp.InitialInterval = b.retry.InitialInterval
	}
	if b.retry.MaxInterval > 0 {
		exp.MaxInterval = b.retry.MaxInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, b.retry.MaxAttempts-1), ctx)

	operation := func() error {
		err := fn()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if b.recorder != nil {
			b.recorder.RecordBillingRetry()
		}
		log.Warn("retrying billing persistence", slog.Duration("wait", wait), sl.Err(err))
	}
	return backoff.RetryNotify(operation, policy, notify)
}

func isTransient(err error) bool {
	if errors.Is(err, repository.ErrAccountNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		// Классы 22 (ошибки данных) и 23 (нарушение ограничений) не повторяем.
		class := pgErr.Code[:2]
		return class != "22" && class != "23"
	}
	return true
}

func (b *Bridge) unresolved(ctx context.Context, log *slog.Logger, ev models.BillingEvent, reason string) {
	b.record(ev.Type, reason)
	if b.notifier == nil {
		return
	}
	msg := models.UnresolvedEventMessage{Event: ev, Reason: reason}
	if err := b.notifier.PublishUnresolved(ctx, msg); err != nil {
		log.Error("failed to publish unresolved event", sl.Err(err))
	}
}

func (b *Bridge) record(eventType models.BillingEventType, result string) {
	if b.recorder == nil {
		return
	}
	b.recorder.RecordBillingEvent(eventType, result)
}
