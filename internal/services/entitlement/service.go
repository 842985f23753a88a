package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/career-entitlements/internal/catalog"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/month"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/storage/repository"
)

const tierCacheTTL = 10 * time.Minute

// AccountRepository определяет методы хранилища, нужные для проверки прав.
type AccountRepository interface {
	// EnsureAccount создаёт аккаунт с тарифом free, если его ещё нет.
	EnsureAccount(ctx context.Context, accountID, email string) (*models.Account, error)
	// GetAccountTier возвращает текущий тариф аккаунта.
	GetAccountTier(ctx context.Context, accountID string) (models.SubscriptionTier, error)
	// GetUsage возвращает использование за период.
	GetUsage(ctx context.Context, accountID, period string) (int, error)
	// IncrementUsageIfBelowLimit атомарно увеличивает счётчик, если он меньше limit.
	IncrementUsageIfBelowLimit(ctx context.Context, accountID, period string, limit int) (int, bool, error)
}

// Cache описывает методы для кэширования тарифа.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Recorder принимает результаты проверок для метрик.
type Recorder interface {
	RecordDecision(op string, tier models.SubscriptionTier, allowed bool, reason string)
}

// Summary описывает состояние прав аккаунта за текущий период.
type Summary struct {
	AccountID string                  `json:"account_id"`
	Tier      models.SubscriptionTier `json:"tier"`
	Limits    models.TierLimits       `json:"limits"`
	Period    string                  `json:"period"`
	Used      int                     `json:"used"`
	Remaining int                     `json:"remaining"`
	ResetsAt  time.Time               `json:"resets_at"`
}

// Service проверяет права аккаунтов и учитывает использование.
type Service struct {
	repo     AccountRepository
	cache    Cache
	recorder Recorder
	log      *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService создаёт новый экземпляр Service.
func NewService(repo AccountRepository, cache Cache, recorder Recorder, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// TierCacheKey возвращает ключ кэша с тарифом аккаунта.
func TierCacheKey(accountID string) string {
	return "account:tier:" + accountID
}

// Evaluate решает, разрешено ли действие размера tokens, ничего не меняя.
func (s *Service) Evaluate(ctx context.Context, caller models.Caller, tokens int) (Decision, error) {
	const op = "services.entitlement.Evaluate"

	tier, limits, err := s.resolve(ctx, caller)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	used, err := s.repo.GetUsage(ctx, caller.AccountID, month.Period(s.now()))
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	d := Check(tier, limits, used, tokens)
	s.record("evaluate", d)
	return d, nil
}

// Consume учитывает выполненное платное действие. Вызывается после того,
// как действие успешно выполнено. Счётчик увеличивается одной условной
// операцией хранилища, поэтому параллельные запросы не превышают лимит.
func (s *Service) Consume(ctx context.Context, caller models.Caller, tokens int) (Decision, error) {
	const op = "services.entitlement.Consume"
	log := s.log.With(slog.String("op", op), slog.String("account_id", caller.AccountID))

	tier, limits, err := s.resolve(ctx, caller)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	period := month.Period(s.now())
	used, err := s.repo.GetUsage(ctx, caller.AccountID, period)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	d := Check(tier, limits, used, tokens)
	if !d.Allowed {
		s.record("consume", d)
		return d, nil
	}

	newUsed, ok, err := s.repo.IncrementUsageIfBelowLimit(ctx, caller.AccountID, period, limits.RequestsPerMonth)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Info("usage increment rejected by storage limit", slog.String("period", period))
		d = Check(tier, limits, limits.RequestsPerMonth, tokens)
		s.record("consume", d)
		return d, nil
	}

	d = Decision{
		Allowed:   true,
		Tier:      tier,
		Limit:     limits.RequestsPerMonth,
		Used:      newUsed,
		Remaining: max(limits.RequestsPerMonth-newUsed, 0),
	}
	s.record("consume", d)
	log.Debug("usage recorded", slog.Int("used", newUsed), slog.String("period", period))
	return d, nil
}

// Summary возвращает тариф, лимиты и использование за текущий период.
func (s *Service) Summary(ctx context.Context, caller models.Caller) (*Summary, error) {
	const op = "services.entitlement.Summary"

	tier, limits, err := s.resolve(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	period := month.Period(now)
	used, err := s.repo.GetUsage(ctx, caller.AccountID, period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Summary{
		AccountID: caller.AccountID,
		Tier:      tier,
		Limits:    limits,
		Period:    period,
		Used:      used,
		Remaining: max(limits.RequestsPerMonth-used, 0),
		ResetsAt:  month.NextStart(now),
	}, nil
}

func (s *Service) resolve(ctx context.Context, caller models.Caller) (models.SubscriptionTier, models.TierLimits, error) {
	tier, err := s.tier(ctx, caller)
	if err != nil {
		return "", models.TierLimits{}, err
	}
	limits, err := catalog.LimitsFor(tier)
	if err != nil {
		return "", models.TierLimits{}, err
	}
	return tier, limits, nil
}

// tier читает тариф из кэша, а при промахе из хранилища. Одновременные
// промахи по одному аккаунту схлопываются в один запрос.
func (s *Service) tier(ctx context.Context, caller models.Caller) (models.SubscriptionTier, error) {
	key := TierCacheKey(caller.AccountID)

	var cached models.SubscriptionTier
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read tier from cache", slog.String("key", key), sl.Err(err))
	}
	if found && cached.Valid() {
		return cached, nil
	}

	v, err, _ := s.group.Do(caller.AccountID, func() (any, error) {
		tier, err := s.repo.GetAccountTier(ctx, caller.AccountID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			acc, ensureErr := s.repo.EnsureAccount(ctx, caller.AccountID, caller.Email)
			if ensureErr != nil {
				return nil, ensureErr
			}
			s.log.Info("account provisioned", slog.String("account_id", acc.ID), slog.String("tier", acc.Tier.String()))
			tier, err = acc.Tier, nil
		}
		if err != nil {
			return nil, err
		}
		if !tier.Valid() {
			return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownTier, tier)
		}
		if err := s.cache.Set(ctx, key, tier, tierCacheTTL); err != nil {
			s.log.Warn("failed to cache tier", slog.String("key", key), sl.Err(err))
		}
		return tier, nil
	})
	if err != nil {
		return "", err
	}
	return v.(models.SubscriptionTier), nil
}

func (s *Service) record(op string, d Decision) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordDecision(op, d.Tier, d.Allowed, string(d.Reason))
}
