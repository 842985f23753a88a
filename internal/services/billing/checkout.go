package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/career-entitlements/internal/catalog"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/paymentprovider"
)

var (
	// ErrAlreadySubscribed возвращается при попытке купить тариф, который уже действует.
	ErrAlreadySubscribed = errors.New("account already has this tier")
	// ErrNoBillingAccount возвращается, если у аккаунта ещё нет клиента у провайдера.
	ErrNoBillingAccount = errors.New("account has no billing customer")
)

// AccountRepository методы хранилища для оформления подписки.
type AccountRepository interface {
	EnsureAccount(ctx context.Context, accountID, email string) (*models.Account, error)
	SetStripeCustomer(ctx context.Context, accountID, customerID string) error
}

// PaymentProvider методы платёжного провайдера.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, accountID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, req paymentprovider.CheckoutRequest) (*paymentprovider.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// CheckoutService оформляет подписку через платёжного провайдера.
type CheckoutService struct {
	repo     AccountRepository
	provider PaymentProvider
	log      *slog.Logger
}

// NewCheckoutService создаёт новый экземпляр CheckoutService.
func NewCheckoutService(repo AccountRepository, provider PaymentProvider, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		repo:     repo,
		provider: provider,
		log:      log,
	}
}

// StartCheckout создаёт сессию оплаты плана planID. Клиент у провайдера
// создаётся при первом оформлении и сохраняется в аккаунте.
func (s *CheckoutService) StartCheckout(ctx context.Context, caller models.Caller, planID models.PlanID) (*paymentprovider.CheckoutSession, error) {
	const op = "services.billing.StartCheckout"
	log := s.log.With(slog.String("op", op), slog.String("account_id", caller.AccountID))

	plan, err := catalog.PlanFor(planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := s.repo.EnsureAccount(ctx, caller.AccountID, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if acc.Tier == plan.Tier {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadySubscribed)
	}

	customerID := acc.StripeCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, acc.ID, caller.Email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = s.repo.SetStripeCustomer(ctx, acc.ID, customerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("billing customer created", slog.String("customer_id", customerID))
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutRequest{
		AccountID:  acc.ID,
		CustomerID: customerID,
		PlanID:     plan.PlanID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("checkout session created", slog.String("session_id", sess.ID), slog.String("plan_id", string(plan.PlanID)))
	return sess, nil
}

// PortalURL возвращает ссылку на портал управления подпиской.
func (s *CheckoutService) PortalURL(ctx context.Context, caller models.Caller) (string, error) {
	const op = "services.billing.PortalURL"

	acc, err := s.repo.EnsureAccount(ctx, caller.AccountID, caller.Email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if acc.StripeCustomerID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoBillingAccount)
	}

	url, err := s.provider.CreatePortalSession(ctx, acc.StripeCustomerID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}
