package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

const accountColumns = `id, COALESCE(email, ''), tier, COALESCE(stripe_customer_id, ''), tier_updated_at, created_at`

// EnsureAccount создаёт аккаунт с тарифом free, если его ещё нет,
// и возвращает текущее состояние аккаунта.
func (s *Storage) EnsureAccount(ctx context.Context, accountID, email string) (*models.Account, error) {
	const op = "storage.EnsureAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (id, email, tier)
			  VALUES ($1, NULLIF($2, ''), $3)
			  ON CONFLICT (id) DO UPDATE
			      SET email = COALESCE(accounts.email, EXCLUDED.email)
			  RETURNING ` + accountColumns
	acc, err := scanAccount(s.DB.QueryRowContext(ctx, query, accountID, email, models.TierFree))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// GetAccount возвращает аккаунт по ID.
func (s *Storage) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acc, err := scanAccount(s.DB.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// GetAccountTier возвращает текущий тариф аккаунта.
func (s *Storage) GetAccountTier(ctx context.Context, accountID string) (models.SubscriptionTier, error) {
	const op = "storage.GetAccountTier"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var tier models.SubscriptionTier
	err := s.DB.QueryRowContext(ctx, `SELECT tier FROM accounts WHERE id = $1`, accountID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return tier, nil
}

// ResolveAccount находит аккаунт по ID клиента платёжного провайдера,
// а если такой клиент не привязан, то по ID аккаунта из метаданных события.
func (s *Storage) ResolveAccount(ctx context.Context, customerRef, accountRef string) (string, error) {
	const op = "storage.ResolveAccount"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id string
	if customerRef != "" {
		err := s.DB.QueryRowContext(ctx,
			`SELECT id FROM accounts WHERE stripe_customer_id = $1`, customerRef).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	if _, err := uuid.Parse(accountRef); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1`, accountRef).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// SetStripeCustomer привязывает клиента платёжного провайдера к аккаунту.
func (s *Storage) SetStripeCustomer(ctx context.Context, accountID, customerID string) error {
	const op = "storage.SetStripeCustomer"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE accounts SET stripe_customer_id = $1 WHERE id = $2`, customerID, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var acc models.Account
	var tierUpdatedAt sql.NullTime
	if err := row.Scan(&acc.ID, &acc.Email, &acc.Tier, &acc.StripeCustomerID,
		&tierUpdatedAt, &acc.CreatedAt); err != nil {
		return nil, err
	}
	if tierUpdatedAt.Valid {
		acc.TierUpdatedAt = &tierUpdatedAt.Time
	}
	return &acc, nil
}
