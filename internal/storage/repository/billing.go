package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

// SetTier записывает событие в журнал и применяет смену тарифа в одной
// транзакции. Повторная доставка того же события ничего не меняет.
// Событие старше последнего применённого не перезаписывает тариф.
// Возвращает true, если тариф аккаунта был обновлён этим вызовом.
func (s *Storage) SetTier(ctx context.Context, change models.TierChange) (bool, error) {
	const op = "storage.SetTier"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`,
		change.AccountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}

	result, err := tx.ExecContext(ctx, `INSERT INTO billing_events (event_id, account_id, tier, occurred_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (event_id) DO NOTHING`,
		change.EventID, change.AccountID, change.Tier, change.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if inserted == 0 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `UPDATE accounts
			  SET tier = $1, tier_updated_at = $2
			  WHERE id = $3 AND (tier_updated_at IS NULL OR tier_updated_at <= $2)`,
		change.Tier, change.OccurredAt, change.AccountID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return updated > 0, nil
}
