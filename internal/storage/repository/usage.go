package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetUsage возвращает количество платных действий аккаунта за период.
// Отсутствие строки означает, что в периоде ещё ничего не потрачено.
func (s *Storage) GetUsage(ctx context.Context, accountID, period string) (int, error) {
	const op = "storage.GetUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var used int
	err := s.DB.QueryRowContext(ctx,
		`SELECT used FROM usage_counters WHERE account_id = $1 AND period = $2`,
		accountID, period).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return used, nil
}

// IncrementUsageIfBelowLimit увеличивает счётчик на единицу, только если
// текущее значение меньше limit. Проверка и запись выполняются одним
// оператором, поэтому параллельные вызовы не могут превысить лимит.
// Возвращает новое значение счётчика и признак успешного увеличения.
func (s *Storage) IncrementUsageIfBelowLimit(ctx context.Context, accountID, period string, limit int) (int, bool, error) {
	const op = "storage.IncrementUsageIfBelowLimit"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if limit <= 0 {
		return 0, false, nil
	}

	query := `INSERT INTO usage_counters (account_id, period, used, updated_at)
			  VALUES ($1, $2, 1, NOW())
			  ON CONFLICT (account_id, period) DO UPDATE
			      SET used = usage_counters.used + 1, updated_at = NOW()
			      WHERE usage_counters.used < $3
			  RETURNING used`
	var used int
	err := s.DB.QueryRowContext(ctx, query, accountID, period, limit).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return used, true, nil
}

// PurgeUsageBefore удаляет счётчики периодов раньше указанного
// и возвращает количество удалённых строк.
func (s *Storage) PurgeUsageBefore(ctx context.Context, period string) (int64, error) {
	const op = "storage.PurgeUsageBefore"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM usage_counters WHERE period < $1`, period)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}
