// Package month содержит функции для работы с учётными периодами.
// Период — календарный месяц в UTC, записанный как 2006-01.
package month

import (
	"fmt"
	"time"
)

// Layout — формат записи периода.
const Layout = "2006-01"

// Start возвращает начало месяца, в который попадает t.
func Start(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextStart возвращает начало следующего месяца, когда счётчики обнуляются.
func NextStart(t time.Time) time.Time {
	return Start(t).AddDate(0, 1, 0)
}

// Period возвращает идентификатор периода для момента t.
func Period(t time.Time) string {
	return Start(t).Format(Layout)
}

// Parse разбирает идентификатор периода.
func Parse(period string) (time.Time, error) {
	const op = "month.Parse"
	t, err := time.Parse(Layout, period)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// Back возвращает период, отстоящий от t на n месяцев назад.
func Back(t time.Time, n int) string {
	return Start(t).AddDate(0, -n, 0).Format(Layout)
}
