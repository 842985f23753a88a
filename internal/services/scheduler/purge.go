// Package scheduler содержит периодические задачи обслуживания данных.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/career-entitlements/internal/lib/month"
)

// UsageRepository удаляет устаревшие счётчики использования.
type UsageRepository interface {
	PurgeUsageBefore(ctx context.Context, period string) (int64, error)
}

// Recorder принимает количество удалённых счётчиков.
type Recorder interface {
	RecordPurge(rows int64)
}

// PurgeService удаляет счётчики периодов старше срока хранения.
type PurgeService struct {
	repo      UsageRepository
	recorder  Recorder
	retention int
	log       *slog.Logger
	now       func() time.Time
}

// NewPurgeService создаёт PurgeService. retentionMonths задаёт, сколько последних
// месяцев хранить, включая текущий. Значение меньше 1 считается равным 1.
func NewPurgeService(repo UsageRepository, recorder Recorder, retentionMonths int, log *slog.Logger) *PurgeService {
	return &PurgeService{
		repo:      repo,
		recorder:  recorder,
		retention: max(retentionMonths, 1),
		log:       log,
		now:       time.Now,
	}
}

// PurgeExpiredUsage удаляет счётчики и возвращает количество удалённых строк.
// Счётчик текущего месяца не удаляется никогда.
func (s *PurgeService) PurgeExpiredUsage(ctx context.Context) (int64, error) {
	const op = "services.scheduler.PurgeExpiredUsage"
	cutoff := month.Back(s.now(), s.retention-1)
	log := s.log.With(slog.String("op", op), slog.String("before", cutoff))

	rows, err := s.repo.PurgeUsageBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if s.recorder != nil {
		s.recorder.RecordPurge(rows)
	}
	log.Info("usage counters purged", slog.Int64("rows", rows))
	return rows, nil
}
