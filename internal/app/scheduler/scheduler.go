// Package scheduler собирает приложение с периодическими задачами обслуживания.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/career-entitlements/internal/config"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/metrics"
	schedulerservice "github.com/magabrotheeeer/career-entitlements/internal/services/scheduler"
	"github.com/magabrotheeeer/career-entitlements/internal/storage/repository"
)

const jobTimeout = 5 * time.Minute

// Job задача, запускаемая по расписанию.
type Job interface {
	PurgeExpiredUsage(ctx context.Context) (int64, error)
}

// App представляет приложение планировщика.
type App struct {
	cron    *cron.Cron
	db      *repository.Storage
	metrics *http.Server
	logger  *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for i := 0; i < 10; i++ {
		err := repository.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создаёт новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New("scheduler")
	purge := schedulerservice.NewPurgeService(db, m, cfg.UsageRetentionMonths, logger)

	c, err := NewCron(cfg.PurgeCron, purge, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		cron: c,
		db:   db,
		metrics: &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// NewCron создаёт расписание с задачей очистки счётчиков. Расписание
// задаётся в UTC, запуск пропускается, если предыдущий ещё идёт.
func NewCron(spec string, job Job, logger *slog.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := job.PurgeExpiredUsage(ctx); err != nil {
			logger.Error("usage purge failed", sl.Err(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", spec, err)
	}
	return c, nil
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.cron.Start()
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", sl.Err(err))
		}
	}()
	a.logger.Info("scheduler started", slog.Int("jobs", len(a.cron.Entries())))

	<-ctx.Done()
	a.logger.Info("shutting down scheduler service")

	// Ждём завершения уже запущенных задач.
	<-a.cron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}

// cronLogger передаёт сообщения cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, sl.Err(err))...)
}
