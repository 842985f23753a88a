// Package alerts собирает потребителя операторских уведомлений биллинга.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/career-entitlements/internal/config"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/smtp"
	alertsservice "github.com/magabrotheeeer/career-entitlements/internal/services/alerts"
)

// App представляет приложение потребителя уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	alertsService *alertsservice.Service
	workers       int
	logger        *slog.Logger
}

// New подключается к брокеру и объявляет очереди биллинга.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.BillingExchange, rabbitmq.GetBillingQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	var mailer alertsservice.Mailer
	var operators []string
	if cfg.SMTP.Enabled() {
		mailer = smtp.NewMailer(smtp.NewTransport(cfg.SMTP, logger))
		operators = []string{cfg.OperatorEmail}
		logger.Info("operator emails enabled", slog.String("to", cfg.OperatorEmail))
	}

	return &App{
		conn:          conn,
		ch:            ch,
		alertsService: alertsservice.NewService(logger, mailer, operators...),
		workers:       cfg.Workers,
		logger:        logger,
	}, nil
}

// Run потребляет очереди до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	consumers := []struct {
		queue   string
		handler func([]byte) error
	}{
		{queue: rabbitmq.QueueUnresolved, handler: a.alertsService.HandleUnresolved},
		{queue: rabbitmq.QueueTierChanged, handler: a.alertsService.HandleTierChanged},
	}

	var running []*sync.WaitGroup
	for _, c := range consumers {
		wg, err := rabbitmq.ConsumerMessage(ctx, a.ch, c.queue, a.workers, a.logger, c.handler)
		if err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", c.queue), sl.Err(err))
			a.close()
			return err
		}
		running = append(running, wg)
	}
	a.logger.Info("billing alerts consumer started")

	<-ctx.Done()
	a.logger.Info("billing alerts consumer shutting down gracefully")
	for _, wg := range running {
		wg.Wait()
	}
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
