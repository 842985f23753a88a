package entitlements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/career-entitlements/internal/cache"
	"github.com/magabrotheeeer/career-entitlements/internal/config"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/health"
	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/metrics"
	"github.com/magabrotheeeer/career-entitlements/internal/migrations"
	"github.com/magabrotheeeer/career-entitlements/internal/paymentprovider"
	"github.com/magabrotheeeer/career-entitlements/internal/services/billing"
	"github.com/magabrotheeeer/career-entitlements/internal/services/entitlement"
	"github.com/magabrotheeeer/career-entitlements/internal/storage/repository"
)

// App HTTP-сервис тарифов и прав доступа.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создаёт подключения, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RetryDelay)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.BillingExchange, rabbitmq.GetBillingQueues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	m := metrics.New("entitlements")
	stripeClient := paymentprovider.NewClient(cfg.Stripe, nil)
	publisher := rabbitmq.NewPublisher(a.ch)

	entitlementService := entitlement.NewService(db, a.cache, m, logger)
	bridge := billing.NewBridge(db, a.cache, publisher, m, billing.RetryPolicy{
		MaxAttempts:     cfg.BillingRetry.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}, logger)
	checkoutService := billing.NewCheckoutService(db, stripeClient, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:       logger,
		Tokens:       jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.Issuer),
		Limiter:      middlewarectx.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		Metrics:      m,
		MetricsPage:  m.Handler(),
		Entitlements: entitlementService,
		Billing:      checkoutService,
		Webhooks:     stripeClient,
		Bridge:       bridge,
		Health: map[string]health.Pinger{
			"postgres": db,
			"redis":    a.cache,
		},
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run запускает HTTP-сервер и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
