// Package entitlements собирает HTTP-сервис тарифов и прав доступа.
package entitlements

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/entitlement/check"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/entitlement/summary"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/entitlement/usage"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/health"
	"github.com/magabrotheeeer/career-entitlements/internal/http/handlers/plans"
	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"

	// Регистрация swagger-спецификации.
	_ "github.com/magabrotheeeer/career-entitlements/docs"
)

// EntitlementService объединяет операции прав, нужные обработчикам.
type EntitlementService interface {
	summary.Service
	check.Service
	usage.Service
}

// BillingService объединяет операции оформления подписки.
type BillingService interface {
	checkout.Service
	portal.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Logger       *slog.Logger
	Tokens       middlewarectx.TokenParser
	Limiter      *middlewarectx.RateLimiter
	Metrics      middlewarectx.RequestObserver
	MetricsPage  http.Handler
	Entitlements EntitlementService
	Billing      BillingService
	Webhooks     webhook.Parser
	Bridge       webhook.Applier
	Health       map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.Metrics(d.Metrics),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.With(d.Limiter.Middleware(d.Logger)).Get("/plans", plans.New(d.Logger).ServeHTTP)

		// Вебхук проверяется подписью, а не JWT
		r.Post("/billing/webhook", webhook.New(d.Logger, d.Webhooks, d.Bridge).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, d.Logger))
			r.Use(d.Limiter.Middleware(d.Logger))
			r.Get("/entitlements", summary.New(d.Logger, d.Entitlements).ServeHTTP)
			r.Post("/entitlements/check", check.New(d.Logger, d.Entitlements).ServeHTTP)
			r.Post("/usage", usage.New(d.Logger, d.Entitlements).ServeHTTP)
			r.Post("/billing/checkout", checkout.New(d.Logger, d.Billing).ServeHTTP)
			r.Post("/billing/portal", portal.New(d.Logger, d.Billing).ServeHTTP)
		})
	})

	r.Get("/health", health.New(d.Logger, d.Health).ServeHTTP)
	r.Handle("/metrics", d.MetricsPage)
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
