// Package portal выдаёт ссылку на портал управления подпиской.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/career-entitlements/internal/http/response"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/services/billing"
)

// Service определяет интерфейс получения ссылки на портал.
type Service interface {
	PortalURL(ctx context.Context, caller models.Caller) (string, error)
}

// Session ответ с адресом портала.
type Session struct {
	URL string `json:"url"`
}

// Handler обрабатывает запрос ссылки на портал.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Портал подписки
// @Description Возвращает ссылку на портал провайдера, где можно сменить способ оплаты или отменить подписку
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Response{data=Session}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Подписка ещё не оформлялась"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /billing/portal [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.CallerFrom(r.Context())
	if !ok {
		log.Error("caller not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	url, err := h.service.PortalURL(r.Context(), caller)
	if errors.Is(err, billing.ErrNoBillingAccount) {
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("no subscription to manage"))
		return
	}
	if err != nil {
		log.Error("failed to create portal session", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment provider error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(Session{URL: url}))
}
