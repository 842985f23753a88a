// Package checkout создаёт сессию оплаты платного плана.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/career-entitlements/internal/catalog"
	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/career-entitlements/internal/http/response"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/paymentprovider"
	"github.com/magabrotheeeer/career-entitlements/internal/services/billing"
)

// Request тело запроса оформления подписки.
type Request struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// Service определяет интерфейс оформления подписки.
type Service interface {
	StartCheckout(ctx context.Context, caller models.Caller, planID models.PlanID) (*paymentprovider.CheckoutSession, error)
}

// Handler обрабатывает запросы на оформление подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить подписку
// @Description Создаёт сессию оплаты плана и возвращает ссылку на страницу оплаты
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body Request true "План"
// @Success 200 {object} response.Response{data=paymentprovider.CheckoutSession}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный план"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Тариф уже действует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /billing/checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	caller, ok := middlewarectx.CallerFrom(r.Context())
	if !ok {
		log.Error("caller not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sess, err := h.service.StartCheckout(r.Context(), caller, models.PlanID(req.PlanID))
	switch {
	case errors.Is(err, catalog.ErrUnknownPlan):
		log.Warn("unknown plan requested", slog.String("plan_id", req.PlanID))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown plan"))
		return
	case errors.Is(err, billing.ErrAlreadySubscribed):
		log.Info("plan already active", slog.String("account_id", caller.AccountID))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("plan already active"))
		return
	case err != nil:
		log.Error("failed to start checkout", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment provider error"))
		return
	}

	log.Info("checkout session created", slog.String("account_id", caller.AccountID), slog.String("session_id", sess.ID))
	render.JSON(w, r, response.StatusOKWithData(sess))
}
