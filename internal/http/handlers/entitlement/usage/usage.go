// Package usage учитывает выполненное платное действие.
package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/career-entitlements/internal/http/response"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/services/entitlement"
)

// Request тело запроса учёта.
type Request struct {
	Tokens int `json:"tokens" validate:"gte=0"`
}

// Service определяет интерфейс учёта использования.
type Service interface {
	Consume(ctx context.Context, caller models.Caller, tokens int) (entitlement.Decision, error)
}

// Handler обрабатывает запрос учёта использования.
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
// @Summary Учесть действие
// @Description Списывает одно действие из месячного лимита. При отказе лимит не меняется
// @Tags Entitlements
// @Accept json
// @Produce json
// @Param request body Request true "Размер действия"
// @Success 200 {object} response.Response{data=entitlement.Decision}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.Response{data=entitlement.Decision} "Месячный лимит исчерпан"
// @Failure 413 {object} response.Response{data=entitlement.Decision} "Действие слишком большое"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /usage [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.usage"
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

	decision, err := h.service.Consume(r.Context(), caller, req.Tokens)
	if err != nil {
		log.Error("failed to record usage", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	switch decision.Reason {
	case entitlement.ReasonQuotaExceeded:
		w.WriteHeader(http.StatusForbidden)
	case entitlement.ReasonRequestTooLarge:
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}
	render.JSON(w, r, response.Response{
		Status: statusFor(decision),
		Error:  decision.Message,
		Data:   decision,
	})
}

func statusFor(d entitlement.Decision) string {
	if d.Allowed {
		return response.StatusOK
	}
	return response.StatusError
}
