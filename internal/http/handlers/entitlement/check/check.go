// Package check отвечает, разрешено ли пользователю действие заданного размера.
// Использование при этом не учитывается.
package check

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

// Request тело запроса проверки.
type Request struct {
	Tokens int `json:"tokens" validate:"gte=0"` // Размер действия в токенах
}

// Service определяет интерфейс проверки прав.
type Service interface {
	Evaluate(ctx context.Context, caller models.Caller, tokens int) (entitlement.Decision, error)
}

// Handler обрабатывает запрос проверки прав.
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
// @Summary Проверить право на действие
// @Description Решает, разрешено ли действие размера tokens. Отказ возвращается со статусом 200 и allowed=false
// @Tags Entitlements
// @Accept json
// @Produce json
// @Param request body Request true "Размер действия"
// @Success 200 {object} response.Response{data=entitlement.Decision}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /entitlements/check [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.check"
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

	decision, err := h.service.Evaluate(r.Context(), caller, req.Tokens)
	if err != nil {
		log.Error("failed to evaluate entitlement", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(decision))
}
