// Package webhook принимает вебхуки платёжного провайдера.
//
// Ответ 200 означает, что событие обработано или его повтор ничего не даст.
// Ответ 500 просит провайдера доставить событие ещё раз.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/career-entitlements/internal/catalog"
	"github.com/magabrotheeeer/career-entitlements/internal/http/response"
	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/paymentprovider"
	"github.com/magabrotheeeer/career-entitlements/internal/services/billing"
)

// MaxBodyBytes ограничивает размер тела вебхука.
const MaxBodyBytes = 64 << 10

// SignatureHeader заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// Parser проверяет подпись и разбирает событие.
type Parser interface {
	ParseWebhook(payload []byte, signature string) (*models.BillingEvent, error)
}

// Applier применяет событие к тарифам.
type Applier interface {
	Apply(ctx context.Context, ev models.BillingEvent) (billing.Result, error)
}

// Handler обрабатывает вебхуки.
type Handler struct {
	log     *slog.Logger
	parser  Parser
	applier Applier
}

// New создаёт новый экземпляр Handler.
func New(log *slog.Logger, parser Parser, applier Applier) *Handler {
	return &Handler{
		log:     log,
		parser:  parser,
		applier: applier,
	}
}

// ServeHTTP godoc
// @Summary Вебхук Stripe
// @Description Применяет событие подписки к тарифу аккаунта
// @Tags Billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} response.Response{data=billing.Result}
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Временная ошибка, событие будет доставлено повторно"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	ev, err := h.parser.ParseWebhook(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		log.Warn("rejected webhook", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		if errors.Is(err, paymentprovider.ErrInvalidSignature) {
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		render.JSON(w, r, response.Error("malformed event"))
		return
	}
	if ev == nil {
		render.JSON(w, r, response.StatusOKWithData(billing.Result{Outcome: billing.OutcomeIgnored}))
		return
	}

	log = log.With(slog.String("event_id", ev.ID), slog.String("event_type", string(ev.Type)))
	res, err := h.applier.Apply(r.Context(), *ev)
	switch {
	case errors.Is(err, billing.ErrUnknownAccount), errors.Is(err, catalog.ErrUnknownPlan):
		log.Warn("event sent to operators", sl.Err(err))
		render.JSON(w, r, response.OK())
		return
	case err != nil:
		log.Error("failed to apply event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("temporary failure"))
		return
	}

	log.Info("webhook processed", slog.String("outcome", string(res.Outcome)))
	render.JSON(w, r, response.StatusOKWithData(res))
}
