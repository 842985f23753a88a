// Package plans отдаёт публичную таблицу тарифов и цен.
package plans

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/career-entitlements/internal/catalog"
	"github.com/magabrotheeeer/career-entitlements/internal/http/response"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

// TierInfo описывает тариф и его лимиты.
type TierInfo struct {
	Tier   models.SubscriptionTier `json:"tier"`
	Limits models.TierLimits       `json:"limits"`
}

// Catalog ответ с тарифами и платёжными планами.
type Catalog struct {
	Tiers []TierInfo           `json:"tiers"`
	Plans []models.PricingPlan `json:"plans"`
}

// Handler обрабатывает запрос таблицы тарифов.
type Handler struct {
	log  *slog.Logger
	body Catalog
}

// New создаёт Handler. Справочник неизменяем, поэтому ответ собирается один раз.
func New(log *slog.Logger) *Handler {
	body := Catalog{Plans: catalog.Plans()}
	for _, tier := range catalog.Tiers() {
		limits, err := catalog.LimitsFor(tier)
		if err != nil {
			log.Error("tier without limits", slog.String("tier", tier.String()))
			continue
		}
		body.Tiers = append(body.Tiers, TierInfo{Tier: tier, Limits: limits})
	}
	return &Handler{log: log, body: body}
}

// ServeHTTP godoc
// @Summary Тарифы и цены
// @Description Возвращает лимиты тарифов и цены платёжных планов
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Response{data=Catalog}
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.body))
}
