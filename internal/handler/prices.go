package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/model"
)

type priceResponse struct {
	OperationType   string `json:"operation_type"`
	LegalPrice      string `json:"legal_price"`
	IndividualPrice string `json:"individual_price"`
}

func newPriceResponse(e model.PriceEntry) priceResponse {
	return priceResponse{
		OperationType:   string(e.OperationType),
		LegalPrice:      e.LegalPrice.StringFixed(2),
		IndividualPrice: e.IndividualPrice.StringFixed(2),
	}
}

// GetPrices возвращает прайс-лист.
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	entries := h.service.GetPrices(r.Context())

	resp := make([]priceResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newPriceResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type priceUpdateRequest struct {
	LegalPrice      *decimal.Decimal `json:"legal_price"`
	IndividualPrice *decimal.Decimal `json:"individual_price"`
}

// UpdatePrice меняет цены одной операции.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req priceUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	op := model.OperationType(chi.URLParam(r, "operation"))
	entry, err := h.service.UpdatePrice(r.Context(), actorID, op, model.PriceUpdate{
		LegalPrice:      req.LegalPrice,
		IndividualPrice: req.IndividualPrice,
	})
	if err != nil {
		h.writeError(w, r, err, "update price error")
		return
	}

	writeJSON(w, http.StatusOK, newPriceResponse(entry))
}

type promoResponse struct {
	Active     bool   `json:"active"`
	WaterPrice string `json:"water_promo_price"`
	OrderLimit int    `json:"water_promo_order_limit"`
}

// GetPromoSettings возвращает настройки акции.
func (h *Handler) GetPromoSettings(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	s, err := h.service.GetPromoSettings(r.Context(), actorID)
	if err != nil {
		h.writeError(w, r, err, "get promo settings error")
		return
	}

	writeJSON(w, http.StatusOK, promoResponse{
		Active:     s.Active,
		WaterPrice: s.WaterPromoPrice.StringFixed(2),
		OrderLimit: s.OrderLimit,
	})
}

// UpdatePromoSettings сохраняет настройки акции.
func (h *Handler) UpdatePromoSettings(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req model.PromotionSetting
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdatePromoSettings(r.Context(), actorID, req); err != nil {
		h.writeError(w, r, err, "update promo settings error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type actionResponse struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// ListActions возвращает страницу журнала действий.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		page = p
	}

	records, err := h.service.ListActions(r.Context(), actorID, page)
	if err != nil {
		h.writeError(w, r, err, "list actions error")
		return
	}

	resp := make([]actionResponse, 0, len(records))
	for _, rec := range records {
		item := actionResponse{
			ID:         rec.ID,
			UserID:     rec.UserID,
			Action:     rec.Action,
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
		}
		if rec.Details != "" && json.Valid([]byte(rec.Details)) {
			item.Details = json.RawMessage(rec.Details)
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}
