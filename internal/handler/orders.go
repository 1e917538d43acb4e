package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/pricing"
	"github.com/mmeshcher/watersub/internal/repository"
	"github.com/mmeshcher/watersub/internal/service"
	"github.com/mmeshcher/watersub/internal/validation"
)

type orderRequest struct {
	SubscriberID    int64            `json:"subscriber_id"`
	Mode            string           `json:"mode"`
	NewBottles      int              `json:"new_bottles"`
	ExchangeBottles int              `json:"exchange_bottles"`
	WaterOnly       int              `json:"water_only"`
	FreeBottles     int              `json:"free_bottles"`
	GapBilen        int              `json:"gap_bilen"`
	DineSuw         int              `json:"dine_suw"`
	PaidAmount      *decimal.Decimal `json:"paid_amount"`
	IsFree          bool             `json:"is_free"`
}

type orderResponse struct {
	ID              int64  `json:"id"`
	SubscriberID    int64  `json:"subscriber_id"`
	UserID          int64  `json:"user_id"`
	NewBottles      int    `json:"new_bottles"`
	ExchangeBottles int    `json:"exchange_bottles"`
	WaterOnly       int    `json:"water_only"`
	FreeBottles     int    `json:"free_bottles"`
	TotalAmount     string `json:"total_amount"`
	PaidAmount      string `json:"paid_amount"`
	IsFree          bool   `json:"is_free"`
	CreatedAt       string `json:"created_at"`
}

func newOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		SubscriberID:    o.SubscriberID,
		UserID:          o.UserID,
		NewBottles:      o.NewBottles,
		ExchangeBottles: o.ExchangeBottles,
		WaterOnly:       o.WaterOnly,
		FreeBottles:     o.FreeBottles,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		PaidAmount:      o.PaidAmount.StringFixed(2),
		IsFree:          o.IsFree,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
}

type createOrderResponse struct {
	Order        orderResponse `json:"order"`
	Mode         string        `json:"mode"`
	PromoApplied bool          `json:"promo_applied"`
	Debt         string        `json:"debt"`
}

// CreateOrder рассчитывает и сохраняет заказ подписчика.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubscriberID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateOrder(r.Context(), actorID, service.OrderRequest{
		SubscriberID: req.SubscriberID,
		IsFree:       req.IsFree,
		Fields: pricing.RawOrderFields{
			Mode:            pricing.Mode(req.Mode),
			NewBottles:      req.NewBottles,
			ExchangeBottles: req.ExchangeBottles,
			WaterOnly:       req.WaterOnly,
			FreeBottles:     req.FreeBottles,
			GapBilen:        req.GapBilen,
			DineSuw:         req.DineSuw,
			PaidAmount:      req.PaidAmount,
		},
	})
	if err != nil {
		h.writeError(w, r, err, "create order error")
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:        newOrderResponse(res.Order),
		Mode:         string(res.Mode),
		PromoApplied: res.PromoApplied,
		Debt:         res.Debt.StringFixed(2),
	})
}

// DeleteOrder удаляет заказ и возвращает пересчитанный долг.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	debt, err := h.service.DeleteOrder(r.Context(), actorID, id)
	if err != nil {
		h.writeError(w, r, err, "delete order error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"debt": debt.StringFixed(2)})
}

// ListOrders возвращает заказы подписчика.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "list orders error")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseDate(w http.ResponseWriter, r *http.Request, key string) (*time.Time, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Fields: []validation.FieldError{{Field: key, Rule: "datetime"}},
		})
		return nil, false
	}
	return &t, true
}

// SearchOrders возвращает заказы всех подписчиков с поиском по номеру заказа или адресу
// и фильтром по датам.
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	from, ok := parseDate(w, r, "date_from")
	if !ok {
		return
	}
	to, ok := parseDate(w, r, "date_to")
	if !ok {
		return
	}

	orders, err := h.service.SearchOrders(r.Context(), service.OrderQuery{
		Search:   r.URL.Query().Get("search"),
		Type:     repository.OrderSearchType(r.URL.Query().Get("type")),
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		h.writeError(w, r, err, "search orders error")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentRequest struct {
	SubscriberID int64           `json:"subscriber_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type paymentResponse struct {
	ID           int64  `json:"id"`
	SubscriberID int64  `json:"subscriber_id"`
	UserID       int64  `json:"user_id"`
	Amount       string `json:"amount"`
	CreatedAt    string `json:"created_at"`
	Debt         string `json:"debt,omitempty"`
}

func newPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:           p.ID,
		SubscriberID: p.SubscriberID,
		UserID:       p.UserID,
		Amount:       p.Amount.StringFixed(2),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

// CreatePayment принимает прямой платёж подписчика.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubscriberID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, debt, err := h.service.CreatePayment(r.Context(), actorID, service.PaymentRequest{
		SubscriberID: req.SubscriberID,
		Amount:       req.Amount,
	})
	if err != nil {
		h.writeError(w, r, err, "create payment error")
		return
	}

	resp := newPaymentResponse(*p)
	resp.Debt = debt.StringFixed(2)
	writeJSON(w, http.StatusCreated, resp)
}

// ListPayments возвращает платежи подписчика.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "list payments error")
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, newPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}
