package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/repository"
	"github.com/mmeshcher/watersub/internal/service"
)

const dateLayout = "2006-01-02"

type subscriberRequest struct {
	ClientClass      string   `json:"client_class"`
	Address          string   `json:"address"`
	Phones           []string `json:"phones"`
	PromoStartDate   *string  `json:"promo_start_date"`
	PromoCustomLimit *int     `json:"promo_custom_limit"`
}

func (req subscriberRequest) input() (service.SubscriberInput, bool) {
	in := service.SubscriberInput{
		ClientClass:      req.ClientClass,
		Address:          req.Address,
		Phones:           req.Phones,
		PromoCustomLimit: req.PromoCustomLimit,
	}
	if req.PromoStartDate != nil && *req.PromoStartDate != "" {
		d, err := time.Parse(dateLayout, *req.PromoStartDate)
		if err != nil {
			return in, false
		}
		in.PromoStartDate = &d
	}
	return in, true
}

type subscriberResponse struct {
	ID               int64    `json:"id"`
	ClientClass      string   `json:"client_class"`
	Address          string   `json:"address"`
	Phones           []string `json:"phones"`
	Debt             string   `json:"debt"`
	Bottles          *int     `json:"bottles,omitempty"`
	PromoStartDate   *string  `json:"promo_start_date,omitempty"`
	PromoCustomLimit *int     `json:"promo_custom_limit,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

func newSubscriberResponse(s model.Subscriber) subscriberResponse {
	resp := subscriberResponse{
		ID:               s.ID,
		ClientClass:      string(s.ClientClass),
		Address:          s.Address,
		Phones:           s.Phones,
		Debt:             s.Debt.StringFixed(2),
		PromoCustomLimit: s.PromoCustomLimit,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
	}
	if resp.Phones == nil {
		resp.Phones = []string{}
	}
	if s.PromoStartDate != nil {
		d := s.PromoStartDate.Format(dateLayout)
		resp.PromoStartDate = &d
	}
	return resp
}

// ListSubscribers возвращает подписчиков с поиском по телефону или адресу.
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	subs, err := h.service.ListSubscribers(r.Context(), q.Get("search"), repository.SearchType(q.Get("type")))
	if err != nil {
		h.writeError(w, r, err, "list subscribers error")
		return
	}

	resp := make([]subscriberResponse, 0, len(subs))
	for _, s := range subs {
		resp = append(resp, newSubscriberResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSubscriber добавляет нового подписчика.
func (h *Handler) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req subscriberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, ok := req.input()
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.CreateSubscriber(r.Context(), actorID, in)
	if err != nil {
		h.writeError(w, r, err, "create subscriber error")
		return
	}

	writeJSON(w, http.StatusCreated, newSubscriberResponse(*sub))
}

// GetSubscriber возвращает подписчика с числом выданных бутылей.
func (h *Handler) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetSubscriber(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "get subscriber error")
		return
	}

	resp := newSubscriberResponse(details.Subscriber)
	resp.Bottles = &details.Bottles
	writeJSON(w, http.StatusOK, resp)
}

// UpdateSubscriber изменяет данные подписчика.
func (h *Handler) UpdateSubscriber(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req subscriberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, ok := req.input()
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.UpdateSubscriber(r.Context(), actorID, id, in)
	if err != nil {
		h.writeError(w, r, err, "update subscriber error")
		return
	}

	writeJSON(w, http.StatusOK, newSubscriberResponse(*sub))
}

// DeleteSubscriber удаляет подписчика и всю его историю.
func (h *Handler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSubscriber(r.Context(), actorID, id); err != nil {
		h.writeError(w, r, err, "delete subscriber error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type debtResponse struct {
	SubscriberID int64  `json:"subscriber_id"`
	Debt         string `json:"debt"`
}

// Reconcile пересчитывает долг подписчика по полной истории.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	debt, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "reconcile error")
		return
	}

	writeJSON(w, http.StatusOK, debtResponse{SubscriberID: id, Debt: debt.StringFixed(2)})
}
