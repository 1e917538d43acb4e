// Package handler содержит HTTP-обработчики API учёта подписчиков.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/watersub/internal/middleware"
	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/repository"
	"github.com/mmeshcher/watersub/internal/service"
	"github.com/mmeshcher/watersub/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	ListUsers(ctx context.Context, actorID int64) ([]model.User, error)
	CreateUser(ctx context.Context, actorID int64, in service.UserInput) (*model.User, error)
	UpdateUser(ctx context.Context, actorID, id int64, in service.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, actorID, id int64) error

	CreateSubscriber(ctx context.Context, actorID int64, in service.SubscriberInput) (*model.Subscriber, error)
	UpdateSubscriber(ctx context.Context, actorID, id int64, in service.SubscriberInput) (*model.Subscriber, error)
	DeleteSubscriber(ctx context.Context, actorID, id int64) error
	GetSubscriber(ctx context.Context, id int64) (*service.SubscriberDetails, error)
	ListSubscribers(ctx context.Context, search string, searchType repository.SearchType) ([]model.Subscriber, error)

	CreateOrder(ctx context.Context, actorID int64, req service.OrderRequest) (*service.OrderResult, error)
	DeleteOrder(ctx context.Context, actorID, id int64) (decimal.Decimal, error)
	ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error)
	SearchOrders(ctx context.Context, q service.OrderQuery) ([]model.Order, error)

	CreatePayment(ctx context.Context, actorID int64, req service.PaymentRequest) (*model.Payment, decimal.Decimal, error)
	ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error)
	Reconcile(ctx context.Context, subscriberID int64) (decimal.Decimal, error)

	GetPrices(ctx context.Context) []model.PriceEntry
	UpdatePrice(ctx context.Context, actorID int64, op model.OperationType, upd model.PriceUpdate) (model.PriceEntry, error)
	GetPromoSettings(ctx context.Context, actorID int64) (model.PromotionSetting, error)
	UpdatePromoSettings(ctx context.Context, actorID int64, settings model.PromotionSetting) error
	ListActions(ctx context.Context, actorID int64, page int) ([]model.ActionRecord, error)
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку сервиса в HTTP-статус. Ошибки валидации
// и ошибки системы возвращаются разными кодами.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if verr, ok := validation.AsError(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, repository.ErrSubscriberNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrUserInUse),
		errors.Is(err, service.ErrSelfDelete):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, repository.ErrConsistency):
		h.logger.Error(msg, zap.Error(err), zap.String("uri", r.RequestURI))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		h.logger.Error(msg, zap.Error(err), zap.String("uri", r.RequestURI))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func operatorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.GetOperatorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового оператора.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err, "register user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию оператора и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err, "login user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}
