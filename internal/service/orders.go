package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/watersub/internal/audit"
	"github.com/mmeshcher/watersub/internal/metrics"
	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/pricing"
	"github.com/mmeshcher/watersub/internal/repository"
	"github.com/mmeshcher/watersub/internal/validation"
)

// OrderRequest описывает заказ, введённый оператором.
type OrderRequest struct {
	SubscriberID int64 `json:"subscriber_id" validate:"gt=0"`
	Fields       pricing.RawOrderFields
	IsFree       bool
}

// OrderResult содержит сохранённый заказ и пересчитанный долг подписчика.
type OrderResult struct {
	Order        model.Order
	Mode         pricing.Mode
	PromoApplied bool
	Debt         decimal.Decimal
}

// catalog читает прайс-лист; при ошибке используются цены по умолчанию.
func (s *Service) catalog(ctx context.Context) *pricing.Catalog {
	entries, err := s.repo.GetCatalog(ctx)
	if err != nil {
		metrics.DegradedLookups.WithLabelValues("catalog").Inc()
		s.logger.Warn("price catalog lookup failed, using default prices", zap.Error(err))
		return pricing.NewCatalog(nil)
	}
	return pricing.NewCatalog(entries)
}

// CreateOrder рассчитывает стоимость заказа, сохраняет его и пересчитывает долг подписчика.
func (s *Service) CreateOrder(ctx context.Context, actorID int64, req OrderRequest) (*OrderResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetSubscriber(ctx, req.SubscriberID)
	if err != nil {
		return nil, err
	}

	fields := req.Fields
	if fields.PaidAmount != nil {
		paid := fields.PaidAmount.Round(2)
		fields.PaidAmount = &paid
	}

	now := s.now()
	input := pricing.ResolveInput(fields)
	promo := s.evaluator.Evaluate(ctx, sub.ID)
	quote := pricing.PriceOrder(s.catalog(ctx), sub.ClientClass, promo, input, req.IsFree)

	order := &model.Order{
		SubscriberID:    sub.ID,
		UserID:          actorID,
		NewBottles:      quote.NewBottles,
		ExchangeBottles: quote.ExchangeBottles,
		WaterOnly:       quote.WaterOnly,
		FreeBottles:     quote.FreeBottles,
		TotalAmount:     quote.Total,
		PaidAmount:      quote.Paid,
		IsFree:          quote.IsFree,
		CreatedAt:       now,
	}

	id, debt, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id

	metrics.OrdersPriced.WithLabelValues(string(quote.Mode)).Inc()
	if quote.PromoApplied {
		metrics.PromoApplied.Inc()
	}

	s.logger.Debug("order created",
		zap.Int64("orderID", id),
		zap.Int64("subscriberID", sub.ID),
		zap.String("mode", string(quote.Mode)),
		zap.String("total", quote.Total.StringFixed(2)),
		zap.String("debt", debt.StringFixed(2)),
	)

	s.audit.Record(actorID, model.ActionCreate, model.EntityOrder, audit.ID(id), map[string]any{
		"subscriber_id": sub.ID,
		"mode":          quote.Mode,
		"total":         quote.Total.StringFixed(2),
		"paid":          quote.Paid.StringFixed(2),
		"is_free":       quote.IsFree,
		"promo":         quote.PromoApplied,
	})

	return &OrderResult{Order: *order, Mode: quote.Mode, PromoApplied: quote.PromoApplied, Debt: debt}, nil
}

// DeleteOrder удаляет заказ и пересчитывает долг подписчика с нуля.
func (s *Service) DeleteOrder(ctx context.Context, actorID, id int64) (decimal.Decimal, error) {
	order, debt, err := s.repo.DeleteOrder(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	s.audit.Record(actorID, model.ActionDelete, model.EntityOrder, audit.ID(id), map[string]any{
		"subscriber_id": order.SubscriberID,
		"total":         order.TotalAmount.StringFixed(2),
		"paid":          order.PaidAmount.StringFixed(2),
	})
	return debt, nil
}

// ListOrders возвращает заказы подписчика.
func (s *Service) ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error) {
	if _, err := s.repo.GetSubscriber(ctx, subscriberID); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, subscriberID)
}

// OrderQuery задаёт поиск по общему списку заказов. Даты календарные,
// DateTo включает весь день.
type OrderQuery struct {
	Search   string
	Type     repository.OrderSearchType `json:"type" validate:"omitempty,oneof=id address all"`
	DateFrom *time.Time
	DateTo   *time.Time
}

// SearchOrders возвращает заказы всех подписчиков, новые первыми.
func (s *Service) SearchOrders(ctx context.Context, q OrderQuery) ([]model.Order, error) {
	if err := validation.Struct(q); err != nil {
		return nil, err
	}

	f := repository.OrderFilter{Search: q.Search, Type: q.Type, From: q.DateFrom}
	if f.Type == "" {
		f.Type = repository.OrderSearchAll
	}
	if q.DateTo != nil {
		before := q.DateTo.AddDate(0, 0, 1)
		f.Before = &before
	}
	return s.repo.SearchOrders(ctx, f)
}

// PaymentRequest описывает платёж, введённый оператором.
type PaymentRequest struct {
	SubscriberID int64           `json:"subscriber_id" validate:"gt=0"`
	Amount       decimal.Decimal `json:"amount" validate:"decimal_gt0"`
}

// CreatePayment сохраняет платёж и пересчитывает долг. Переплата не ограничивается.
func (s *Service) CreatePayment(ctx context.Context, actorID int64, req PaymentRequest) (*model.Payment, decimal.Decimal, error) {
	req.Amount = req.Amount.Round(2)
	if err := validation.Struct(req); err != nil {
		return nil, decimal.Zero, err
	}

	p := &model.Payment{
		SubscriberID: req.SubscriberID,
		UserID:       actorID,
		Amount:       req.Amount,
		CreatedAt:    s.now(),
	}

	id, debt, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, decimal.Zero, err
	}
	p.ID = id

	s.audit.Record(actorID, model.ActionCreate, model.EntityPayment, audit.ID(id), map[string]any{
		"subscriber_id": p.SubscriberID,
		"amount":        p.Amount.StringFixed(2),
	})
	return p, debt, nil
}

// ListPayments возвращает платежи подписчика.
func (s *Service) ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error) {
	if _, err := s.repo.GetSubscriber(ctx, subscriberID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, subscriberID)
}

// Reconcile пересчитывает долг подписчика по полной истории.
func (s *Service) Reconcile(ctx context.Context, subscriberID int64) (decimal.Decimal, error) {
	return s.repo.Reconcile(ctx, subscriberID)
}
