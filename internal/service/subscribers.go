package service

import (
	"context"
	"time"

	"github.com/mmeshcher/watersub/internal/audit"
	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/repository"
	"github.com/mmeshcher/watersub/internal/validation"
)

// SubscriberInput содержит редактируемые поля подписчика.
type SubscriberInput struct {
	ClientClass      string     `validate:"required,client_class"`
	Address          string     `validate:"max=256"`
	Phones           []string   `validate:"dive,max=20"`
	PromoStartDate   *time.Time `validate:"-"`
	PromoCustomLimit *int       `validate:"omitempty,gte=0"`
}

func (in SubscriberInput) apply(sub *model.Subscriber) {
	sub.ClientClass = model.ClientClass(in.ClientClass)
	sub.Address = in.Address
	sub.Phones = in.Phones
	sub.PromoStartDate = in.PromoStartDate
	sub.PromoCustomLimit = in.PromoCustomLimit
}

// SubscriberDetails дополняет подписчика числом выданных ему бутылей.
type SubscriberDetails struct {
	model.Subscriber
	Bottles int
}

// CreateSubscriber создаёт подписчика с нулевым долгом.
func (s *Service) CreateSubscriber(ctx context.Context, actorID int64, in SubscriberInput) (*model.Subscriber, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sub := &model.Subscriber{}
	in.apply(sub)

	id, err := s.repo.CreateSubscriber(ctx, sub)
	if err != nil {
		return nil, err
	}

	s.audit.Record(actorID, model.ActionCreate, model.EntitySubscriber, audit.ID(id), map[string]any{
		"client_class": sub.ClientClass,
		"address":      sub.Address,
	})
	return sub, nil
}

// UpdateSubscriber обновляет данные подписчика, включая персональные условия акции.
func (s *Service) UpdateSubscriber(ctx context.Context, actorID, id int64, in SubscriberInput) (*model.Subscriber, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetSubscriber(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(sub)

	if err := s.repo.UpdateSubscriber(ctx, sub); err != nil {
		return nil, err
	}

	s.audit.Record(actorID, model.ActionUpdate, model.EntitySubscriber, audit.ID(id), map[string]any{
		"client_class":       sub.ClientClass,
		"address":            sub.Address,
		"promo_start_date":   sub.PromoStartDate,
		"promo_custom_limit": sub.PromoCustomLimit,
	})
	return sub, nil
}

// DeleteSubscriber удаляет подписчика вместе с его заказами, платежами и телефонами.
func (s *Service) DeleteSubscriber(ctx context.Context, actorID, id int64) error {
	ordersDeleted, paymentsDeleted, err := s.repo.DeleteSubscriber(ctx, id)
	if err != nil {
		return err
	}

	s.audit.Record(actorID, model.ActionDelete, model.EntitySubscriber, audit.ID(id), map[string]any{
		"orders_deleted":   ordersDeleted,
		"payments_deleted": paymentsDeleted,
	})
	return nil
}

// GetSubscriber возвращает подписчика и общее число выданных ему бутылей.
func (s *Service) GetSubscriber(ctx context.Context, id int64) (*SubscriberDetails, error) {
	sub, err := s.repo.GetSubscriber(ctx, id)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.ListOrders(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SubscriberDetails{Subscriber: *sub, Bottles: BottleTotal(orders)}, nil
}

// BottleTotal считает бутыли, оставшиеся у подписчика: новые, обменные и выданные без обмена.
func BottleTotal(orders []model.Order) int {
	total := 0
	for _, o := range orders {
		total += o.NewBottles + o.ExchangeBottles + o.FreeBottles
	}
	return total
}

// ListSubscribers возвращает подписчиков с необязательным поиском.
func (s *Service) ListSubscribers(ctx context.Context, search string, searchType repository.SearchType) ([]model.Subscriber, error) {
	if err := validation.Var("type", string(searchType), "omitempty,oneof=phone address all"); err != nil {
		return nil, err
	}
	if searchType == "" {
		searchType = repository.SearchAll
	}
	return s.repo.ListSubscribers(ctx, search, searchType)
}
