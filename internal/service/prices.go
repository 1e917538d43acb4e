package service

import (
	"context"

	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/pricing"
	"github.com/mmeshcher/watersub/internal/validation"
)

// GetPrices возвращает действующий прайс-лист по всем операциям.
func (s *Service) GetPrices(ctx context.Context) []model.PriceEntry {
	return s.catalog(ctx).Entries()
}

type priceUpdateInput struct {
	Operation model.OperationType `json:"operation_type" validate:"required,oneof=new_bottle exchange water_only container"`
	model.PriceUpdate
}

// UpdatePrice меняет цены одной операции. Доступно только администратору.
func (s *Service) UpdatePrice(ctx context.Context, actorID int64, op model.OperationType, upd model.PriceUpdate) (model.PriceEntry, error) {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return model.PriceEntry{}, err
	}

	if err := validation.Struct(priceUpdateInput{Operation: op, PriceUpdate: upd}); err != nil {
		return model.PriceEntry{}, err
	}

	entry, err := s.repo.UpdatePrice(ctx, op, upd, pricing.DefaultPrice(op))
	if err != nil {
		return model.PriceEntry{}, err
	}

	s.audit.Record(actorID, model.ActionUpdate, model.EntityPrices, nil, map[string]any{
		"operation_type":   op,
		"legal_price":      entry.LegalPrice.StringFixed(2),
		"individual_price": entry.IndividualPrice.StringFixed(2),
	})
	return entry, nil
}

// GetPromoSettings возвращает настройки акции. Доступно только администратору.
func (s *Service) GetPromoSettings(ctx context.Context, actorID int64) (model.PromotionSetting, error) {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return model.PromotionSetting{}, err
	}
	return s.repo.GetPromoSettings(ctx)
}

// UpdatePromoSettings сохраняет настройки акции. Доступно только администратору.
func (s *Service) UpdatePromoSettings(ctx context.Context, actorID int64, settings model.PromotionSetting) error {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return err
	}

	if err := validation.Struct(settings); err != nil {
		return err
	}

	settings.WaterPromoPrice = settings.WaterPromoPrice.Round(2)
	if err := s.repo.UpdatePromoSettings(ctx, settings); err != nil {
		return err
	}

	s.audit.Record(actorID, model.ActionUpdate, model.EntitySettings, nil, map[string]any{
		"active":                  settings.Active,
		"water_promo_price":       settings.WaterPromoPrice.StringFixed(2),
		"water_promo_order_limit": settings.OrderLimit,
	})
	return nil
}
