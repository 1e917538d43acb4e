package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/watersub/internal/metrics"
	"github.com/mmeshcher/watersub/internal/model"
)

// Promo описывает результат проверки акции для подписчика.
type Promo struct {
	Active     bool
	WaterPrice decimal.Decimal
}

// NoPromo означает, что акция не действует.
var NoPromo = Promo{}

// PromoSource описывает данные, необходимые для проверки акции.
type PromoSource interface {
	GetPromoSettings(ctx context.Context) (model.PromotionSetting, error)
	GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error)
	CountOrders(ctx context.Context, subscriberID int64, since *time.Time) (int, error)
}

// EligiblePromo решает, действует ли акция, по снимку настроек, подписчику и числу уже учтённых заказов.
func EligiblePromo(settings model.PromotionSetting, sub *model.Subscriber, orderCount int) Promo {
	if !settings.Active {
		return NoPromo
	}

	limit := settings.OrderLimit
	if sub != nil && sub.PromoCustomLimit != nil {
		limit = *sub.PromoCustomLimit
	}

	if orderCount < limit {
		return Promo{Active: true, WaterPrice: settings.WaterPromoPrice}
	}
	return NoPromo
}

// Evaluator проверяет право подписчика на акционную цену воды.
type Evaluator struct {
	source PromoSource
	logger *zap.Logger
}

// NewEvaluator создаёт проверку акции поверх указанного источника данных.
func NewEvaluator(source PromoSource, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{source: source, logger: logger}
}

// Evaluate возвращает акцию, действующую для следующего заказа подписчика.
// Ошибки получения данных не возвращаются: акция в этом случае считается недействующей.
func (e *Evaluator) Evaluate(ctx context.Context, subscriberID int64) Promo {
	settings, err := e.source.GetPromoSettings(ctx)
	if err != nil {
		e.degraded(err, subscriberID)
		return NoPromo
	}
	if !settings.Active {
		return NoPromo
	}

	sub, err := e.source.GetSubscriber(ctx, subscriberID)
	if err != nil {
		e.degraded(err, subscriberID)
		return NoPromo
	}

	count, err := e.source.CountOrders(ctx, subscriberID, sub.PromoStartDate)
	if err != nil {
		e.degraded(err, subscriberID)
		return NoPromo
	}

	return EligiblePromo(settings, sub, count)
}

func (e *Evaluator) degraded(err error, subscriberID int64) {
	metrics.DegradedLookups.WithLabelValues("promo").Inc()
	e.logger.Warn("promo lookup failed, using standard pricing",
		zap.Error(err), zap.Int64("subscriberID", subscriberID))
}
