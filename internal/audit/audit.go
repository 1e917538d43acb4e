// Package audit записывает журнал действий операторов, не влияя на основную операцию.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/watersub/internal/metrics"
	"github.com/mmeshcher/watersub/internal/model"
)

// Store описывает хранилище журнала.
type Store interface {
	AppendAction(ctx context.Context, rec model.ActionRecord) error
}

// Recorder асинхронно сохраняет записи журнала. Ошибки записи только логируются.
type Recorder struct {
	store   Store
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewRecorder создаёт журнал поверх хранилища; timeout ограничивает запись одной строки.
func NewRecorder(store Store, logger *zap.Logger, timeout time.Duration) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// Record ставит запись в журнал и сразу возвращает управление.
// details сериализуется в JSON; nil даёт пустую строку.
func (r *Recorder) Record(actorID int64, action, entityType string, entityID *int64, details any) {
	if r == nil || r.store == nil {
		return
	}

	rec := model.ActionRecord{
		UserID:     actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  r.now(),
	}

	if details != nil {
		blob, err := json.Marshal(details)
		if err != nil {
			r.logger.Warn("marshal audit details", zap.Error(err), zap.String("action", action))
		} else {
			rec.Details = string(blob)
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.store.AppendAction(ctx, rec); err != nil {
			metrics.AuditDropped.Inc()
			r.logger.Warn("audit record dropped",
				zap.Error(err),
				zap.String("action", rec.Action),
				zap.String("entity", rec.EntityType),
				zap.Int64("userID", rec.UserID),
			)
		}
	}()
}

// Wait дожидается завершения всех начатых записей.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// ID возвращает указатель на идентификатор сущности для записи журнала.
func ID(id int64) *int64 {
	return &id
}
