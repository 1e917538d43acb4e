package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/watersub/internal/model"
)

// AppendAction добавляет запись в журнал действий.
func (r *PostgresRepository) AppendAction(ctx context.Context, rec model.ActionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO action_logs (user_id, action, entity, entity_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.UserID, rec.Action, rec.EntityType, rec.EntityID, rec.Details, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action log: %w", err)
	}
	return nil
}

// ListActions возвращает записи журнала, новые первыми.
func (r *PostgresRepository) ListActions(ctx context.Context, limit, offset int) ([]model.ActionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, action, entity, entity_id, details, created_at
		 FROM action_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select action logs: %w", err)
	}
	defer rows.Close()

	var res []model.ActionRecord
	for rows.Next() {
		var rec model.ActionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Action, &rec.EntityType, &rec.EntityID, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		res = append(res, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
