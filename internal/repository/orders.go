package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/watersub/internal/model"
)

// OrderSearchType задаёт поле поиска в общем списке заказов.
type OrderSearchType string

const (
	OrderSearchID      OrderSearchType = "id"
	OrderSearchAddress OrderSearchType = "address"
	OrderSearchAll     OrderSearchType = "all"
)

// OrderFilter задаёт условия выборки общего списка заказов.
type OrderFilter struct {
	Search string
	Type   OrderSearchType
	// From включается в интервал, Before нет.
	From   *time.Time
	Before *time.Time
}

const joinedOrderColumns = `o.id, o.subscriber_id, o.user_id, o.new_bottles, o.exchange_bottles, o.water_only,
	o.free_bottles, o.total_amount, o.paid_amount, o.is_free, o.created_at`

// SearchOrders возвращает заказы всех подписчиков, новые первыми.
func (r *PostgresRepository) SearchOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	query, args := orderSearchQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	return scanOrders(rows)
}

// orderSearchQuery строит запрос по фильтру.
// Нечисловая строка поиска не совпадает ни с одним номером заказа.
func orderSearchQuery(f OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Search != "" {
		id, err := strconv.ParseInt(f.Search, 10, 64)
		if err != nil {
			id = -1
		}
		pattern := "%" + f.Search + "%"

		switch f.Type {
		case OrderSearchID:
			conds = append(conds, `o.id = `+arg(id))
		case OrderSearchAddress:
			conds = append(conds, `s.address ILIKE `+arg(pattern))
		default:
			conds = append(conds, `(o.id = `+arg(id)+` OR s.address ILIKE `+arg(pattern)+`)`)
		}
	}
	if f.From != nil {
		conds = append(conds, `o.created_at >= `+arg(*f.From))
	}
	if f.Before != nil {
		conds = append(conds, `o.created_at < `+arg(*f.Before))
	}

	query := `SELECT ` + joinedOrderColumns + `
		 FROM orders o
		 JOIN subscribers s ON s.id = o.subscriber_id`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY o.id DESC`

	return query, args
}
