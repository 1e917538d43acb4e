package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/ledger"
	"github.com/mmeshcher/watersub/internal/model"
)

// txSource реализует ledger.Source поверх открытой транзакции.
type txSource struct {
	q querier
}

func (s txSource) ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error) {
	return listOrders(ctx, s.q, subscriberID)
}

func (s txSource) ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error) {
	return listPayments(ctx, s.q, subscriberID)
}

func (s txSource) UpdateSubscriberDebt(ctx context.Context, subscriberID int64, debt decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE subscribers SET debt = $2 WHERE id = $1`,
		subscriberID, toMinor(debt),
	)
	if err != nil {
		return fmt.Errorf("update subscriber debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// lockSubscriber блокирует строку подписчика до конца транзакции, сериализуя изменения его истории.
// FOR NO KEY UPDATE не конфликтует с проверкой внешних ключей при вставке заказов и платежей.
func lockSubscriber(ctx context.Context, tx pgx.Tx, subscriberID int64) error {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM subscribers WHERE id = $1 FOR NO KEY UPDATE`,
		subscriberID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSubscriberNotFound
		}
		return fmt.Errorf("lock subscriber: %w", err)
	}
	return nil
}

// ledgerTx выполняет изменение истории подписчика и пересчёт его долга в одной транзакции.
// mutate возвращает идентификатор подписчика, чья история изменилась.
// Вся транзакция повторяется при конфликте.
func (r *PostgresRepository) ledgerTx(ctx context.Context, mutate func(ctx context.Context, tx pgx.Tx) (int64, error)) (decimal.Decimal, error) {
	var debt decimal.Decimal

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		subscriberID, err := mutate(ctx, tx)
		if err != nil {
			return err
		}

		if err := lockSubscriber(ctx, tx, subscriberID); err != nil {
			return err
		}

		d, err := ledger.Reconcile(ctx, txSource{q: tx}, subscriberID)
		if err != nil {
			return fmt.Errorf("reconcile subscriber %d: %w", subscriberID, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		debt = d
		return nil
	})

	return debt, err
}

// CreateOrder сохраняет заказ и пересчитывает долг подписчика в той же транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, decimal.Decimal, error) {
	var id int64

	debt, err := r.ledgerTx(ctx, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		if err := lockSubscriber(ctx, tx, o.SubscriberID); err != nil {
			return 0, err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO orders
			   (subscriber_id, user_id, new_bottles, exchange_bottles, water_only, free_bottles,
			    total_amount, paid_amount, is_free)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, created_at`,
			o.SubscriberID, o.UserID, o.NewBottles, o.ExchangeBottles, o.WaterOnly, o.FreeBottles,
			toMinor(o.TotalAmount), toMinor(o.PaidAmount), o.IsFree,
		).Scan(&id, &o.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert order: %w", err)
		}

		return o.SubscriberID, nil
	})
	if err != nil {
		return 0, decimal.Zero, err
	}

	o.ID = id
	return id, debt, nil
}

// DeleteOrder удаляет заказ и пересчитывает долг его подписчика в той же транзакции.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id int64) (*model.Order, decimal.Decimal, error) {
	var deleted *model.Order

	debt, err := r.ledgerTx(ctx, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		rows, err := tx.Query(ctx,
			`DELETE FROM orders WHERE id = $1 RETURNING `+orderColumns,
			id,
		)
		if err != nil {
			return 0, fmt.Errorf("delete order: %w", err)
		}

		orders, err := scanOrders(rows)
		if err != nil {
			return 0, err
		}
		if len(orders) == 0 {
			return 0, ErrOrderNotFound
		}

		deleted = &orders[0]
		return deleted.SubscriberID, nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	return deleted, debt, nil
}

// CreatePayment сохраняет прямой платёж и пересчитывает долг подписчика в той же транзакции.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) (int64, decimal.Decimal, error) {
	var id int64

	debt, err := r.ledgerTx(ctx, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		if err := lockSubscriber(ctx, tx, p.SubscriberID); err != nil {
			return 0, err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO payments (subscriber_id, user_id, amount)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			p.SubscriberID, p.UserID, toMinor(p.Amount),
		).Scan(&id, &p.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert payment: %w", err)
		}

		return p.SubscriberID, nil
	})
	if err != nil {
		return 0, decimal.Zero, err
	}

	p.ID = id
	return id, debt, nil
}

// Reconcile пересчитывает долг подписчика без изменения истории.
func (r *PostgresRepository) Reconcile(ctx context.Context, subscriberID int64) (decimal.Decimal, error) {
	return r.ledgerTx(ctx, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		return subscriberID, nil
	})
}

const orderColumns = `id, subscriber_id, user_id, new_bottles, exchange_bottles, water_only, free_bottles,
	total_amount, paid_amount, is_free, created_at`

// ListOrders возвращает заказы подписчика, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error) {
	return listOrders(ctx, r.pool, subscriberID)
}

// ListPayments возвращает прямые платежи подписчика, новые первыми.
func (r *PostgresRepository) ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error) {
	return listPayments(ctx, r.pool, subscriberID)
}

// CountOrders возвращает число заказов подписчика, созданных не раньше since.
// При since == nil учитываются все заказы. Верхней границы нет: часы приложения
// и now() базы могут расходиться.
func (r *PostgresRepository) CountOrders(ctx context.Context, subscriberID int64, since *time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM orders
		 WHERE subscriber_id = $1
		   AND ($2::timestamptz IS NULL OR created_at >= $2)`,
		subscriberID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func listOrders(ctx context.Context, q querier, subscriberID int64) ([]model.Order, error) {
	rows, err := q.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE subscriber_id = $1
		 ORDER BY created_at DESC, id DESC`,
		subscriberID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return scanOrders(rows)
}

func scanOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var (
			o           model.Order
			total, paid int64
		)
		if err := rows.Scan(
			&o.ID, &o.SubscriberID, &o.UserID,
			&o.NewBottles, &o.ExchangeBottles, &o.WaterOnly, &o.FreeBottles,
			&total, &paid, &o.IsFree, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.TotalAmount = fromMinor(total)
		o.PaidAmount = fromMinor(paid)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func listPayments(ctx context.Context, q querier, subscriberID int64) ([]model.Payment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, subscriber_id, user_id, amount, created_at
		 FROM payments
		 WHERE subscriber_id = $1
		 ORDER BY created_at DESC, id DESC`,
		subscriberID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var (
			p      model.Payment
			amount int64
		)
		if err := rows.Scan(&p.ID, &p.SubscriberID, &p.UserID, &amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = fromMinor(amount)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
