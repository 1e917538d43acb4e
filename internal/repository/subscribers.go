package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/watersub/internal/model"
)

// SearchType задаёт поле поиска подписчиков.
type SearchType string

const (
	SearchPhone   SearchType = "phone"
	SearchAddress SearchType = "address"
	SearchAll     SearchType = "all"
)

const subscriberSelect = `SELECT s.id, s.client_class, s.address, s.debt, s.promo_start_date, s.promo_custom_limit, s.created_at,
	COALESCE((SELECT array_agg(p.number ORDER BY p.id) FROM phones p WHERE p.subscriber_id = s.id), '{}')
	FROM subscribers s`

// CreateSubscriber сохраняет подписчика вместе с телефонами.
func (r *PostgresRepository) CreateSubscriber(ctx context.Context, s *model.Subscriber) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO subscribers (client_class, address, promo_start_date, promo_custom_limit)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		string(s.ClientClass), s.Address, s.PromoStartDate, s.PromoCustomLimit,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert subscriber: %w", err)
	}

	if err := insertPhones(ctx, tx, s.ID, s.Phones); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return s.ID, nil
}

// UpdateSubscriber обновляет данные подписчика и заменяет его телефоны.
// Долг не изменяется: он определяется только историей заказов и платежей.
func (r *PostgresRepository) UpdateSubscriber(ctx context.Context, s *model.Subscriber) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE subscribers
		 SET client_class = $2, address = $3, promo_start_date = $4, promo_custom_limit = $5
		 WHERE id = $1`,
		s.ID, string(s.ClientClass), s.Address, s.PromoStartDate, s.PromoCustomLimit,
	)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM phones WHERE subscriber_id = $1`, s.ID); err != nil {
		return fmt.Errorf("delete phones: %w", err)
	}

	if err := insertPhones(ctx, tx, s.ID, s.Phones); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func insertPhones(ctx context.Context, tx pgx.Tx, subscriberID int64, phones []string) error {
	for _, number := range phones {
		number = strings.TrimSpace(number)
		if number == "" {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO phones (subscriber_id, number) VALUES ($1, $2)`,
			subscriberID, number,
		); err != nil {
			return fmt.Errorf("insert phone: %w", err)
		}
	}
	return nil
}

// DeleteSubscriber удаляет подписчика вместе с заказами, платежами и телефонами в одной транзакции.
// Возвращает число удалённых заказов и платежей.
func (r *PostgresRepository) DeleteSubscriber(ctx context.Context, id int64) (int64, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockSubscriber(ctx, tx, id); err != nil {
		return 0, 0, err
	}

	ordersTag, err := tx.Exec(ctx, `DELETE FROM orders WHERE subscriber_id = $1`, id)
	if err != nil {
		return 0, 0, fmt.Errorf("delete orders: %w", err)
	}

	paymentsTag, err := tx.Exec(ctx, `DELETE FROM payments WHERE subscriber_id = $1`, id)
	if err != nil {
		return 0, 0, fmt.Errorf("delete payments: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM phones WHERE subscriber_id = $1`, id); err != nil {
		return 0, 0, fmt.Errorf("delete phones: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM subscribers WHERE id = $1`, id); err != nil {
		return 0, 0, fmt.Errorf("delete subscriber: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}

	return ordersTag.RowsAffected(), paymentsTag.RowsAffected(), nil
}

// GetSubscriber возвращает подписчика по идентификатору.
func (r *PostgresRepository) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	row := r.pool.QueryRow(ctx, subscriberSelect+` WHERE s.id = $1`, id)

	s, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	return s, nil
}

// ListSubscribers возвращает подписчиков, новые первыми, с необязательным поиском по телефону или адресу.
func (r *PostgresRepository) ListSubscribers(ctx context.Context, search string, searchType SearchType) ([]model.Subscriber, error) {
	query := subscriberSelect
	var args []any

	if search != "" {
		args = append(args, "%"+search+"%")
		phoneMatch := `EXISTS (SELECT 1 FROM phones p WHERE p.subscriber_id = s.id AND p.number ILIKE $1)`
		switch searchType {
		case SearchPhone:
			query += ` WHERE ` + phoneMatch
		case SearchAddress:
			query += ` WHERE s.address ILIKE $1`
		default:
			query += ` WHERE s.address ILIKE $1 OR ` + phoneMatch
		}
	}
	query += ` ORDER BY s.id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select subscribers: %w", err)
	}
	defer rows.Close()

	var res []model.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanSubscriber(row pgx.Row) (*model.Subscriber, error) {
	var (
		s     model.Subscriber
		class string
		debt  int64
	)
	if err := row.Scan(
		&s.ID, &class, &s.Address, &debt, &s.PromoStartDate, &s.PromoCustomLimit, &s.CreatedAt, &s.Phones,
	); err != nil {
		return nil, err
	}
	s.ClientClass = model.ClientClass(class)
	s.Debt = fromMinor(debt)
	return &s, nil
}
