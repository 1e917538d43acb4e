package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/model"
)

// Ключи настроек акции.
const (
	settingPromoActive = "promo_active"
	settingPromoPrice  = "promo_water_price"
	settingPromoLimit  = "promo_water_limit"
)

// GetCatalog возвращает строки прайс-листа.
func (r *PostgresRepository) GetCatalog(ctx context.Context) ([]model.PriceEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT operation_type, legal_price, individual_price FROM prices ORDER BY operation_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("select prices: %w", err)
	}
	defer rows.Close()

	var res []model.PriceEntry
	for rows.Next() {
		var (
			op                string
			legal, individual int64
		)
		if err := rows.Scan(&op, &legal, &individual); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		res = append(res, model.PriceEntry{
			OperationType:   model.OperationType(op),
			LegalPrice:      fromMinor(legal),
			IndividualPrice: fromMinor(individual),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdatePrice атомарно обновляет цены одной операции. Незаданные цены сохраняют текущее значение,
// а при отсутствии строки берутся из fallback.
func (r *PostgresRepository) UpdatePrice(ctx context.Context, op model.OperationType, upd model.PriceUpdate, fallback decimal.Decimal) (model.PriceEntry, error) {
	var legal, individual *int64
	if upd.LegalPrice != nil {
		v := toMinor(*upd.LegalPrice)
		legal = &v
	}
	if upd.IndividualPrice != nil {
		v := toMinor(*upd.IndividualPrice)
		individual = &v
	}

	var outLegal, outIndividual int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO prices (operation_type, legal_price, individual_price)
		 VALUES ($1, COALESCE($2::bigint, $4::bigint), COALESCE($3::bigint, $4::bigint))
		 ON CONFLICT (operation_type) DO UPDATE SET
		   legal_price      = COALESCE($2::bigint, prices.legal_price),
		   individual_price = COALESCE($3::bigint, prices.individual_price)
		 RETURNING legal_price, individual_price`,
		string(op), legal, individual, toMinor(fallback),
	).Scan(&outLegal, &outIndividual)
	if err != nil {
		return model.PriceEntry{}, fmt.Errorf("upsert price: %w", err)
	}

	return model.PriceEntry{
		OperationType:   op,
		LegalPrice:      fromMinor(outLegal),
		IndividualPrice: fromMinor(outIndividual),
	}, nil
}

// GetPromoSettings возвращает настройки акции. Отсутствующие ключи заменяются значениями по умолчанию.
func (r *PostgresRepository) GetPromoSettings(ctx context.Context) (model.PromotionSetting, error) {
	settings := model.DefaultPromotionSetting()

	rows, err := r.pool.Query(ctx,
		`SELECT key, value FROM settings WHERE key IN ($1, $2, $3)`,
		settingPromoActive, settingPromoPrice, settingPromoLimit,
	)
	if err != nil {
		return settings, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("scan setting: %w", err)
		}
		if err := applySetting(&settings, key, value); err != nil {
			return model.DefaultPromotionSetting(), err
		}
	}

	if err := rows.Err(); err != nil {
		return settings, fmt.Errorf("rows error: %w", err)
	}

	return settings, nil
}

func applySetting(s *model.PromotionSetting, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case settingPromoActive:
		switch strings.ToLower(value) {
		case "true", "1", "on":
			s.Active = true
		default:
			s.Active = false
		}
	case settingPromoPrice:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		s.WaterPromoPrice = d
	case settingPromoLimit:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		s.OrderLimit = n
	}
	return nil
}

// UpdatePromoSettings сохраняет все параметры акции в одной транзакции.
func (r *PostgresRepository) UpdatePromoSettings(ctx context.Context, s model.PromotionSetting) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	values := map[string]string{
		settingPromoActive: strconv.FormatBool(s.Active),
		settingPromoPrice:  s.WaterPromoPrice.StringFixed(2),
		settingPromoLimit:  strconv.Itoa(s.OrderLimit),
	}

	for key, value := range values {
		if _, err := tx.Exec(ctx,
			`INSERT INTO settings (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
