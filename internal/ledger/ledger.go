// Package ledger пересчитывает долг подписчика по истории заказов и платежей.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/model"
)

// Debt возвращает долг: сумма итогов заказов минус оплаченное по заказам минус прямые платежи.
// Отрицательное значение означает переплату.
func Debt(orders []model.Order, payments []model.Payment) decimal.Decimal {
	debt := decimal.Zero
	for _, o := range orders {
		debt = debt.Add(o.TotalAmount).Sub(o.PaidAmount)
	}
	for _, p := range payments {
		debt = debt.Sub(p.Amount)
	}
	return debt
}

// Source описывает чтение истории подписчика и запись пересчитанного долга
// в пределах одной транзакции хранилища.
type Source interface {
	ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error)
	ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error)
	UpdateSubscriberDebt(ctx context.Context, subscriberID int64, debt decimal.Decimal) error
}

// Reconcile полностью пересчитывает долг подписчика и сохраняет его.
// Повторный вызов без изменений истории даёт тот же результат.
func Reconcile(ctx context.Context, src Source, subscriberID int64) (decimal.Decimal, error) {
	orders, err := src.ListOrders(ctx, subscriberID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list orders: %w", err)
	}

	payments, err := src.ListPayments(ctx, subscriberID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list payments: %w", err)
	}

	debt := Debt(orders, payments)

	if err := src.UpdateSubscriberDebt(ctx, subscriberID, debt); err != nil {
		return decimal.Zero, fmt.Errorf("update debt: %w", err)
	}

	return debt, nil
}
