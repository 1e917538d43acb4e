// Package pricing рассчитывает стоимость заказов по прайс-листу и условиям акции.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/model"
)

var defaultPrices = map[model.OperationType]decimal.Decimal{
	model.OpNewBottle: decimal.NewFromInt(105),
	model.OpExchange:  decimal.NewFromInt(50),
	model.OpWaterOnly: decimal.NewFromInt(15),
	model.OpContainer: decimal.NewFromInt(90),
}

// DefaultPrice возвращает встроенную цену операции, используемую при отсутствии строки в прайс-листе.
func DefaultPrice(op model.OperationType) decimal.Decimal {
	return defaultPrices[op]
}

// DefaultEntries возвращает прайс-лист по умолчанию для начального заполнения хранилища.
func DefaultEntries() []model.PriceEntry {
	entries := make([]model.PriceEntry, 0, len(model.OperationTypes))
	for _, op := range model.OperationTypes {
		entries = append(entries, model.PriceEntry{
			OperationType:   op,
			LegalPrice:      defaultPrices[op],
			IndividualPrice: defaultPrices[op],
		})
	}
	return entries
}

// Catalog хранит неизменяемый снимок прайс-листа.
type Catalog struct {
	entries map[model.OperationType]model.PriceEntry
}

// NewCatalog создаёт снимок прайс-листа из строк хранилища.
func NewCatalog(entries []model.PriceEntry) *Catalog {
	c := &Catalog{entries: make(map[model.OperationType]model.PriceEntry, len(entries))}
	for _, e := range entries {
		c.entries[e.OperationType] = e
	}
	return c
}

// PriceFor возвращает цену единицы операции для категории клиента.
// Для отсутствующей операции возвращается встроенная цена.
// Любая категория, кроме legal, тарифицируется как individual.
func (c *Catalog) PriceFor(op model.OperationType, class model.ClientClass) decimal.Decimal {
	if c == nil {
		return DefaultPrice(op)
	}
	e, ok := c.entries[op]
	if !ok {
		return DefaultPrice(op)
	}
	if class == model.ClientLegal {
		return e.LegalPrice
	}
	return e.IndividualPrice
}

// Entries возвращает строки прайс-листа в фиксированном порядке операций, подставляя цены по умолчанию для отсутствующих.
func (c *Catalog) Entries() []model.PriceEntry {
	if c == nil {
		return DefaultEntries()
	}
	res := make([]model.PriceEntry, 0, len(model.OperationTypes))
	for _, op := range model.OperationTypes {
		if e, ok := c.entries[op]; ok {
			res = append(res, e)
			continue
		}
		res = append(res, model.PriceEntry{
			OperationType:   op,
			LegalPrice:      DefaultPrice(op),
			IndividualPrice: DefaultPrice(op),
		})
	}
	return res
}
