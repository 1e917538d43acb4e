package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/watersub/internal/model"
)

// Mode задаёт режим ввода заказа.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeCredit   Mode = "credit"
)

// Фиксированные цены упрощённого ввода в долг.
var (
	creditBottlePrice      = decimal.NewFromInt(105)
	creditPromoBottlePrice = decimal.NewFromInt(100)
	creditWaterPrice       = decimal.NewFromInt(15)
)

// OrderInput реализуют варианты ввода заказа: StandardOrderInput и CreditOrderInput.
type OrderInput interface {
	Mode() Mode
}

// StandardOrderInput описывает построчный ввод заказа с ценами из прайс-листа.
type StandardOrderInput struct {
	NewBottles      int
	ExchangeBottles int
	WaterOnly       int
	FreeBottles     int
	// PaidAmount задаёт оплаченную сумму; nil означает полную оплату.
	PaidAmount *decimal.Decimal
}

// Mode реализует OrderInput.
func (StandardOrderInput) Mode() Mode { return ModeStandard }

// CreditOrderInput описывает упрощённый ввод в долг: бутыль с водой и только вода.
type CreditOrderInput struct {
	GapBilen int
	DineSuw  int
}

// Mode реализует OrderInput.
func (CreditOrderInput) Mode() Mode { return ModeCredit }

// RawOrderFields содержит поля заказа в том виде, в каком их присылает форма оператора.
type RawOrderFields struct {
	Mode            Mode             `json:"mode" validate:"omitempty,oneof=standard credit"`
	NewBottles      int              `json:"new_bottles" validate:"gte=0"`
	ExchangeBottles int              `json:"exchange_bottles" validate:"gte=0"`
	WaterOnly       int              `json:"water_only" validate:"gte=0"`
	FreeBottles     int              `json:"free_bottles" validate:"gte=0"`
	GapBilen        int              `json:"gap_bilen" validate:"gte=0"`
	DineSuw         int              `json:"dine_suw" validate:"gte=0"`
	PaidAmount      *decimal.Decimal `json:"paid_amount" validate:"omitempty,decimal_gte0"`
}

// ResolveInput выбирает вариант ввода. Явный режим имеет приоритет;
// без него ввод в долг выбирается, если заполнено хотя бы одно из его полей,
// а стандартные поля в этом случае отбрасываются.
func ResolveInput(f RawOrderFields) OrderInput {
	switch f.Mode {
	case ModeCredit:
		return CreditOrderInput{GapBilen: f.GapBilen, DineSuw: f.DineSuw}
	case ModeStandard:
		return f.standard()
	}

	if f.GapBilen > 0 || f.DineSuw > 0 {
		return CreditOrderInput{GapBilen: f.GapBilen, DineSuw: f.DineSuw}
	}
	return f.standard()
}

func (f RawOrderFields) standard() StandardOrderInput {
	return StandardOrderInput{
		NewBottles:      f.NewBottles,
		ExchangeBottles: f.ExchangeBottles,
		WaterOnly:       f.WaterOnly,
		FreeBottles:     f.FreeBottles,
		PaidAmount:      f.PaidAmount,
	}
}

// Quote содержит результат расчёта заказа: сохраняемые количества и суммы.
type Quote struct {
	Mode            Mode
	NewBottles      int
	ExchangeBottles int
	WaterOnly       int
	FreeBottles     int
	Total           decimal.Decimal
	Paid            decimal.Decimal
	IsFree          bool
	PromoApplied    bool
}

// PriceOrder рассчитывает итог и оплаченную сумму заказа. Количества не
// проверяются: движок выполняет только арифметику. Признак isFree обнуляет
// итог и оплату в любом режиме.
func PriceOrder(catalog *Catalog, class model.ClientClass, promo Promo, input OrderInput, isFree bool) Quote {
	var q Quote

	switch in := input.(type) {
	case CreditOrderInput:
		q = priceCredit(promo, in)
	case StandardOrderInput:
		q = priceStandard(catalog, class, promo, in)
	default:
		q = Quote{Mode: ModeStandard, Total: decimal.Zero, Paid: decimal.Zero}
	}

	if isFree {
		q.Total = decimal.Zero
		q.Paid = decimal.Zero
		q.IsFree = true
	}

	return q
}

func priceStandard(catalog *Catalog, class model.ClientClass, promo Promo, in StandardOrderInput) Quote {
	newPrice := catalog.PriceFor(model.OpNewBottle, class)
	exchangePrice := catalog.PriceFor(model.OpExchange, class)
	waterPrice := catalog.PriceFor(model.OpWaterOnly, class)
	containerPrice := catalog.PriceFor(model.OpContainer, class)

	applied := false
	if promo.Active {
		// Скидка на воду входит в цену новой бутыли и обмена.
		delta := waterPrice.Sub(promo.WaterPrice)
		if delta.IsPositive() {
			newPrice = newPrice.Sub(delta)
			exchangePrice = exchangePrice.Sub(delta)
			waterPrice = waterPrice.Sub(delta)
			applied = true
		}
	}

	total := newPrice.Mul(decimal.NewFromInt(int64(in.NewBottles))).
		Add(exchangePrice.Mul(decimal.NewFromInt(int64(in.ExchangeBottles)))).
		Add(waterPrice.Mul(decimal.NewFromInt(int64(in.WaterOnly)))).
		Add(containerPrice.Mul(decimal.NewFromInt(int64(in.FreeBottles))))

	paid := total
	if in.PaidAmount != nil {
		paid = *in.PaidAmount
	}

	return Quote{
		Mode:            ModeStandard,
		NewBottles:      in.NewBottles,
		ExchangeBottles: in.ExchangeBottles,
		WaterOnly:       in.WaterOnly,
		FreeBottles:     in.FreeBottles,
		Total:           total,
		Paid:            paid,
		PromoApplied:    applied,
	}
}

func priceCredit(promo Promo, in CreditOrderInput) Quote {
	waterPrice := creditWaterPrice
	bottlePrice := creditBottlePrice
	if promo.Active {
		waterPrice = promo.WaterPrice
		bottlePrice = creditPromoBottlePrice
	}

	total := bottlePrice.Mul(decimal.NewFromInt(int64(in.GapBilen))).
		Add(waterPrice.Mul(decimal.NewFromInt(int64(in.DineSuw))))

	return Quote{
		Mode:         ModeCredit,
		NewBottles:   in.GapBilen,
		WaterOnly:    in.DineSuw,
		Total:        total,
		Paid:         decimal.Zero,
		PromoApplied: promo.Active,
	}
}
