// Package model содержит доменные сущности сервиса учёта подписчиков доставки воды.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль оператора системы.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleUser       Role = "user"
)

// User представляет оператора, который оформляет заказы и платежи.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// ClientClass определяет ценовую категорию подписчика.
type ClientClass string

const (
	ClientLegal      ClientClass = "legal"
	ClientIndividual ClientClass = "individual"
)

// Valid сообщает, является ли значение одной из двух известных категорий.
func (c ClientClass) Valid() bool {
	return c == ClientLegal || c == ClientIndividual
}

// OperationType задаёт вид операции в прайс-листе.
type OperationType string

const (
	OpNewBottle OperationType = "new_bottle"
	OpExchange  OperationType = "exchange"
	OpWaterOnly OperationType = "water_only"
	OpContainer OperationType = "container"
)

// OperationTypes перечисляет все виды операций прайс-листа.
var OperationTypes = []OperationType{OpNewBottle, OpExchange, OpWaterOnly, OpContainer}

// Subscriber описывает подписчика и его кэшированный долг.
type Subscriber struct {
	ID          int64
	ClientClass ClientClass
	Address     string
	Phones      []string
	Debt        decimal.Decimal
	CreatedAt   time.Time

	// PromoStartDate ограничивает подсчёт заказов для акции заказами не раньше этой даты.
	PromoStartDate *time.Time
	// PromoCustomLimit переопределяет глобальный лимит заказов по акции.
	PromoCustomLimit *int
}

// Order описывает сохранённый заказ доставки.
type Order struct {
	ID              int64
	SubscriberID    int64
	UserID          int64
	NewBottles      int
	ExchangeBottles int
	WaterOnly       int
	FreeBottles     int
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	IsFree          bool
	CreatedAt       time.Time
}

// Payment описывает прямой платёж подписчика в счёт долга.
type Payment struct {
	ID           int64
	SubscriberID int64
	UserID       int64
	Amount       decimal.Decimal
	CreatedAt    time.Time
}

// PriceEntry содержит цены одной операции для обеих категорий клиентов.
type PriceEntry struct {
	OperationType   OperationType   `json:"operation_type"`
	LegalPrice      decimal.Decimal `json:"legal_price"`
	IndividualPrice decimal.Decimal `json:"individual_price"`
}

// PriceUpdate описывает частичное обновление цены операции.
type PriceUpdate struct {
	LegalPrice      *decimal.Decimal `json:"legal_price" validate:"required_without=IndividualPrice,omitempty,decimal_gte0"`
	IndividualPrice *decimal.Decimal `json:"individual_price" validate:"required_without=LegalPrice,omitempty,decimal_gte0"`
}

// PromotionSetting содержит глобальные параметры акции на воду.
type PromotionSetting struct {
	Active          bool            `json:"active"`
	WaterPromoPrice decimal.Decimal `json:"water_promo_price" validate:"decimal_gte0"`
	OrderLimit      int             `json:"water_promo_order_limit" validate:"gte=0"`
}

// DefaultPromotionSetting возвращает параметры акции, действующие при отсутствии настроек в хранилище.
func DefaultPromotionSetting() PromotionSetting {
	return PromotionSetting{
		Active:          true,
		WaterPromoPrice: decimal.NewFromInt(10),
		OrderLimit:      10,
	}
}

// ActionRecord описывает запись журнала действий операторов.
type ActionRecord struct {
	ID         int64
	UserID     int64
	Action     string
	EntityType string
	EntityID   *int64
	Details    string
	CreatedAt  time.Time
}

// Действия журнала.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionLogin  = "LOGIN"
)

// Типы сущностей журнала.
const (
	EntityUser       = "user"
	EntitySubscriber = "subscriber"
	EntityOrder      = "order"
	EntityPayment    = "payment"
	EntityPrices     = "prices"
	EntitySettings   = "settings"
)
