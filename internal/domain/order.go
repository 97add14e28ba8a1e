package domain

import (
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

const (
	// MaxLocationCodeLen — ограничение длины кода локации (varchar(50) в схеме).
	MaxLocationCodeLen = 50
	// MaxProductCodeLen — ограничение длины кода товара (varchar(50) в схеме).
	MaxProductCodeLen = 50
	// MaxSubmittedByLen — ограничение длины автора заказа (varchar(100) в схеме).
	MaxSubmittedByLen = 100
)

// MinOrderDate — минимальная дата-заглушка; реальная дата заказа должна быть строго позже.
var MinOrderDate = civil.Date{Year: 1, Month: time.January, Day: 1}

// Order описывает одну запись о заказе товара в локации на дату.
type Order struct {
	// ID назначается движком при создании; нулевой UUID означает «не задан».
	ID           uuid.UUID  `json:"id"`
	LocationCode string     `json:"location_code" validate:"notblank,max=50"`
	ProductCode  string     `json:"product_code" validate:"notblank,max=50"`
	OrderDate    civil.Date `json:"order_date" validate:"required"`
	Quantity     int        `json:"quantity" validate:"gt=0,max=2147483647"`
	SubmittedBy  string     `json:"submitted_by" validate:"notblank,max=100"`
	// SubmittedAt хранит момент отправки вместе со смещением часового пояса.
	SubmittedAt time.Time `json:"submitted_at" validate:"required"`
}

// HasID сообщает, передан ли идентификатор вызывающей стороной.
func (o Order) HasID() bool {
	return o.ID != uuid.Nil
}

// ApplyFrom перезаписывает все изменяемые поля значениями src, не трогая ID.
func (o *Order) ApplyFrom(src Order) {
	o.LocationCode = src.LocationCode
	o.ProductCode = src.ProductCode
	o.OrderDate = src.OrderDate
	o.Quantity = src.Quantity
	o.SubmittedBy = src.SubmittedBy
	o.SubmittedAt = src.SubmittedAt
}

// Equal сравнивает заказы по всем полям; время сравнивается как момент, без учёта представления.
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID &&
		o.LocationCode == other.LocationCode &&
		o.ProductCode == other.ProductCode &&
		o.OrderDate == other.OrderDate &&
		o.Quantity == other.Quantity &&
		o.SubmittedBy == other.SubmittedBy &&
		o.SubmittedAt.Equal(other.SubmittedAt)
}
