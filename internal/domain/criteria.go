package domain

import (
	"strings"

	"github.com/golang-sql/civil"
)

const (
	// DefaultPageNumber используется, если номер страницы не передан.
	DefaultPageNumber = 1
	// DefaultPageSize используется, если размер страницы не передан.
	DefaultPageSize = 10
	// MaxPageSize — верхняя граница размера страницы.
	MaxPageSize = 1000
)

// OrderFilter содержит фильтры, общие для постраничного и потокового поиска.
// Пустая (или состоящая из пробелов) строка означает отсутствие фильтра.
type OrderFilter struct {
	LocationCode  string      `json:"location_code,omitempty"`
	ProductCode   string      `json:"product_code,omitempty"`
	OrderDateFrom *civil.Date `json:"order_date_from,omitempty"`
	OrderDateTo   *civil.Date `json:"order_date_to,omitempty"`
}

// SearchCriteria — параметры постраничного поиска с опциональной агрегацией.
type SearchCriteria struct {
	OrderFilter
	Aggregate  bool `json:"aggregate,omitempty"`
	PageNumber *int `json:"page_number,omitempty" validate:"omitempty,min=1"`
	PageSize   *int `json:"page_size,omitempty" validate:"omitempty,min=1,max=1000"`
}

// StreamCriteria — параметры потокового поиска: только фильтры, без страниц и агрегации.
type StreamCriteria struct {
	OrderFilter
}

// Page возвращает номер и размер страницы с подставленными значениями по умолчанию.
func (c SearchCriteria) Page() (number, size int) {
	number, size = DefaultPageNumber, DefaultPageSize
	if c.PageNumber != nil {
		number = *c.PageNumber
	}
	if c.PageSize != nil {
		size = *c.PageSize
	}
	return number, size
}

// Field — поле заказа, по которому допускается фильтрация.
type Field string

const (
	FieldLocationCode Field = "location_code"
	FieldProductCode  Field = "product_code"
	FieldOrderDate    Field = "order_date"
)

// Op — оператор сравнения в предикате.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Predicate описывает одно условие отбора; все предикаты объединяются через AND.
// Value имеет тип string для кодов и civil.Date для даты.
type Predicate struct {
	Field Field
	Op    Op
	Value any
}

// Predicates строит упорядоченный список предикатов из заданных полей фильтра.
func (f OrderFilter) Predicates() []Predicate {
	preds := make([]Predicate, 0, 4)
	if strings.TrimSpace(f.LocationCode) != "" {
		preds = append(preds, Predicate{Field: FieldLocationCode, Op: OpEq, Value: f.LocationCode})
	}
	if strings.TrimSpace(f.ProductCode) != "" {
		preds = append(preds, Predicate{Field: FieldProductCode, Op: OpEq, Value: f.ProductCode})
	}
	if f.OrderDateFrom != nil {
		preds = append(preds, Predicate{Field: FieldOrderDate, Op: OpGte, Value: *f.OrderDateFrom})
	}
	if f.OrderDateTo != nil {
		preds = append(preds, Predicate{Field: FieldOrderDate, Op: OpLte, Value: *f.OrderDateTo})
	}
	return preds
}

// Matches проверяет заказ на соответствие всем предикатам.
// Используется хранилищами без собственного движка запросов.
func Matches(order Order, preds []Predicate) bool {
	for _, p := range preds {
		if !p.matches(order) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(order Order) bool {
	switch p.Field {
	case FieldLocationCode:
		v, _ := p.Value.(string)
		return p.Op == OpEq && order.LocationCode == v
	case FieldProductCode:
		v, _ := p.Value.(string)
		return p.Op == OpEq && order.ProductCode == v
	case FieldOrderDate:
		v, ok := p.Value.(civil.Date)
		if !ok {
			return false
		}
		switch p.Op {
		case OpEq:
			return order.OrderDate == v
		case OpGte:
			return !order.OrderDate.Before(v)
		case OpLte:
			return !order.OrderDate.After(v)
		}
	}
	return false
}

// OrderQuery — запрос на постраничную выборку, отсортированную по дате заказа.
type OrderQuery struct {
	Predicates []Predicate
	Offset     int
	Limit      int
}

// AggregateBucket — производная сводка по заказам с одной датой и одним товаром.
type AggregateBucket struct {
	OrderDate       civil.Date `json:"order_date"`
	ProductCode     string     `json:"product_code"`
	Count           int        `json:"count"`
	TotalQuantity   int64      `json:"total_quantity"`
	AverageQuantity float64    `json:"average_quantity"`
}

// SearchResult — результат постраничного поиска.
// Aggregates равен nil, если агрегация не запрашивалась.
type SearchResult struct {
	Orders     []Order           `json:"orders"`
	Aggregates []AggregateBucket `json:"aggregates,omitempty"`
}
