package grpcsvc

import "github.com/vladislavdragonenkov/inventory/internal/domain"

// GetOrderRequest — запрос заказа по идентификатору.
type GetOrderRequest struct {
	ID string `json:"id"`
}

// CreateOrderRequest — новый заказ; поле id игнорируется сервером.
type CreateOrderRequest struct {
	Order domain.Order `json:"order"`
}

// UpdateOrderRequest — полная перезапись изменяемых полей заказа ID.
type UpdateOrderRequest struct {
	ID    string       `json:"id"`
	Order domain.Order `json:"order"`
}

type DeleteOrderRequest struct {
	ID string `json:"id"`
}

type DeleteOrderResponse struct{}

type SeedOrdersRequest struct {
	Count int `json:"count"`
}

type SeedOrdersResponse struct {
	Count int `json:"count"`
}

// UpsertOrdersResponse возвращается после обработки всего клиентского потока.
type UpsertOrdersResponse struct {
	Received int `json:"received"`
}
