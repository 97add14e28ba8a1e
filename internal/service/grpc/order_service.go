package grpcsvc

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
)

// OrderService реализует gRPC API поверх сервиса заказов.
type OrderService struct {
	orders *orders.Service
	logger *log.Entry
}

var _ OrderServiceServer = (*OrderService)(nil)

// NewOrderService конструирует gRPC-обёртку над сервисом заказов.
func NewOrderService(svc *orders.Service, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-order-service")
	}
	return &OrderService{orders: svc, logger: logger}
}

// GetOrder возвращает заказ по идентификатору.
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*domain.Order, error) {
	id, err := parseOrderID(req.ID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, "get order")
	}
	return &order, nil
}

// SearchOrders выполняет постраничный поиск с опциональной агрегацией.
func (s *OrderService) SearchOrders(ctx context.Context, req *domain.SearchCriteria) (*domain.SearchResult, error) {
	result, err := s.orders.Search(ctx, *req)
	if err != nil {
		return nil, s.toStatus(err, "search orders")
	}
	return &result, nil
}

// CreateOrder создаёт заказ под новым идентификатором.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	order, err := s.orders.Create(ctx, req.Order)
	if err != nil {
		return nil, s.toStatus(err, "create order")
	}
	return &order, nil
}

// UpdateOrder перезаписывает изменяемые поля заказа.
func (s *OrderService) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*domain.Order, error) {
	id, err := parseOrderID(req.ID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Update(ctx, id, req.Order)
	if err != nil {
		return nil, s.toStatus(err, "update order")
	}
	return &order, nil
}

// DeleteOrder удаляет заказ.
func (s *OrderService) DeleteOrder(ctx context.Context, req *DeleteOrderRequest) (*DeleteOrderResponse, error) {
	id, err := parseOrderID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return nil, s.toStatus(err, "delete order")
	}
	return &DeleteOrderResponse{}, nil
}

// SeedOrders генерирует синтетические заказы.
func (s *OrderService) SeedOrders(ctx context.Context, req *SeedOrdersRequest) (*SeedOrdersResponse, error) {
	if err := s.orders.Seed(ctx, req.Count); err != nil {
		return nil, s.toStatus(err, "seed orders")
	}
	return &SeedOrdersResponse{Count: req.Count}, nil
}

// StreamOrders отдаёт отфильтрованные заказы по одному сообщению на запись.
func (s *OrderService) StreamOrders(req *domain.StreamCriteria, stream grpc.ServerStreamingServer[domain.Order]) error {
	ctx := stream.Context()
	cursor, err := s.orders.SearchStream(ctx, *req)
	if err != nil {
		return s.toStatus(err, "open order stream")
	}
	for order, err := range orders.All(ctx, cursor) {
		if err != nil {
			return s.toStatus(err, "stream orders")
		}
		if err := stream.Send(&order); err != nil {
			return err
		}
	}
	return nil
}

// UpsertOrders принимает поток заказов и сохраняет его чанками.
func (s *OrderService) UpsertOrders(stream grpc.ClientStreamingServer[domain.Order, UpsertOrdersResponse]) error {
	received := 0
	if err := s.orders.UpsertBatch(stream.Context(), receiveOrders(stream, &received)); err != nil {
		return s.toStatus(err, "upsert orders")
	}
	return stream.SendAndClose(&UpsertOrdersResponse{Received: received})
}

func receiveOrders(stream grpc.ClientStreamingServer[domain.Order, UpsertOrdersResponse], received *int) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		for {
			order, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(domain.Order{}, err)
				return
			}
			*received++
			if !yield(*order, nil) {
				return
			}
		}
	}
}

func parseOrderID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, "id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "id must be a valid UUID: %v", err)
	}
	return id, nil
}

// toStatus переводит доменные ошибки в gRPC-статусы; неизвестные ошибки логируются и скрываются.
func (s *OrderService) toStatus(err error, operation string) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if violations, ok := domain.AsViolations(err); ok {
		return validationStatus(err, violations)
	}
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, domain.ErrOrderNotFound.Error())
	case errors.Is(err, domain.ErrOrderExists):
		return status.Error(codes.AlreadyExists, domain.ErrOrderExists.Error())
	case errors.Is(err, domain.ErrInvalidSeedCount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	s.logger.WithError(err).WithField("operation", operation).Error("order operation failed")
	return status.Errorf(codes.Internal, "failed to %s", operation)
}
