package grpcsvc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

// OrderServiceClient — клиент inventory.v1.OrderService поверх JSON-кодека.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderServiceClient создаёт клиента поверх установленного соединения.
func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, OrderService_GetOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) SearchOrders(ctx context.Context, in *domain.SearchCriteria, opts ...grpc.CallOption) (*domain.SearchResult, error) {
	out := new(domain.SearchResult)
	if err := c.invoke(ctx, OrderService_SearchOrders_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, OrderService_CreateOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) UpdateOrder(ctx context.Context, in *UpdateOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, OrderService_UpdateOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error) {
	out := new(DeleteOrderResponse)
	if err := c.invoke(ctx, OrderService_DeleteOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) SeedOrders(ctx context.Context, in *SeedOrdersRequest, opts ...grpc.CallOption) (*SeedOrdersResponse, error) {
	out := new(SeedOrdersResponse)
	if err := c.invoke(ctx, OrderService_SeedOrders_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamOrders открывает серверный поток; конец данных сигнализируется io.EOF из Recv.
func (c *OrderServiceClient) StreamOrders(ctx context.Context, in *domain.StreamCriteria, opts ...grpc.CallOption) (grpc.ServerStreamingClient[domain.Order], error) {
	stream, err := c.cc.NewStream(ctx, &OrderService_ServiceDesc.Streams[0], OrderService_StreamOrders_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[domain.StreamCriteria, domain.Order]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// UpsertOrders открывает клиентский поток; результат приходит из CloseAndRecv.
func (c *OrderServiceClient) UpsertOrders(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[domain.Order, UpsertOrdersResponse], error) {
	stream, err := c.cc.NewStream(ctx, &OrderService_ServiceDesc.Streams[1], OrderService_UpsertOrders_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[domain.Order, UpsertOrdersResponse]{ClientStream: stream}, nil
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, method, in, out, withCodec(opts)...)
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
