package grpcsvc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

const (
	serviceName = "inventory.v1.OrderService"

	OrderService_GetOrder_FullMethodName     = "/" + serviceName + "/GetOrder"
	OrderService_SearchOrders_FullMethodName = "/" + serviceName + "/SearchOrders"
	OrderService_CreateOrder_FullMethodName  = "/" + serviceName + "/CreateOrder"
	OrderService_UpdateOrder_FullMethodName  = "/" + serviceName + "/UpdateOrder"
	OrderService_DeleteOrder_FullMethodName  = "/" + serviceName + "/DeleteOrder"
	OrderService_SeedOrders_FullMethodName   = "/" + serviceName + "/SeedOrders"
	OrderService_StreamOrders_FullMethodName = "/" + serviceName + "/StreamOrders"
	OrderService_UpsertOrders_FullMethodName = "/" + serviceName + "/UpsertOrders"
)

// OrderServiceServer — серверная часть inventory.v1.OrderService.
type OrderServiceServer interface {
	GetOrder(context.Context, *GetOrderRequest) (*domain.Order, error)
	SearchOrders(context.Context, *domain.SearchCriteria) (*domain.SearchResult, error)
	CreateOrder(context.Context, *CreateOrderRequest) (*domain.Order, error)
	UpdateOrder(context.Context, *UpdateOrderRequest) (*domain.Order, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error)
	SeedOrders(context.Context, *SeedOrdersRequest) (*SeedOrdersResponse, error)
	StreamOrders(*domain.StreamCriteria, grpc.ServerStreamingServer[domain.Order]) error
	UpsertOrders(grpc.ClientStreamingServer[domain.Order, UpsertOrdersResponse]) error
}

// RegisterOrderServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderService_ServiceDesc, srv)
}

// OrderService_ServiceDesc описывает сервис для grpc.Server.
var OrderService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unaryHandler(OrderService_GetOrder_FullMethodName, OrderServiceServer.GetOrder)},
		{MethodName: "SearchOrders", Handler: unaryHandler(OrderService_SearchOrders_FullMethodName, OrderServiceServer.SearchOrders)},
		{MethodName: "CreateOrder", Handler: unaryHandler(OrderService_CreateOrder_FullMethodName, OrderServiceServer.CreateOrder)},
		{MethodName: "UpdateOrder", Handler: unaryHandler(OrderService_UpdateOrder_FullMethodName, OrderServiceServer.UpdateOrder)},
		{MethodName: "DeleteOrder", Handler: unaryHandler(OrderService_DeleteOrder_FullMethodName, OrderServiceServer.DeleteOrder)},
		{MethodName: "SeedOrders", Handler: unaryHandler(OrderService_SeedOrders_FullMethodName, OrderServiceServer.SeedOrders)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamOrders",
			Handler:       streamOrdersHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "UpsertOrders",
			Handler:       upsertOrdersHandler,
			ClientStreams: true,
		},
	},
	Metadata: "inventory/v1/order_service.json",
}

func unaryHandler[Req, Res any](
	fullMethod string,
	call func(OrderServiceServer, context.Context, *Req) (*Res, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamOrdersHandler(srv any, stream grpc.ServerStream) error {
	in := new(domain.StreamCriteria)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrderServiceServer).StreamOrders(in, &grpc.GenericServerStream[domain.StreamCriteria, domain.Order]{ServerStream: stream})
}

func upsertOrdersHandler(srv any, stream grpc.ServerStream) error {
	return srv.(OrderServiceServer).UpsertOrders(&grpc.GenericServerStream[domain.Order, UpsertOrdersResponse]{ServerStream: stream})
}
