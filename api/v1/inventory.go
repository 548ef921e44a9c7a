package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StockQuery: одна позиция запроса остатков.
type StockQuery struct {
	SKU              string `json:"sku_code"`
	RequiredQuantity int32  `json:"required_quantity"`
}

type CheckStockRequest struct {
	Items []StockQuery `json:"items"`
}

// StockLevel: ответ склада по одной позиции.
type StockLevel struct {
	SKU               string `json:"sku_code"`
	RequiredQuantity  int32  `json:"required_quantity"`
	AvailableQuantity int32  `json:"available_quantity"`
	InStock           bool   `json:"in_stock"`
}

type CheckStockResponse struct {
	Items []StockLevel `json:"items"`
}

const (
	InventoryServiceName                       = "ordersvc.v1.InventoryService"
	InventoryService_CheckStock_FullMethodName = "/ordersvc.v1.InventoryService/CheckStock"
)

// InventoryServiceClient: клиентский API сервиса склада.
type InventoryServiceClient interface {
	CheckStock(ctx context.Context, in *CheckStockRequest, opts ...grpc.CallOption) (*CheckStockResponse, error)
}

type inventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryServiceClient(cc grpc.ClientConnInterface) InventoryServiceClient {
	return &inventoryServiceClient{cc: cc}
}

func (c *inventoryServiceClient) CheckStock(ctx context.Context, in *CheckStockRequest, opts ...grpc.CallOption) (*CheckStockResponse, error) {
	out := new(CheckStockResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, InventoryService_CheckStock_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// InventoryServiceServer: серверный API сервиса склада.
type InventoryServiceServer interface {
	CheckStock(context.Context, *CheckStockRequest) (*CheckStockResponse, error)
}

// UnimplementedInventoryServiceServer встраивается в реализации для совместимости вперёд.
type UnimplementedInventoryServiceServer struct{}

func (UnimplementedInventoryServiceServer) CheckStock(context.Context, *CheckStockRequest) (*CheckStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckStock not implemented")
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryService_ServiceDesc, srv)
}

func _InventoryService_CheckStock_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).CheckStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: InventoryService_CheckStock_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).CheckStock(ctx, req.(*CheckStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InventoryService_ServiceDesc: описание сервиса для grpc.Server.
var InventoryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckStock",
			Handler:    _InventoryService_CheckStock_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/v1/inventory.go",
}
