package inventory

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// Client: gRPC-клиент сервиса склада.
type Client struct {
	api apiv1.InventoryServiceClient
}

// NewClient создаёт клиента поверх установленного соединения.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{api: apiv1.NewInventoryServiceClient(conn)}
}

// CheckStock выполняет один сетевой вызов без повторов.
func (c *Client) CheckStock(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResult, error) {
	in := &apiv1.CheckStockRequest{Items: make([]apiv1.StockQuery, 0, len(req.Items))}
	for _, item := range req.Items {
		in.Items = append(in.Items, apiv1.StockQuery{SKU: item.SKU, RequiredQuantity: item.RequiredQty})
	}

	resp, err := c.api.CheckStock(ctx, in)
	if err != nil {
		return domain.StockCheckResult{}, fmt.Errorf("inventory check stock: %w", err)
	}

	return FromAPI(resp), nil
}

// FromAPI переводит ответ транспорта в доменный результат.
func FromAPI(resp *apiv1.CheckStockResponse) domain.StockCheckResult {
	if resp == nil {
		return domain.StockCheckResult{}
	}
	items := make([]domain.StockLevel, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, domain.StockLevel{
			SKU:          item.SKU,
			RequiredQty:  item.RequiredQuantity,
			AvailableQty: item.AvailableQuantity,
			InStock:      item.InStock,
		})
	}
	return domain.StockCheckResult{Items: items}
}

// ToAPI переводит доменный результат в ответ транспорта.
func ToAPI(result domain.StockCheckResult) *apiv1.CheckStockResponse {
	out := &apiv1.CheckStockResponse{Items: make([]apiv1.StockLevel, 0, len(result.Items))}
	for _, level := range result.Items {
		out.Items = append(out.Items, apiv1.StockLevel{
			SKU:               level.SKU,
			RequiredQuantity:  level.RequiredQty,
			AvailableQuantity: level.AvailableQty,
			InStock:           level.InStock,
		})
	}
	return out
}

var _ domain.InventoryQueryService = (*Client)(nil)
