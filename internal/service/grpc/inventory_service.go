package grpcsvc

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
)

// InventoryService отвечает на запросы наличия по данным склада.
type InventoryService struct {
	apiv1.UnimplementedInventoryServiceServer

	inventory domain.InventoryQueryService
	logger    *log.Entry
}

// NewInventoryService конструирует gRPC-обёртку над складом.
func NewInventoryService(inv domain.InventoryQueryService, logger *log.Entry) *InventoryService {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-service")
	}
	return &InventoryService{inventory: inv, logger: logger}
}

// CheckStock возвращает по одной записи на каждую позицию запроса, в том же порядке.
func (s *InventoryService) CheckStock(ctx context.Context, req *apiv1.CheckStockRequest) (*apiv1.CheckStockResponse, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "items are required")
	}

	query := domain.StockCheckRequest{Items: make([]domain.StockQuery, 0, len(req.Items))}
	for idx, item := range req.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].sku_code is required", idx)
		}
		if item.RequiredQuantity < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].required_quantity must be >= 0", idx)
		}
		query.Items = append(query.Items, domain.StockQuery{SKU: sku, RequiredQty: item.RequiredQuantity})
	}

	result, err := s.inventory.CheckStock(ctx, query)
	if err != nil {
		s.logger.WithError(err).WithField("items", len(query.Items)).Error("stock check failed")
		return nil, status.Error(codes.Internal, "stock check failed")
	}

	return inventory.ToAPI(result), nil
}
