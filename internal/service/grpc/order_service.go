package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/placement"
)

const (
	defaultListOrdersLimit = 100
	maxListOrdersLimit     = 1000
)

// OrderService реализует gRPC API размещения и чтения заказов.
type OrderService struct {
	apiv1.UnimplementedOrderServiceServer

	repo         domain.OrderRepository
	orchestrator placement.Orchestrator
	logger       *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(repo domain.OrderRepository, orchestrator placement.Orchestrator, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{
		repo:         repo,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// PlaceOrder проверяет наличие и сохраняет заказ.
func (s *OrderService) PlaceOrder(ctx context.Context, req *apiv1.PlaceOrderRequest) (*apiv1.PlaceOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.OrderLine{
			SKU:        strings.TrimSpace(line.SKU),
			PriceMinor: line.PriceMinor,
			Qty:        line.Quantity,
		})
	}

	order, err := s.orchestrator.PlaceOrder(ctx, lines)
	if err != nil {
		return nil, s.placementStatus(err)
	}

	return &apiv1.PlaceOrderResponse{Order: toAPIOrder(order)}, nil
}

// GetOrder возвращает заказ по ID или по номеру (без учёта регистра).
func (s *OrderService) GetOrder(ctx context.Context, req *apiv1.GetOrderRequest) (*apiv1.GetOrderResponse, error) {
	if req == nil || (req.OrderID == "" && req.OrderNumber == "") {
		return nil, status.Error(codes.InvalidArgument, "order_id or order_number is required")
	}

	var (
		order domain.Order
		err   error
	)
	if req.OrderID != "" {
		order, err = s.repo.Get(ctx, req.OrderID)
	} else {
		order, err = s.repo.GetByNumber(ctx, req.OrderNumber)
	}
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, status.Error(codes.NotFound, domain.ErrOrderNotFound.Error())
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":     req.OrderID,
			"order_number": req.OrderNumber,
		}).Error("failed to load order")
		return nil, status.Error(codes.Internal, "failed to load order")
	}

	return &apiv1.GetOrderResponse{Order: toAPIOrder(order)}, nil
}

// ListOrders возвращает последние заказы, новые первыми.
func (s *OrderService) ListOrders(ctx context.Context, req *apiv1.ListOrdersRequest) (*apiv1.ListOrdersResponse, error) {
	limit := defaultListOrdersLimit
	if req != nil && req.PageSize > 0 {
		limit = int(req.PageSize)
	}
	if limit > maxListOrdersLimit {
		limit = maxListOrdersLimit
	}

	orders, err := s.repo.List(ctx, limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list orders")
		return nil, status.Error(codes.Internal, "failed to list orders")
	}

	resp := &apiv1.ListOrdersResponse{Orders: make([]*apiv1.Order, 0, len(orders))}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, toAPIOrder(order))
	}
	return resp, nil
}

func (s *OrderService) placementStatus(err error) error {
	var (
		notInStock  *domain.NotInStockError
		unavailable *domain.UnavailableError
	)

	switch {
	case errors.As(err, &notInStock):
		return notInStockStatus(notInStock)
	case errors.As(err, &unavailable):
		return unavailableStatus(unavailable)
	case errors.Is(err, domain.ErrInvalidOrder):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrOrderPersistence):
		s.logger.WithError(err).Error("failed to persist order")
		return status.Error(codes.Internal, "failed to persist order")
	default:
		s.logger.WithError(err).Error("order placement failed")
		return status.Error(codes.Internal, "order placement failed")
	}
}

func toAPIOrder(order domain.Order) *apiv1.Order {
	lines := make([]apiv1.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, apiv1.OrderLine{
			SKU:        line.SKU,
			PriceMinor: line.PriceMinor,
			Quantity:   line.Qty,
		})
	}
	return &apiv1.Order{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Lines:       lines,
		CreatedUnix: order.CreatedAt.Unix(),
	}
}
