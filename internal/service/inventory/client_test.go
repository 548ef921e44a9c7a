package inventory

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const bufSize = 1024 * 1024

type fakeInventoryServer struct {
	apiv1.UnimplementedInventoryServiceServer
	backend domain.InventoryQueryService
	err     error
}

func (s *fakeInventoryServer) CheckStock(ctx context.Context, req *apiv1.CheckStockRequest) (*apiv1.CheckStockResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	query := domain.StockCheckRequest{}
	for _, item := range req.Items {
		query.Items = append(query.Items, domain.StockQuery{SKU: item.SKU, RequiredQty: item.RequiredQuantity})
	}
	result, err := s.backend.CheckStock(ctx, query)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return ToAPI(result), nil
}

func startInventoryServer(t *testing.T, srv apiv1.InventoryServiceServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	apiv1.RegisterInventoryServiceServer(server, srv)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestClient_CheckStock(t *testing.T) {
	conn := startInventoryServer(t, &fakeInventoryServer{backend: NewMockService(map[string]int32{"A": 10, "B": 1})})
	client := NewClient(conn)

	req := domain.NewStockCheckRequest([]domain.OrderLine{{SKU: "A", Qty: 5}, {SKU: "B", Qty: 2}})
	result, err := client.CheckStock(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := result.Conforms(req); err != nil {
		t.Fatalf("result does not conform: %v", err)
	}
	if !result.Items[0].InStock || result.Items[1].InStock {
		t.Fatalf("unexpected result %+v", result.Items)
	}
}

func TestClient_CheckStockTransportError(t *testing.T) {
	conn := startInventoryServer(t, &fakeInventoryServer{err: status.Error(codes.Unavailable, "down")})
	client := NewClient(conn)

	_, err := client.CheckStock(context.Background(), domain.StockCheckRequest{Items: []domain.StockQuery{{SKU: "A", RequiredQty: 1}}})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected wrapped Unavailable status, got %v", err)
	}
}
