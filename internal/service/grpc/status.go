package grpcsvc

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// ViolationOutOfStock: тип нарушения в PreconditionFailure для отсутствующих позиций.
const ViolationOutOfStock = "OUT_OF_STOCK"

// notInStockStatus переводит отказ в FailedPrecondition с перечнем всех позиций, которых не хватает.
func notInStockStatus(err *domain.NotInStockError) error {
	st := status.New(codes.FailedPrecondition, err.Error())

	failure := &errdetails.PreconditionFailure{}
	for _, level := range err.Decision.Shortfalls() {
		failure.Violations = append(failure.Violations, &errdetails.PreconditionFailure_Violation{
			Type:        ViolationOutOfStock,
			Subject:     level.SKU,
			Description: fmt.Sprintf("required=%d available=%d", level.RequiredQty, level.AvailableQty),
		})
	}

	withDetails, detailErr := st.WithDetails(failure)
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// unavailableStatus отдаёт клиенту только пользовательское сообщение и подсказку о повторе.
func unavailableStatus(err *domain.UnavailableError) error {
	st := status.New(codes.Unavailable, domain.UnavailableUserMessage)
	if err.RetryAfter <= 0 {
		return st.Err()
	}

	withDetails, detailErr := st.WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(err.RetryAfter)})
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}
