package grpcsvc

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

// validationStatus возвращает InvalidArgument со списком нарушений в деталях BadRequest.
func validationStatus(err error, violations []domain.Violation) error {
	st := status.New(codes.InvalidArgument, err.Error())

	details := &errdetails.BadRequest{
		FieldViolations: make([]*errdetails.BadRequest_FieldViolation, 0, len(violations)),
	}
	for _, v := range violations {
		details.FieldViolations = append(details.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field,
			Description: v.Message,
		})
	}

	withDetails, detailErr := st.WithDetails(details)
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// ViolationsFromStatus извлекает нарушения из деталей gRPC-статуса.
func ViolationsFromStatus(err error) []domain.Violation {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out []domain.Violation
	for _, detail := range st.Details() {
		badRequest, ok := detail.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, fv := range badRequest.GetFieldViolations() {
			out = append(out, domain.Violation{Field: fv.GetField(), Message: fv.GetDescription()})
		}
	}
	return out
}
