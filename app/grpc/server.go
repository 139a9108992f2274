package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/mapper"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type paymentService interface {
	GetPayment(ctx context.Context, id string) (*entity.Payment, error)
	RefundPayment(ctx context.Context, id string, input *gateway.RefundInput) (*entity.Payment, error)
	VerifyPayment(ctx context.Context, id string) (*entity.Payment, error)
}

type campaignService interface {
	RequestRecalculation(ctx context.Context, campaignID uint64) error
}

type Server struct {
	payments  paymentService
	campaigns campaignService
}

func NewServer(payments paymentService, campaigns campaignService) *Server {
	return &Server{payments: payments, campaigns: campaigns}
}

func (s *Server) GetPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := paymentID(req)
	if err != nil {
		return nil, err
	}

	item, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, "get_payment", err)
	}
	return paymentEnvelope(item)
}

func (s *Server) RefundPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := paymentID(req)
	if err != nil {
		return nil, err
	}

	input := &gateway.RefundInput{Reason: strings.TrimSpace(stringField(req, "reason"))}
	if raw := strings.TrimSpace(stringField(req, "amount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil || !amount.IsPositive() {
			return nil, status.Error(codes.InvalidArgument, "amount must be a positive decimal")
		}
		input.Amount = &amount
	}

	item, err := s.payments.RefundPayment(ctx, id, input)
	if err != nil {
		return nil, toStatus(ctx, "refund_payment", err)
	}
	return paymentEnvelope(item)
}

func (s *Server) VerifyPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := paymentID(req)
	if err != nil {
		return nil, err
	}

	item, err := s.payments.VerifyPayment(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, "verify_payment", err)
	}
	return paymentEnvelope(item)
}

func (s *Server) RecalculateCampaign(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, ok := req.GetFields()["campaign_id"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "campaign_id is required")
	}
	number := raw.GetNumberValue()
	if number < 1 || number != float64(uint64(number)) {
		return nil, status.Error(codes.InvalidArgument, "campaign_id must be a positive integer")
	}

	if err := s.campaigns.RequestRecalculation(ctx, uint64(number)); err != nil {
		return nil, toStatus(ctx, "recalculate_campaign", err)
	}
	return structpb.NewStruct(map[string]any{"message": "Recalculation queued"})
}

func paymentID(req *structpb.Struct) (string, error) {
	id := strings.TrimSpace(stringField(req, "id"))
	if _, err := uuid.Parse(id); err != nil {
		return "", status.Error(codes.InvalidArgument, "id must be a uuid")
	}
	return id, nil
}

func stringField(req *structpb.Struct, key string) string {
	if v, ok := req.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func paymentEnvelope(item *entity.Payment) (*structpb.Struct, error) {
	payment, err := mapper.PaymentToStruct(item)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"payment": structpb.NewStructValue(payment),
	}}, nil
}

func toStatus(ctx context.Context, operation string, err error) error {
	var transitionErr *entity.TransitionError
	var refundErr *gateway.RefundError
	var verificationErr *gateway.VerificationError

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound):
		return status.Error(codes.NotFound, "payment not found")
	case errors.Is(err, service.ErrCampaignNotFound):
		return status.Error(codes.NotFound, "campaign not found")
	case errors.As(err, &refundErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &transitionErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &verificationErr):
		if verificationErr.Err == nil {
			return status.Error(codes.FailedPrecondition, err.Error())
		}
		loggerWithContext(ctx).WithError(err).Warn(operation + "_gateway_failed")
		return status.Error(codes.Unavailable, "gateway lookup failed")
	case errors.Is(err, gateway.ErrUnsupportedPaymentMethod):
		return status.Error(codes.Unimplemented, err.Error())
	default:
		loggerWithContext(ctx).WithError(err).Error(operation + "_failed")
		return status.Error(codes.Internal, "internal server error")
	}
}
