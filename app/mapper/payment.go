package mapper

import (
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/types"
	"google.golang.org/protobuf/types/known/structpb"
)

func PaymentToResponse(item *entity.Payment) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentResponse{
		ID:            item.ID,
		DonationID:    item.DonationID,
		PaymentMethod: string(item.PaymentMethod),
		Status:        string(item.Status),
		Amount:        item.Amount.StringFixed(2),
		Currency:      item.Currency,
		TransactionID: derefString(item.TransactionID),
		ErrorMessage:  derefString(item.ErrorMessage),
		ErrorCode:     derefString(item.ErrorCode),
		RedirectURL:   derefString(item.RedirectURL),
		Metadata:      item.Metadata,
		InitiatedAt:   item.InitiatedAt,
		PreparedAt:    item.PreparedAt,
		CompletedAt:   item.CompletedAt,
		FailedAt:      item.FailedAt,
		RefundedAt:    item.RefundedAt,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

// PaymentToStruct is the gRPC admin view of a payment.
func PaymentToStruct(item *entity.Payment) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":             item.ID,
		"donation_id":    float64(item.DonationID),
		"payment_method": string(item.PaymentMethod),
		"status":         string(item.Status),
		"amount":         item.Amount.StringFixed(2),
		"currency":       item.Currency,
	}
	if v := derefString(item.TransactionID); v != "" {
		fields["transaction_id"] = v
	}
	if v := derefString(item.ErrorCode); v != "" {
		fields["error_code"] = v
	}
	if v := derefString(item.ErrorMessage); v != "" {
		fields["error_message"] = v
	}
	if len(item.Metadata) > 0 {
		fields["metadata"] = item.Metadata
	}
	return structpb.NewStruct(fields)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
