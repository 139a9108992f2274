package types

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type StartDonationRequest struct {
	CampaignID    uint64 `json:"campaign_id" validate:"required"`
	UserID        uint64 `json:"user_id" validate:"required"`
	Amount        string `json:"amount" validate:"required,money"`
	Currency      string `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=fake stripe"`
}

func NewStartDonationRequestFromContext(ctx echo.Context) (*StartDonationRequest, error) {
	var body StartDonationRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Amount = strings.TrimSpace(body.Amount)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.PaymentMethod = strings.ToLower(strings.TrimSpace(body.PaymentMethod))

	return &body, nil
}

func (r *StartDonationRequest) Validate() error {
	return validateStruct(r)
}

// AmountValue is only meaningful after Validate succeeded.
func (r *StartDonationRequest) AmountValue() decimal.Decimal {
	amount, _ := decimal.NewFromString(r.Amount)
	return amount
}

type PaymentIDRequest struct {
	ID string `validate:"required,uuid"`
}

func NewPaymentIDRequestFromContext(ctx echo.Context) *PaymentIDRequest {
	return &PaymentIDRequest{ID: strings.TrimSpace(ctx.Param("id"))}
}

func (r *PaymentIDRequest) Validate() error {
	return validateStruct(r)
}

type ProcessPaymentRequest struct {
	ID              string `json:"-" validate:"required,uuid"`
	TransactionID   string `json:"transaction_id" validate:"max=255"`
	SimulateFailure bool   `json:"simulate_failure"`
	ErrorMessage    string `json:"error_message" validate:"max=1024"`
	ErrorCode       string `json:"error_code" validate:"max=64"`
}

func NewProcessPaymentRequestFromContext(ctx echo.Context) (*ProcessPaymentRequest, error) {
	var body ProcessPaymentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.ID = strings.TrimSpace(ctx.Param("id"))
	body.TransactionID = strings.TrimSpace(body.TransactionID)
	body.ErrorMessage = strings.TrimSpace(body.ErrorMessage)
	body.ErrorCode = strings.TrimSpace(body.ErrorCode)

	return &body, nil
}

func (r *ProcessPaymentRequest) Validate() error {
	return validateStruct(r)
}

type RefundPaymentRequest struct {
	ID     string `json:"-" validate:"required,uuid"`
	Amount string `json:"amount" validate:"omitempty,money"`
	Reason string `json:"reason" validate:"max=255"`
}

func NewRefundPaymentRequestFromContext(ctx echo.Context) (*RefundPaymentRequest, error) {
	var body RefundPaymentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.ID = strings.TrimSpace(ctx.Param("id"))
	body.Amount = strings.TrimSpace(body.Amount)
	body.Reason = strings.TrimSpace(body.Reason)

	return &body, nil
}

func (r *RefundPaymentRequest) Validate() error {
	return validateStruct(r)
}

// AmountValue returns nil for a full refund.
func (r *RefundPaymentRequest) AmountValue() *decimal.Decimal {
	if r.Amount == "" {
		return nil
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil
	}
	return &amount
}

type RecalculateCampaignRequest struct {
	CampaignID uint64 `validate:"required"`
}

func NewRecalculateCampaignRequestFromContext(ctx echo.Context) (*RecalculateCampaignRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &RecalculateCampaignRequest{CampaignID: id}, nil
}

func (r *RecalculateCampaignRequest) Validate() error {
	return validateStruct(r)
}
