package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/mapper"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/types"
)

type PaymentController struct {
	paymentService  *service.PaymentService
	donationService *service.DonationService
	campaignService *service.CampaignService
	logger          logrus.FieldLogger
}

func NewPaymentController(
	paymentService *service.PaymentService,
	donationService *service.DonationService,
	campaignService *service.CampaignService,
) *PaymentController {
	return &PaymentController{
		paymentService:  paymentService,
		donationService: donationService,
		campaignService: campaignService,
		logger:          factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) StartDonation(ctx echo.Context) error {
	req, err := types.NewStartDonationRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	started, err := c.donationService.StartDonation(ctx.Request().Context(), service.StartDonationInput{
		CampaignID:    req.CampaignID,
		UserID:        req.UserID,
		Amount:        req.AmountValue(),
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), "start_donation", err)
	}

	return ctx.JSON(http.StatusCreated, &types.StartDonationResponse{
		DonationID:  started.Donation.ID,
		RedirectURL: started.RedirectURL,
		Payment:     mapper.PaymentToResponse(started.Payment),
	})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.ID)
	if err != nil {
		return writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), "get_payment", err)
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) ProcessPayment(ctx echo.Context) error {
	req, err := types.NewProcessPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.ProcessPayment(ctx.Request().Context(), req.ID, &gateway.ProcessInput{
		TransactionID:   req.TransactionID,
		SimulateFailure: req.SimulateFailure,
		ErrorMessage:    req.ErrorMessage,
		ErrorCode:       req.ErrorCode,
	})
	if err != nil {
		return writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), "process_payment", err)
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) RefundPayment(ctx echo.Context) error {
	req, err := types.NewRefundPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.RefundPayment(ctx.Request().Context(), req.ID, &gateway.RefundInput{
		Amount: req.AmountValue(),
		Reason: req.Reason,
	})
	if err != nil {
		return writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), "refund_payment", err)
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.VerifyPayment(ctx.Request().Context(), req.ID)
	if err != nil {
		return writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), "verify_payment", err)
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) RecalculateCampaign(ctx echo.Context) error {
	req, err := types.NewRecalculateCampaignRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid campaign id")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.campaignService.RequestRecalculation(ctx.Request().Context(), req.CampaignID); err != nil {
		return writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), "recalculate_campaign", err)
	}

	return ctx.JSON(http.StatusAccepted, &types.MessageResponse{Message: "Recalculation queued"})
}
