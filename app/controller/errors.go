package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/types"
)

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

// writeServiceError maps domain errors to HTTP codes. Anything unknown is
// logged and answered with a generic 500.
func writeServiceError(ctx echo.Context, logger logrus.FieldLogger, operation string, err error) error {
	var transitionErr *entity.TransitionError
	var refundErr *gateway.RefundError
	var processingErr *gateway.ProcessingError
	var verificationErr *gateway.VerificationError

	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidAmount):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound):
		return writeError(ctx, http.StatusNotFound, "payment not found")
	case errors.Is(err, service.ErrCampaignNotFound):
		return writeError(ctx, http.StatusNotFound, "campaign not found")
	case errors.Is(err, service.ErrDonationNotFound):
		return writeError(ctx, http.StatusNotFound, "donation not found")
	case errors.Is(err, service.ErrCampaignNotActive):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.As(err, &transitionErr), errors.Is(err, gateway.ErrPaymentNotPending), errors.Is(err, entity.ErrTransactionIDRequired):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrUnsupportedPaymentMethod):
		return writeError(ctx, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &refundErr):
		return writeError(ctx, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &processingErr):
		return writeError(ctx, http.StatusUnprocessableEntity, "payment declined: "+processingErr.Code)
	case errors.As(err, &verificationErr):
		if verificationErr.Err == nil {
			return writeError(ctx, http.StatusConflict, err.Error())
		}
		logger.WithError(err).Warn(operation + "_gateway_failed")
		return writeError(ctx, http.StatusBadGateway, "gateway lookup failed")
	default:
		logger.WithError(err).Error(operation + "_failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
