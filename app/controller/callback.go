package controller

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/callback"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/types"
	"github.com/vibast-solutions/ms-go-crowdfunding/config"
)

// CallbackBodyLimit caps gateway callback bodies, in echo's BodyLimit notation.
const CallbackBodyLimit = "1M"

const maxCallbackBodyBytes = 1 << 20

var errCallbackBodyTooLarge = errors.New("callback body too large")

// WebhookResolver finds the payment a signed gateway webhook refers to.
type WebhookResolver interface {
	WebhookPaymentID(req *callback.Request) (string, error)
}

type CallbackController struct {
	callbacks     *service.PaymentCallbackService
	stripeWebhook WebhookResolver
	redirects     config.RedirectsConfig
	publicBaseURL string
	logger        logrus.FieldLogger
}

func NewCallbackController(
	callbacks *service.PaymentCallbackService,
	stripeWebhook WebhookResolver,
	redirects config.RedirectsConfig,
	publicBaseURL string,
) *CallbackController {
	return &CallbackController{
		callbacks:     callbacks,
		stripeWebhook: stripeWebhook,
		redirects:     redirects,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        factory.NewModuleLogger("callback-controller"),
	}
}

// HandleCallback receives the payer's browser coming back from a gateway and
// redirects it to the donation outcome page. The payer is always redirected,
// whatever happened while processing.
func (c *CallbackController) HandleCallback(ctx echo.Context) error {
	paymentID := strings.TrimSpace(ctx.Param("paymentId"))

	req, err := newCallbackRequest(ctx)
	if errors.Is(err, errCallbackBodyTooLarge) {
		factory.LoggerWithContext(c.logger, ctx).WithField("payment_id", paymentID).Warn("payment_callback_body_too_large")
		return writeError(ctx, http.StatusRequestEntityTooLarge, "request body too large")
	}
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("payment_callback_body_unreadable")
		return ctx.Redirect(http.StatusFound, c.redirectURL(callback.RejectedResult(paymentID)))
	}

	result, _ := c.callbacks.HandleCallback(ctx.Request().Context(), paymentID, req)
	return ctx.Redirect(http.StatusFound, c.redirectURL(result))
}

// HandleStripeWebhook receives signed server-to-server notifications. The
// status code tells Stripe whether to deliver the event again.
func (c *CallbackController) HandleStripeWebhook(ctx echo.Context) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	req, err := newCallbackRequest(ctx)
	if errors.Is(err, errCallbackBodyTooLarge) {
		logger.Warn("stripe_webhook_body_too_large")
		return writeError(ctx, http.StatusRequestEntityTooLarge, "request body too large")
	}
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if req.Header(callback.StripeSignatureHeader) == "" {
		return writeError(ctx, http.StatusBadRequest, "missing signature")
	}

	paymentID, err := c.stripeWebhook.WebhookPaymentID(req)
	if err != nil {
		logger.WithError(err).Warn("stripe_webhook_rejected")
		return writeError(ctx, http.StatusBadRequest, "invalid webhook")
	}
	if paymentID == "" {
		// Events for sessions this service did not create.
		logger.Info("stripe_webhook_ignored")
		return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "ignored"})
	}

	if _, err := c.callbacks.HandleCallback(ctx.Request().Context(), paymentID, req); err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return writeError(ctx, http.StatusNotFound, "payment not found")
		case service.IsCallbackError(err, service.CallbackInvalid):
			return writeError(ctx, http.StatusBadRequest, "invalid callback")
		case service.IsCallbackError(err, service.CallbackNoHandler):
			return writeError(ctx, http.StatusUnprocessableEntity, "no callback handler")
		default:
			return writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "ok"})
}

// FakeCheckout stands in for a hosted checkout page in development. The
// outcome query parameter picks what the fake gateway reports back.
func (c *CallbackController) FakeCheckout(ctx echo.Context) error {
	paymentID := strings.TrimSpace(ctx.QueryParam("payment_id"))
	sessionID := strings.TrimSpace(ctx.QueryParam("session_id"))
	if _, err := uuid.Parse(paymentID); err != nil || sessionID == "" {
		return writeError(ctx, http.StatusBadRequest, "payment_id and session_id are required")
	}

	query := url.Values{}
	query.Set("session_id", sessionID)

	switch strings.ToLower(strings.TrimSpace(ctx.QueryParam("outcome"))) {
	case "", "success":
		query.Set("status", "success")
		query.Set("transaction_id", "FAKE-TXN-"+uuid.NewString())
	case "pending":
		query.Set("status", "pending")
	default:
		query.Set("status", "failed")
		query.Set("error_message", "payment declined by fake gateway")
	}

	target := c.publicBaseURL + "/payment/callback/" + url.PathEscape(paymentID) + "?" + query.Encode()
	return ctx.Redirect(http.StatusFound, target)
}

func (c *CallbackController) redirectURL(result *callback.Result) string {
	base := c.redirects.FailureURL
	switch result.RedirectRoute {
	case callback.RouteSuccess:
		base = c.redirects.SuccessURL
	case callback.RoutePending:
		base = c.redirects.PendingURL
	}

	target, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := target.Query()
	for key, value := range result.RedirectParams {
		query.Set(key, value)
	}
	target.RawQuery = query.Encode()
	return target.String()
}

// newCallbackRequest merges query parameters with a form encoded body. The raw
// body is kept whole for signature checks, so an oversized body is rejected
// rather than cut.
func newCallbackRequest(ctx echo.Context) (*callback.Request, error) {
	httpReq := ctx.Request()

	var body []byte
	if httpReq.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(httpReq.Body, maxCallbackBodyBytes+1))
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return nil, errCallbackBodyTooLarge
		}
		if err != nil {
			return nil, err
		}
		if len(body) > maxCallbackBodyBytes {
			return nil, errCallbackBodyTooLarge
		}
	}

	params := httpReq.URL.Query()
	if strings.HasPrefix(httpReq.Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) && len(body) > 0 {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		for key, values := range form {
			if _, exists := params[key]; !exists {
				params[key] = values
			}
		}
	}

	return callback.NewRequest(httpReq.Method, params, httpReq.Header.Clone(), body), nil
}
