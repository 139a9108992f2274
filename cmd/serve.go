package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/controller"
	crowdfundinggrpc "github.com/vibast-solutions/ms-go-crowdfunding/app/grpc"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/types"
	"github.com/vibast-solutions/ms-go-crowdfunding/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) server for donations, gateway callbacks and webhooks, and the internal gRPC admin server.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApp()
	defer cleanup()
	cfg := app.cfg

	paymentController := controller.NewPaymentController(app.payments, app.donations, app.campaigns)
	callbackController := controller.NewCallbackController(app.callbacks, app.stripeWebhook, cfg.Redirects, cfg.App.PublicBaseURL)
	adminServer := crowdfundinggrpc.NewServer(app.payments, app.campaigns)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(paymentController, callbackController, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, adminServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

// setupHTTPServer splits routes in two: payer and gateway facing routes are
// public, everything else requires a request id and internal access.
func setupHTTPServer(
	paymentController *controller.PaymentController,
	callbackController *controller.CallbackController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	e.GET("/health", paymentController.Health)

	callbackBodyLimit := echomiddleware.BodyLimit(controller.CallbackBodyLimit)
	e.GET("/payment/callback/:paymentId", callbackController.HandleCallback, callbackBodyLimit)
	e.POST("/payment/callback/:paymentId", callbackController.HandleCallback, callbackBodyLimit)
	e.POST("/payment/webhook/stripe", callbackController.HandleStripeWebhook, callbackBodyLimit)
	e.GET("/fake-gateway/checkout", callbackController.FakeCheckout)

	internal := []echo.MiddlewareFunc{
		echomiddleware.CORS(),
		requireRequestID(),
		internalAuthMiddleware.RequireInternalAccess(appServiceName),
	}

	e.POST("/donations", paymentController.StartDonation, internal...)

	payments := e.Group("/payments", internal...)
	payments.GET("/:id", paymentController.GetPayment)
	payments.POST("/:id/process", paymentController.ProcessPayment)
	payments.POST("/:id/refund", paymentController.RefundPayment)
	payments.POST("/:id/verify", paymentController.VerifyPayment)

	e.POST("/campaigns/:id/recalculate", paymentController.RecalculateCampaign, internal...)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	adminServer *crowdfundinggrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			crowdfundinggrpc.RecoveryInterceptor(),
			crowdfundinggrpc.RequestIDInterceptor(),
			crowdfundinggrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	crowdfundinggrpc.RegisterPaymentAdminServer(grpcSrv, adminServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(crowdfundinggrpc.PaymentAdminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthServer)

	return grpcSrv, lis
}
