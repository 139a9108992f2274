package cmd

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/callback"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/notification"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/repository"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/telemetry"
	"github.com/vibast-solutions/ms-go-crowdfunding/config"
)

type application struct {
	cfg     *config.Config
	queue   *queue.RedisQueue
	metrics *telemetry.Metrics

	donations     *service.DonationService
	payments      *service.PaymentService
	callbacks     *service.PaymentCallbackService
	campaigns     *service.CampaignService
	notifications *service.NotificationService

	stripeWebhook *callback.StripeHandler
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	factory.ConfigureLogging(cfg.Log.Level, cfg.Log.Format)
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustOpenRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}
	return client
}

// mustCreateApp wires repositories, gateways and services. The returned
// cleanup closes every connection it opened.
func mustCreateApp() (*application, func()) {
	cfg := mustLoadConfig()

	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.App.ServiceName, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ExportInterval)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize telemetry")
	}
	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create metrics")
	}

	db := mustOpenDatabase(cfg)
	redisClient := mustOpenRedis(cfg)

	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)
	callbackRepo := repository.NewPaymentCallbackRepository(db)
	donationRepo := repository.NewDonationRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)

	jobs := queue.NewRedisQueue(redisClient, cfg.Queue.Name, cfg.Queue.Consumer, cfg.Queue.MaxAttempts)

	lifecycleCfg := gateway.LifecycleConfig{
		CallbackBaseURL: cfg.App.PublicBaseURL,
		Timeout:         cfg.Gateways.Timeout,
		Metrics:         metrics,
	}
	gateways := gateway.NewRegistry(gateway.NewFakeGateway(paymentRepo, eventRepo, lifecycleCfg, cfg.Gateways.FakeCheckoutURL))
	handlers := callback.NewRegistry(callback.NewFakeHandler())

	stripeWebhook := callback.NewStripeHandler(cfg.Gateways.Stripe.WebhookSecret, nil)
	if strings.TrimSpace(cfg.Gateways.Stripe.SecretKey) != "" {
		stripeGateway := gateway.NewStripeGateway(paymentRepo, eventRepo, lifecycleCfg, cfg.Gateways.Stripe.SecretKey)
		stripeWebhook = callback.NewStripeHandler(cfg.Gateways.Stripe.WebhookSecret, stripeGateway)
		gateways.Register(stripeGateway)
		handlers.Register(stripeWebhook)
	} else {
		logrus.Info("Stripe secret key not set, stripe gateway disabled")
	}

	app := &application{
		cfg:           cfg,
		queue:         jobs,
		metrics:       metrics,
		donations:     service.NewDonationService(campaignRepo, donationRepo, paymentRepo, gateways, jobs, cfg.Gateways.DefaultCurrency),
		payments:      service.NewPaymentService(paymentRepo, donationRepo, gateways, jobs, cfg.Jobs),
		callbacks:     service.NewPaymentCallbackService(paymentRepo, callbackRepo, donationRepo, gateways, handlers, jobs, metrics),
		campaigns:     service.NewCampaignService(campaignRepo, jobs, metrics),
		notifications: service.NewNotificationService(paymentRepo, donationRepo, campaignRepo, newNotifier(cfg)),
		stripeWebhook: stripeWebhook,
	}

	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis")
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
		shutdownTelemetry(context.Background())
	}

	return app, cleanup
}

func newNotifier(cfg *config.Config) notification.Notifier {
	if strings.TrimSpace(cfg.Mail.Host) == "" {
		logrus.Info("Mail host not set, notifications are logged only")
		return notification.NewLogNotifier()
	}

	notifier, err := notification.NewMailNotifier(notification.MailConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create mail notifier")
	}
	return notifier
}
