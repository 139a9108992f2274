package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Gateways          GatewaysConfig
	Redirects         RedirectsConfig
	Queue             QueueConfig
	Jobs              JobsConfig
	Mail              MailConfig
	Telemetry         TelemetryConfig
}

type AppConfig struct {
	ServiceName   string
	APIKey        string
	PublicBaseURL string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type GatewaysConfig struct {
	Timeout         time.Duration
	DefaultCurrency string
	FakeCheckoutURL string
	Stripe          StripeConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type RedirectsConfig struct {
	SuccessURL string
	FailureURL string
	PendingURL string
}

type QueueConfig struct {
	Name         string
	Consumer     string
	Concurrency  int
	MaxAttempts  int
	Backoff      time.Duration
	PollTimeout  time.Duration
	PromoteEvery time.Duration
}

type JobsConfig struct {
	StaleTimeout          time.Duration
	ExpirePendingInterval time.Duration
	BatchSize             int32
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type TelemetryConfig struct {
	OTLPEndpoint   string
	ExportInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}

	return &Config{
		App: AppConfig{
			ServiceName:   getEnv("APP_SERVICE_NAME", "crowdfunding-service"),
			APIKey:        getEnv("APP_API_KEY", ""),
			PublicBaseURL: getEnv("APP_PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Gateways: GatewaysConfig{
			Timeout:         getSecondsEnv("PAYMENTS_GATEWAY_TIMEOUT_SECONDS", 30*time.Second),
			DefaultCurrency: getEnv("PAYMENTS_DEFAULT_CURRENCY", "usd"),
			FakeCheckoutURL: getEnv("FAKE_GATEWAY_CHECKOUT_URL", "http://localhost:8080/fake-gateway/checkout"),
			Stripe: StripeConfig{
				SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
				WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			},
		},
		Redirects: RedirectsConfig{
			SuccessURL: getEnv("DONATION_SUCCESS_URL", "http://localhost:3000/donations/success"),
			FailureURL: getEnv("DONATION_FAILURE_URL", "http://localhost:3000/donations/failed"),
			PendingURL: getEnv("DONATION_PENDING_URL", "http://localhost:3000/donations/pending"),
		},
		Queue: QueueConfig{
			Name:         getEnv("QUEUE_NAME", "crowdfunding"),
			Consumer:     getEnv("QUEUE_CONSUMER", hostname),
			Concurrency:  getIntEnv("QUEUE_CONCURRENCY", 4),
			MaxAttempts:  getIntEnv("QUEUE_MAX_ATTEMPTS", 3),
			Backoff:      getSecondsEnv("QUEUE_BACKOFF_SECONDS", 5*time.Second),
			PollTimeout:  getSecondsEnv("QUEUE_POLL_TIMEOUT_SECONDS", 5*time.Second),
			PromoteEvery: getSecondsEnv("QUEUE_PROMOTE_INTERVAL_SECONDS", time.Second),
		},
		Jobs: JobsConfig{
			StaleTimeout:          getMinutesEnv("PAYMENTS_STALE_TIMEOUT_MINUTES", 60*time.Minute),
			ExpirePendingInterval: getMinutesEnv("PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
			BatchSize:             int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Mail: MailConfig{
			Host:     getEnv("MAIL_HOST", ""),
			Port:     getIntEnv("MAIL_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "no-reply@crowdfunding.local"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ExportInterval: getSecondsEnv("OTEL_METRIC_EXPORT_INTERVAL_SECONDS", 30*time.Second),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
