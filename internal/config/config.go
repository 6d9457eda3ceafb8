package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/Emperor1p/nclexkeysinternational/pkg/config"
)

const insecureJWTDefault = "change-this-to-a-secure-secret"

// Config holds all configuration for the enrollment platform.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"nclex"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"nclex_secret"`
	PostgresDB            string `env:"POSTGRES_DB" envDefault:"nclex_db"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_MINUTES" envDefault:"30"`

	// Redis holds the ephemeral enrollment flow state.
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	FlowTTLHours  int    `env:"ENROLLMENT_FLOW_TTL_HOURS" envDefault:"24"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret        string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry  string `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry string `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// Payment gateway. "mock" is only honored in development.
	PaymentGateway      string `env:"PAYMENT_GATEWAY" envDefault:"paystack"`
	PaystackSecretKey   string `env:"PAYSTACK_SECRET_KEY" envDefault:""`
	PaystackPublicKey   string `env:"PAYSTACK_PUBLIC_KEY" envDefault:""`
	PaystackBaseURL     string `env:"PAYSTACK_BASE_URL" envDefault:""`
	PaystackCallbackURL string `env:"PAYSTACK_CALLBACK_URL" envDefault:""`

	// Course content storage
	StorageRoot    string `env:"STORAGE_ROOT" envDefault:"./data/content"`
	StorageBaseURL string `env:"STORAGE_BASE_URL" envDefault:"http://localhost:8080"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Rate limiting on the auth, enrollment, and payment endpoints.
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"10"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// pprof is only mounted for requests from these CIDRs.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
}

// Load reads configuration from environment variables and validates the
// combinations that would be unsafe to run with.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.FlowTTLHours < 1 {
		return nil, fmt.Errorf("invalid enrollment flow TTL: %d hours", cfg.FlowTTLHours)
	}

	switch cfg.PaymentGateway {
	case "paystack", "mock":
	default:
		return nil, fmt.Errorf("unknown payment gateway: %q", cfg.PaymentGateway)
	}

	if cfg.Environment != "development" {
		if cfg.JWTSecret == insecureJWTDefault {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
		if cfg.PaymentGateway == "mock" {
			return nil, fmt.Errorf("the mock payment gateway cannot be used in %q mode", cfg.Environment)
		}
		if cfg.PaystackSecretKey == "" {
			return nil, fmt.Errorf("PAYSTACK_SECRET_KEY must be set in %q mode", cfg.Environment)
		}
	}

	return cfg, nil
}

// FlowTTL returns the retention window for an unfinished enrollment flow.
func (c *Config) FlowTTL() time.Duration {
	return time.Duration(c.FlowTTLHours) * time.Hour
}
