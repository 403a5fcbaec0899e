package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Clerk     ClerkConfig
	Strapi    StrapiConfig
	Sendgrid  SendgridConfig
	Signup    SignupConfig
	Checkout  CheckoutConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Download  DownloadConfig
	Admin     AdminConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUGARCRAFT_APP_ENV" required:"true"`
	Port         string `envconfig:"SUGARCRAFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUGARCRAFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUGARCRAFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"SUGARCRAFT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUGARCRAFT_REDIS_ADDR"`
	Password     string        `envconfig:"SUGARCRAFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUGARCRAFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUGARCRAFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUGARCRAFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUGARCRAFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUGARCRAFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUGARCRAFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SUGARCRAFT_STRIPE_API_KEY"`
	Secret string `envconfig:"SUGARCRAFT_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"SUGARCRAFT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ClerkConfig struct {
	SecretKey string `envconfig:"SUGARCRAFT_CLERK_SECRET_KEY" required:"true"`
}

type StrapiConfig struct {
	BaseURL  string        `envconfig:"SUGARCRAFT_STRAPI_BASE_URL" required:"true"`
	APIToken string        `envconfig:"SUGARCRAFT_STRAPI_API_TOKEN"`
	Timeout  time.Duration `envconfig:"SUGARCRAFT_STRAPI_TIMEOUT" default:"10s"`
}

type SendgridConfig struct {
	APIKey   string `envconfig:"SUGARCRAFT_SENDGRID_API_KEY"`
	FromName string `envconfig:"SUGARCRAFT_SENDGRID_FROM_NAME" default:"Sugarcraft Academy"`
	From     string `envconfig:"SUGARCRAFT_SENDGRID_FROM_EMAIL"`
}

type SignupConfig struct {
	// PendingTTL bounds how long a guest checkout may sit unpaid before the
	// stashed signup payload expires.
	PendingTTL time.Duration `envconfig:"SUGARCRAFT_SIGNUP_PENDING_TTL" default:"24h"`
	// MetadataKey is the hex-encoded AES-256 key used to decrypt passwords
	// carried in legacy checkout-session metadata.
	MetadataKey string `envconfig:"SUGARCRAFT_SIGNUP_METADATA_KEY"`
}

type CheckoutConfig struct {
	SuccessURL             string `envconfig:"SUGARCRAFT_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL              string `envconfig:"SUGARCRAFT_CHECKOUT_CANCEL_URL" required:"true"`
	SubscriptionSuccessURL string `envconfig:"SUGARCRAFT_SUBSCRIPTION_SUCCESS_URL" required:"true"`
	SubscriptionCancelURL  string `envconfig:"SUGARCRAFT_SUBSCRIPTION_CANCEL_URL" required:"true"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SUGARCRAFT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type RateLimitConfig struct {
	GuestWindow     time.Duration `envconfig:"SUGARCRAFT_RATE_LIMIT_GUEST_WINDOW" default:"5m"`
	GuestIPLimit    int           `envconfig:"SUGARCRAFT_RATE_LIMIT_GUEST_IP_LIMIT" default:"20"`
	GuestEmailLimit int           `envconfig:"SUGARCRAFT_RATE_LIMIT_GUEST_EMAIL_LIMIT" default:"3"`
}

type DownloadConfig struct {
	EbookSlug         string `envconfig:"SUGARCRAFT_DOWNLOAD_EBOOK_SLUG" default:"cake-decorating-ebook"`
	LocalFallbackPath string `envconfig:"SUGARCRAFT_DOWNLOAD_LOCAL_FALLBACK"`
}

type AdminConfig struct {
	Key string `envconfig:"SUGARCRAFT_ADMIN_KEY"`
}
