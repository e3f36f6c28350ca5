// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server       ServerConfig
	Logs         LogConfig      `envPrefix:"LOG_"`
	DB           PostgresConfig `envPrefix:"DATABASE_"`
	Redis        RedisConfig    `envPrefix:"REDIS_"`
	Auth         AuthConfig     `envPrefix:"AUTH_"`
	Usage        UsageConfig
	Subscription SubscriptionConfig
	Stripe       StripeConfig `envPrefix:"STRIPE_"`
	LLM          LLMConfig    `envPrefix:"OPENAI_"`
	Extract      ExtractConfig
	SMTP         SMTPConfig      `envPrefix:"SMTP_"`
	Study        StudyConfig     `envPrefix:"STUDY_"`
	Reconcile    ReconcileConfig `envPrefix:"RECONCILE_"`
}

type ServerConfig struct {
	Port        string   `env:"PORT" envDefault:"5000"`
	ClientURL   string   `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

type LogConfig struct {
	Style string `env:"STYLE" envDefault:"console"`
	Level string `env:"LEVEL" envDefault:"info"`
}

type PostgresConfig struct {
	// URL is empty for the in-memory store used in local development.
	URL string `env:"URL"`
}

type RedisConfig struct {
	URL string `env:"URL"`
}

type AuthConfig struct {
	JWTSecret    string        `env:"JWT_SECRET,unset"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	JWKSURL      string        `env:"JWKS_URL"`
	Issuer       string        `env:"ISSUER"`
	Audience     string        `env:"AUDIENCE"`
}

type UsageConfig struct {
	FreeLimit int `env:"FREE_USAGE_LIMIT" envDefault:"3"`
}

type SubscriptionConfig struct {
	Days            int     `env:"SUBSCRIPTION_DAYS" envDefault:"30"`
	PremiumPrice    float64 `env:"PLAN_PREMIUM_PRICE" envDefault:"10"`
	PremiumProPrice float64 `env:"PLAN_PREMIUM_PRO_PRICE" envDefault:"20"`
	Currency        string  `env:"PLAN_CURRENCY" envDefault:"usd"`
}

// Period is the length of one subscription grant.
func (s SubscriptionConfig) Period() time.Duration {
	return time.Duration(s.Days) * 24 * time.Hour
}

type StripeConfig struct {
	SecretKey     string `env:"SECRET_KEY,unset"`
	WebhookSecret string `env:"WEBHOOK_SECRET,unset"`
}

type LLMConfig struct {
	APIKey  string        `env:"API_KEY,unset"`
	Model   string        `env:"MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string        `env:"BASE_URL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

type ExtractConfig struct {
	PythonBin  string        `env:"PYTHON_BIN" envDefault:"python3"`
	ScriptsDir string        `env:"SCRIPTS_DIR" envDefault:"scripts"`
	Timeout    time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"10m"`
	MaxUpload  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD,unset"`
	Sender   string `env:"SENDER" envDefault:"no-reply@uniprofs.ai"`
}

type StudyConfig struct {
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	RequiredPlan string        `env:"REQUIRED_PLAN" envDefault:"Premium Pro"`
}

type ReconcileConfig struct {
	QueueURL string `env:"QUEUE_URL"`
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Usage.FreeLimit < 0 {
		return nil, fmt.Errorf("FREE_USAGE_LIMIT must be >= 0, got %d", cfg.Usage.FreeLimit)
	}
	if cfg.Subscription.Days <= 0 {
		return nil, fmt.Errorf("SUBSCRIPTION_DAYS must be > 0, got %d", cfg.Subscription.Days)
	}
	return cfg, nil
}
