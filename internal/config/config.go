package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	GatewayGmail = "gmail"
	GatewaySMTP  = "smtp"
)

type Config struct {
	DatabaseDSN     string `env:"DATABASE_DSN,required=true"`
	RedisURL        string `env:"REDIS_URL,required=true"`
	EventsAMQPURL   string `env:"EVENTS_AMQP_URL"`
	TrackingBaseURL string `env:"TRACKING_BASE_URL,required=true"`

	Gateway            string        `env:"GATEWAY,default=gmail"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GmailAPIURL        string        `env:"GMAIL_API_URL,default=https://gmail.googleapis.com"`
	MailboxID          string        `env:"MAILBOX_ID,default=default"`
	GatewayTimeout     time.Duration `env:"GATEWAY_TIMEOUT,default=15s"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	RunInterval       time.Duration `env:"RUN_INTERVAL,default=0s"`
	RunnerConcurrency int           `env:"RUNNER_CONCURRENCY,default=4"`
	SendRatePerSec    int           `env:"SEND_RATE_PER_SEC,default=5"`
	SendDailyCap      int           `env:"SEND_DAILY_CAP,default=0"`
	PairLockTTL       time.Duration `env:"PAIR_LOCK_TTL,default=2m"`

	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	SentryDSN   string `env:"SENTRY_DSN"`
	Environment string `env:"ENVIRONMENT,default=development"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.TrackingBaseURL); err != nil {
		return fmt.Errorf("TRACKING_BASE_URL: %w", err)
	}

	c.Gateway = strings.ToLower(strings.TrimSpace(c.Gateway))
	switch c.Gateway {
	case GatewayGmail:
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required for the gmail gateway")
		}
	case GatewaySMTP:
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM are required for the smtp gateway")
		}
	default:
		return fmt.Errorf("GATEWAY must be %q or %q, got %q", GatewayGmail, GatewaySMTP, c.Gateway)
	}

	if c.RunInterval < 0 {
		return fmt.Errorf("RUN_INTERVAL must not be negative")
	}
	if c.RunnerConcurrency < 1 {
		return fmt.Errorf("RUNNER_CONCURRENCY must be at least 1")
	}
	if c.SendDailyCap < 0 {
		return fmt.Errorf("SEND_DAILY_CAP must not be negative")
	}
	return nil
}
