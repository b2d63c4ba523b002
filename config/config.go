package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultServerAddress   = ":8080"
	defaultDatabaseDSN     = ""
	defaultLogLevel        = "info"
	defaultReminderTZ      = "UTC"
	defaultFallbackUSDRate = "0.00067"
	defaultProviderTimeout = 10 * time.Second
	defaultCartFlushDelay  = 500 * time.Millisecond
	defaultEmailFrom       = "SaveExtraPad <noreply@saveextrapad.com>"
	defaultContactInbox    = "hello@saveextrapad.com"
	defaultKafkaGroupID    = "storefront-notifier"
)

type Config struct {
	ServerAddr       string
	DatabaseDSN      string
	DatabasePassword string
	LogLevel         string

	FlutterwaveSecretKey  string
	FlutterwaveSecretHash string
	FlutterwaveBaseURL    string

	PayPalClientID string
	PayPalSecret   string
	PayPalBaseURL  string

	ResendAPIKey  string
	ResendBaseURL string
	EmailFrom     string
	ContactInbox  string

	FrontendURL string
	AuthSecret  string

	KafkaBrokers []string
	KafkaGroupID string
	OTLPEndpoint string

	ReminderSchedule string
	ReminderTZ       string

	FXAPIURL        string
	FallbackUSDRate decimal.Decimal
	ProviderTimeout time.Duration
	CartFlushDelay  time.Duration
}

var (
	once      sync.Once
	singleton *Config
	parseErr  error
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		singleton, parseErr = parse(os.Args[1:], os.Getenv)
	})

	return singleton, parseErr
}

// parse reads flags from args, then environment variables override them
func parse(args []string, getenv func(string) string) (*Config, error) {
	cfg := Config{}
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)

	var fallbackRate string

	// initialize flags
	fs.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "storefront server address")
	fs.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "storefront database DSN")
	fs.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
	fs.StringVar(&cfg.ReminderSchedule, "s", "", "reminder cron schedule")
	fs.StringVar(&fallbackRate, "fx-fallback", defaultFallbackUSDRate, "NGN to USD rate used when rate API is unavailable")
	fs.DurationVar(&cfg.ProviderTimeout, "provider-timeout", defaultProviderTimeout, "payment provider call timeout")
	fs.DurationVar(&cfg.CartFlushDelay, "cart-flush-delay", defaultCartFlushDelay, "cart write delay")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// if environment variable is set, then using it
	envString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	envString(&cfg.ServerAddr, "RUN_ADDRESS")
	envString(&cfg.DatabaseDSN, "DATABASE_URI")
	envString(&cfg.DatabasePassword, "DATABASE_PASSWORD")
	envString(&cfg.LogLevel, "LOG_LEVEL")

	envString(&cfg.FlutterwaveSecretKey, "FLW_SECRET_KEY")
	envString(&cfg.FlutterwaveSecretHash, "FLW_SECRET_HASH")
	envString(&cfg.FlutterwaveBaseURL, "FLW_BASE_URL")

	envString(&cfg.PayPalClientID, "PAYPAL_CLIENT_ID")
	envString(&cfg.PayPalSecret, "PAYPAL_SECRET")
	envString(&cfg.PayPalBaseURL, "PAYPAL_BASE_URL")

	cfg.EmailFrom = defaultEmailFrom
	cfg.ContactInbox = defaultContactInbox
	envString(&cfg.ResendAPIKey, "RESEND_API_KEY")
	envString(&cfg.ResendBaseURL, "RESEND_BASE_URL")
	envString(&cfg.EmailFrom, "EMAIL_FROM")
	envString(&cfg.ContactInbox, "CONTACT_INBOX")

	envString(&cfg.FrontendURL, "FRONTEND_URL")
	envString(&cfg.AuthSecret, "AUTH_SECRET")

	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.KafkaGroupID = defaultKafkaGroupID
	envString(&cfg.KafkaGroupID, "KAFKA_GROUP_ID")
	envString(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.ReminderTZ = defaultReminderTZ
	envString(&cfg.ReminderSchedule, "REMINDER_SCHEDULE")
	envString(&cfg.ReminderTZ, "REMINDER_TZ")

	envString(&cfg.FXAPIURL, "FX_API_URL")
	envString(&fallbackRate, "FX_FALLBACK_USD_RATE")

	rate, err := decimal.NewFromString(fallbackRate)
	if err != nil {
		return nil, fmt.Errorf("FX_FALLBACK_USD_RATE: %w", err)
	}
	cfg.FallbackUSDRate = rate

	if v := getenv("PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROVIDER_TIMEOUT: %w", err)
		}
		cfg.ProviderTimeout = d
	}
	if v := getenv("CART_FLUSH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CART_FLUSH_DELAY: %w", err)
		}
		cfg.CartFlushDelay = d
	}

	if cfg.DatabasePassword != "" && cfg.DatabaseDSN != "" {
		dsn, err := withPassword(cfg.DatabaseDSN, cfg.DatabasePassword)
		if err != nil {
			return nil, fmt.Errorf("DATABASE_URI: %w", err)
		}
		cfg.DatabaseDSN = dsn
	}

	return &cfg, nil
}

// withPassword sets password of URL form DSN
func withPassword(dsn, password string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.User == nil {
		return "", errors.New("password can only be set in postgres://user@host/db DSN")
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String(), nil
}

// Location returns reminder time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ReminderTZ)
}

// Validate checks options required to serve requests
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		value string
		name  string
	}{
		{c.DatabaseDSN, "DATABASE_URI"},
		{c.FlutterwaveSecretKey, "FLW_SECRET_KEY"},
		{c.FlutterwaveSecretHash, "FLW_SECRET_HASH"},
		{c.PayPalClientID, "PAYPAL_CLIENT_ID"},
		{c.PayPalSecret, "PAYPAL_SECRET"},
		{c.ResendAPIKey, "RESEND_API_KEY"},
		{c.FrontendURL, "FRONTEND_URL"},
		{c.AuthSecret, "AUTH_SECRET"},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("REMINDER_TZ: %w", err))
	}
	if !c.FallbackUSDRate.IsPositive() {
		errs = append(errs, errors.New("FX_FALLBACK_USD_RATE must be positive"))
	}

	return errors.Join(errs...)
}
