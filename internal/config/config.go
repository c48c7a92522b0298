package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	ClickHouse ClickHouseConfig
	NATS       NATSConfig
	GeoIP      GeoIPConfig
	Alerts     AlertsConfig
	Notify     NotifyConfig
	SMTP       SMTPConfig
	Auth       AuthConfig
	Retention  RetentionConfig
}

type AppConfig struct {
	Env  string
	Port int
	Host string
}

type ClickHouseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type NATSConfig struct {
	URL           string
	EnrichSubject string
}

type GeoIPConfig struct {
	// LookupInterval spaces external lookups to stay under the
	// ip-api.com free-tier ceiling of 45 requests/minute.
	LookupInterval time.Duration
	Timeout        time.Duration
	CacheTTL       time.Duration
	MaxCacheSize   int
	BackfillBatch  int
	BackfillWindow time.Duration
}

type AlertsConfig struct {
	SweepInterval time.Duration
}

type NotifyConfig struct {
	// EncryptionSecret derives the key that wraps webhook URLs at rest.
	EncryptionSecret string
	WebhookTimeout   time.Duration
}

type RetentionConfig struct {
	EventDays   int
	HistoryDays int
	Interval    time.Duration
}

type AuthConfig struct {
	// APIKey authenticates ingesting agents and API consumers.
	APIKey string
	// OrgID is the tenant all requests with APIKey belong to.
	OrgID string
}

type SMTPConfig struct {
	Host      string
	Port      int
	Security  string
	FromEmail string
	Username  string
	Password  string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/etc/reportcenter")

	viper.AutomaticEnv()

	bindEnvVars()
	setDefaults()

	// Config file is optional; env vars are enough to run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("Error reading config file", "error", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:  viper.GetString("APP_ENV"),
			Port: viper.GetInt("APP_PORT"),
			Host: viper.GetString("APP_HOST"),
		},
		ClickHouse: ClickHouseConfig{
			Host:     viper.GetString("CLICKHOUSE_HOST"),
			Port:     viper.GetInt("CLICKHOUSE_PORT"),
			User:     viper.GetString("CLICKHOUSE_USER"),
			Password: viper.GetString("CLICKHOUSE_PASSWORD"),
			Database: viper.GetString("CLICKHOUSE_DATABASE"),
		},
		NATS: NATSConfig{
			URL:           viper.GetString("NATS_URL"),
			EnrichSubject: viper.GetString("NATS_ENRICH_SUBJECT"),
		},
		GeoIP: GeoIPConfig{
			LookupInterval: viper.GetDuration("GEOIP_LOOKUP_INTERVAL"),
			Timeout:        viper.GetDuration("GEOIP_TIMEOUT"),
			CacheTTL:       viper.GetDuration("GEOIP_CACHE_TTL"),
			MaxCacheSize:   viper.GetInt("GEOIP_MAX_CACHE_SIZE"),
			BackfillBatch:  viper.GetInt("GEOIP_BACKFILL_BATCH"),
			BackfillWindow: viper.GetDuration("GEOIP_BACKFILL_WINDOW"),
		},
		Alerts: AlertsConfig{
			SweepInterval: viper.GetDuration("ALERT_SWEEP_INTERVAL"),
		},
		Notify: NotifyConfig{
			EncryptionSecret: viper.GetString("WEBHOOK_ENCRYPTION_SECRET"),
			WebhookTimeout:   viper.GetDuration("WEBHOOK_TIMEOUT"),
		},
		Retention: RetentionConfig{
			EventDays:   viper.GetInt("RETENTION_EVENT_DAYS"),
			HistoryDays: viper.GetInt("RETENTION_HISTORY_DAYS"),
			Interval:    viper.GetDuration("RETENTION_INTERVAL"),
		},
		Auth: AuthConfig{
			APIKey: viper.GetString("API_KEY"),
			OrgID:  viper.GetString("DEFAULT_ORG_ID"),
		},
		SMTP: SMTPConfig{
			Host:      viper.GetString("SMTP_HOST"),
			Port:      viper.GetInt("SMTP_PORT"),
			Security:  viper.GetString("SMTP_SECURITY"),
			FromEmail: viper.GetString("SMTP_FROM_EMAIL"),
			Username:  viper.GetString("SMTP_USERNAME"),
			Password:  viper.GetString("SMTP_PASSWORD"),
		},
	}

	if cfg.Notify.EncryptionSecret == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("WEBHOOK_ENCRYPTION_SECRET must be set in production")
	}
	if cfg.Auth.APIKey == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("API_KEY must be set in production")
	}

	return cfg, nil
}

func bindEnvVars() {
	viper.BindEnv("APP_ENV")
	viper.BindEnv("APP_PORT")
	viper.BindEnv("APP_HOST")

	viper.BindEnv("CLICKHOUSE_HOST")
	viper.BindEnv("CLICKHOUSE_PORT")
	viper.BindEnv("CLICKHOUSE_USER")
	viper.BindEnv("CLICKHOUSE_PASSWORD")
	viper.BindEnv("CLICKHOUSE_DATABASE")

	viper.BindEnv("NATS_URL")
	viper.BindEnv("NATS_ENRICH_SUBJECT")

	viper.BindEnv("GEOIP_LOOKUP_INTERVAL")
	viper.BindEnv("GEOIP_TIMEOUT")
	viper.BindEnv("GEOIP_CACHE_TTL")
	viper.BindEnv("GEOIP_MAX_CACHE_SIZE")
	viper.BindEnv("GEOIP_BACKFILL_BATCH")
	viper.BindEnv("GEOIP_BACKFILL_WINDOW")

	viper.BindEnv("ALERT_SWEEP_INTERVAL")

	viper.BindEnv("WEBHOOK_ENCRYPTION_SECRET")
	viper.BindEnv("WEBHOOK_TIMEOUT")

	viper.BindEnv("API_KEY")
	viper.BindEnv("DEFAULT_ORG_ID")

	viper.BindEnv("RETENTION_EVENT_DAYS")
	viper.BindEnv("RETENTION_HISTORY_DAYS")
	viper.BindEnv("RETENTION_INTERVAL")

	viper.BindEnv("SMTP_HOST")
	viper.BindEnv("SMTP_PORT")
	viper.BindEnv("SMTP_SECURITY")
	viper.BindEnv("SMTP_FROM_EMAIL")
	viper.BindEnv("SMTP_USERNAME")
	viper.BindEnv("SMTP_PASSWORD")
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_HOST", "0.0.0.0")

	viper.SetDefault("CLICKHOUSE_HOST", "localhost")
	viper.SetDefault("CLICKHOUSE_PORT", 9000)
	viper.SetDefault("CLICKHOUSE_USER", "reportcenter")
	viper.SetDefault("CLICKHOUSE_DATABASE", "reportcenter")

	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("NATS_ENRICH_SUBJECT", "events.enrich")

	// ip-api.com free tier allows 45 req/min; 1.5s spacing keeps us under.
	viper.SetDefault("GEOIP_LOOKUP_INTERVAL", 1500*time.Millisecond)
	viper.SetDefault("GEOIP_TIMEOUT", 5*time.Second)
	viper.SetDefault("GEOIP_CACHE_TTL", 24*time.Hour)
	viper.SetDefault("GEOIP_MAX_CACHE_SIZE", 10000)
	viper.SetDefault("GEOIP_BACKFILL_BATCH", 40)
	viper.SetDefault("GEOIP_BACKFILL_WINDOW", 24*time.Hour)

	viper.SetDefault("ALERT_SWEEP_INTERVAL", time.Minute)

	viper.SetDefault("WEBHOOK_TIMEOUT", 10*time.Second)

	viper.SetDefault("API_KEY", "dev-api-key")
	viper.SetDefault("DEFAULT_ORG_ID", "00000000-0000-0000-0000-000000000001")

	viper.SetDefault("RETENTION_EVENT_DAYS", 30)
	viper.SetDefault("RETENTION_HISTORY_DAYS", 365)
	viper.SetDefault("RETENTION_INTERVAL", 6*time.Hour)

	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_SECURITY", "tls")
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
