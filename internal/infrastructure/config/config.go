package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Tiny      TinyConfig
	Vnda      VndaConfig
	Messaging MessagingConfig
	Sync      SyncConfig
	Storage   StorageConfig
	Swagger   SwaggerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	SQLitePath      string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	MigrationsPath  string
	// AutoMigrate applies the embedded migrations (postgres) or the gorm
	// schema (sqlite) at server start
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
	// WebhookRateLimit is the per-client request rate on /webhooks (req/s)
	WebhookRateLimit float64
	WebhookRateBurst int
	// APIRateLimit is the per-client request rate on /api (req/s)
	APIRateLimit float64
	APIRateBurst int
}

// AuthConfig holds the bearer token verification settings for admin routes.
// An empty secret disables verification (development only).
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// TinyConfig holds the ERP adapter settings
type TinyConfig struct {
	Token          string
	PartnerID      string
	BaseURL        string
	Timeout        time.Duration // bulk sync calls
	PingTimeout    time.Duration // interactive diagnostics
	RateLimit      float64       // requests per second
	RateBurst      int
	MaxPages       int
	MinTokenLength int
	// FetchDetails loads each order with pedido.obter so items are synced
	FetchDetails bool
}

// VndaConfig holds the storefront adapter settings
type VndaConfig struct {
	Token          string
	StoreHost      string
	BaseURL        string
	Timeout        time.Duration
	PingTimeout    time.Duration
	WebhookSecret  string
	MaxPages       int
	MinTokenLength int
}

// MessagingConfig holds the messaging-channel credential. The channel itself
// is an external collaborator; only credential presence is checked here.
type MessagingConfig struct {
	Token          string
	MinTokenLength int
}

// SyncConfig holds the orchestrator and background scheduler settings
type SyncConfig struct {
	Enabled         bool
	Interval        time.Duration
	LogCacheSize    int
	WebhookDedupTTL time.Duration
}

// StorageConfig holds S3-compatible object storage settings for audit archives
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
	// PresignExpiration bounds download links returned for archives
	PresignExpiration time.Duration
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
}

// Load loads configuration from .env, TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with OLIE_ prefix (e.g., OLIE_TINY_TOKEN)
// 2. .env file in the working directory (never overrides the real environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("OLIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("sync.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			MigrationsPath:  v.GetString("database.migrations_path"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			WebhookRateLimit: v.GetFloat64("http.webhook_rate_limit"),
			WebhookRateBurst: v.GetInt("http.webhook_rate_burst"),
			APIRateLimit:     v.GetFloat64("http.api_rate_limit"),
			APIRateBurst:     v.GetInt("http.api_rate_burst"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Tiny: TinyConfig{
			Token:          v.GetString("tiny.token"),
			PartnerID:      v.GetString("tiny.partner_id"),
			BaseURL:        v.GetString("tiny.base_url"),
			Timeout:        v.GetDuration("tiny.timeout"),
			PingTimeout:    v.GetDuration("tiny.ping_timeout"),
			RateLimit:      v.GetFloat64("tiny.rate_limit"),
			RateBurst:      v.GetInt("tiny.rate_burst"),
			MaxPages:       v.GetInt("tiny.max_pages"),
			MinTokenLength: v.GetInt("tiny.min_token_length"),
			FetchDetails:   v.GetBool("tiny.fetch_details"),
		},
		Vnda: VndaConfig{
			Token:          v.GetString("vnda.token"),
			StoreHost:      v.GetString("vnda.store_host"),
			BaseURL:        v.GetString("vnda.base_url"),
			Timeout:        v.GetDuration("vnda.timeout"),
			PingTimeout:    v.GetDuration("vnda.ping_timeout"),
			WebhookSecret:  v.GetString("vnda.webhook_secret"),
			MaxPages:       v.GetInt("vnda.max_pages"),
			MinTokenLength: v.GetInt("vnda.min_token_length"),
		},
		Messaging: MessagingConfig{
			Token:          v.GetString("messaging.token"),
			MinTokenLength: v.GetInt("messaging.min_token_length"),
		},
		Sync: SyncConfig{
			Enabled:         v.GetBool("sync.enabled"),
			Interval:        v.GetDuration("sync.interval"),
			LogCacheSize:    v.GetInt("sync.log_cache_size"),
			WebhookDedupTTL: v.GetDuration("sync.webhook_dedup_ttl"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			Prefix:            v.GetString("storage.prefix"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Swagger: SwaggerConfig{
			Enabled: v.GetBool("swagger.enabled"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "oliehub-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "oliehub.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "oliehub"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.WebhookRateLimit <= 0 {
		cfg.HTTP.WebhookRateLimit = 20
	}
	if cfg.HTTP.WebhookRateBurst <= 0 {
		cfg.HTTP.WebhookRateBurst = 40
	}
	if cfg.HTTP.APIRateLimit <= 0 {
		cfg.HTTP.APIRateLimit = 10
	}
	if cfg.HTTP.APIRateBurst <= 0 {
		cfg.HTTP.APIRateBurst = 30
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "oliehub"
	}
	if cfg.Tiny.BaseURL == "" {
		cfg.Tiny.BaseURL = "https://api.tiny.com.br/api2"
	}
	if cfg.Tiny.Timeout == 0 {
		cfg.Tiny.Timeout = 10 * time.Second
	}
	if cfg.Tiny.PingTimeout == 0 {
		cfg.Tiny.PingTimeout = 3 * time.Second
	}
	if cfg.Tiny.RateLimit == 0 {
		cfg.Tiny.RateLimit = 1
	}
	if cfg.Tiny.RateBurst == 0 {
		cfg.Tiny.RateBurst = 3
	}
	if cfg.Tiny.MaxPages == 0 {
		cfg.Tiny.MaxPages = 20
	}
	if cfg.Tiny.MinTokenLength == 0 {
		cfg.Tiny.MinTokenLength = 32
	}
	if cfg.Vnda.BaseURL == "" {
		cfg.Vnda.BaseURL = "https://api.vnda.com.br/api/v2"
	}
	if cfg.Vnda.Timeout == 0 {
		cfg.Vnda.Timeout = 10 * time.Second
	}
	if cfg.Vnda.PingTimeout == 0 {
		cfg.Vnda.PingTimeout = 3 * time.Second
	}
	if cfg.Vnda.MaxPages == 0 {
		cfg.Vnda.MaxPages = 20
	}
	if cfg.Vnda.MinTokenLength == 0 {
		cfg.Vnda.MinTokenLength = 16
	}
	if cfg.Messaging.MinTokenLength == 0 {
		cfg.Messaging.MinTokenLength = 16
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 60 * time.Second
	}
	if cfg.Sync.LogCacheSize == 0 {
		cfg.Sync.LogCacheSize = 50
	}
	if cfg.Sync.WebhookDedupTTL == 0 {
		cfg.Sync.WebhookDedupTTL = 24 * time.Hour
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "sync-logs/"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "oliehub-sync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync.interval must be at least 1s, got %s", c.Sync.Interval)
	}
	if c.Sync.LogCacheSize < 1 {
		return fmt.Errorf("sync.log_cache_size must be positive")
	}
	if c.Tiny.Timeout <= 0 || c.Tiny.PingTimeout <= 0 {
		return fmt.Errorf("tiny timeouts must be positive")
	}
	if c.Vnda.Timeout <= 0 || c.Vnda.PingTimeout <= 0 {
		return fmt.Errorf("vnda timeouts must be positive")
	}
	if c.Tiny.RateLimit < 0 {
		return fmt.Errorf("tiny.rate_limit cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in production")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "sqlite" {
			return fmt.Errorf("database.driver sqlite is not allowed in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
