// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/sms-gateway-bridge/utils"
)

// Config holds all configuration of the gateway bridge
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Queue     QueueConfig     `json:"queue"`
	JWT       JWTConfig       `json:"jwt"`
	Security  SecurityConfig  `json:"security"`
	Gateway   GatewayConfig   `json:"gateway"`
	Webhook   WebhookConfig   `json:"webhook"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Bootstrap BootstrapConfig `json:"bootstrap"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	RateLimit       int           `json:"rate_limit"` // requests per minute per IP, 0 disables
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, sqlite
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type RedisConfig struct {
	URL                 string        `json:"url"`
	DB                  int           `json:"db"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

type QueueConfig struct {
	Driver            string        `json:"driver"` // redis, memory
	KeyPrefix         string        `json:"key_prefix"`
	PollInterval      time.Duration `json:"poll_interval"`
	BatchSize         int           `json:"batch_size"`
	Concurrency       int           `json:"concurrency"`
	MaxRetries        int           `json:"max_retries"`
	RetryBackoff      time.Duration `json:"retry_backoff"`
	VisibilityTimeout time.Duration `json:"visibility_timeout"` // redelivery delay for unacknowledged tasks
	WorkerEnable      bool          `json:"worker_enable"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	PrivateKey     string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey      string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys     bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

type SecurityConfig struct {
	// AppKey is the root secret the credential encryption key is derived from
	AppKey         string   `json:"-"`
	KeyID          string   `json:"key_id"`
	KeyVersion     int      `json:"key_version"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type GatewayConfig struct {
	BaseURL        string        `json:"base_url"`
	Username       string        `json:"username"`
	Password       string        `json:"-"`
	SimSlot        int           `json:"sim_slot"` // 0 leaves the choice to the gateway
	DeliveryReport *bool         `json:"delivery_report,omitempty"`
	SendTimeout    time.Duration `json:"send_timeout"`
	StatusTimeout  time.Duration `json:"status_timeout"`
}

type WebhookConfig struct {
	Secret    string        `json:"-"`
	Tolerance time.Duration `json:"tolerance"`
}

type LoggingConfig struct {
	FilePath   string `json:"file_path"` // empty logs to stdout only
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

// LogFileOptions adapts the logging section for utils.NewLogOutput
func (l LoggingConfig) LogFileOptions() utils.LogFileOptions {
	return utils.LogFileOptions{
		Path:       l.FilePath,
		MaxSizeMB:  l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAge,
		Compress:   l.Compress,
	}
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// BootstrapConfig names the account seeded from the GATEWAY env credentials
type BootstrapConfig struct {
	AccountName string `json:"account_name"`
}

// LoadConfig reads the configuration from the environment and an optional .env file
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			RateLimit:       getEnvInt("GLOBAL_RATE_LIMIT", 600),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnvString("DB_DRIVER", "postgres")),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "sms_gateway_bridge"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			SQLitePath:      getEnvString("DB_SQLITE_PATH", "sms_gateway_bridge.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:                 getEnvString("REDIS_URL", "redis://localhost:6379/0"),
			DB:                  getEnvInt("REDIS_DB", 0),
			HealthCheckInterval: getEnvDuration("REDIS_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Queue: QueueConfig{
			Driver:            strings.ToLower(getEnvString("QUEUE_DRIVER", "redis")),
			KeyPrefix:         getEnvString("QUEUE_KEY_PREFIX", "smsbridge:"),
			PollInterval:      getEnvDuration("QUEUE_POLL_INTERVAL", time.Second),
			BatchSize:         getEnvInt("QUEUE_BATCH_SIZE", 50),
			Concurrency:       getEnvInt("QUEUE_CONCURRENCY", 8),
			MaxRetries:        getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryBackoff:      getEnvDuration("QUEUE_RETRY_BACKOFF", 60*time.Second),
			VisibilityTimeout: getEnvDuration("QUEUE_VISIBILITY_TIMEOUT", 5*time.Minute),
			WorkerEnable:      getEnvBool("QUEUE_WORKER_ENABLED", true),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:     getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:      getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:     getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "sms-gateway-bridge"),
			Audience:       getEnvString("JWT_AUDIENCE", "sms-gateway-bridge-api"),
		},
		Security: SecurityConfig{
			AppKey:         getEnvString("APP_KEY", ""),
			KeyID:          getEnvString("APP_KEY_ID", "app"),
			KeyVersion:     getEnvInt("APP_KEY_VERSION", 1),
			AllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", nil),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnvString("SMS_GATEWAY_BASE_URL", ""),
			Username:       getEnvString("SMS_GATEWAY_USER", ""),
			Password:       getEnvString("SMS_GATEWAY_PASS", ""),
			SimSlot:        getEnvInt("SMS_GATEWAY_SIM_SLOT", 0),
			DeliveryReport: getEnvBoolPtr("SMS_GATEWAY_DELIVERY_REPORT"),
			SendTimeout:    getEnvDuration("SMS_GATEWAY_SEND_TIMEOUT", 15*time.Second),
			StatusTimeout:  getEnvDuration("SMS_GATEWAY_STATUS_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Secret:    getEnvString("SMS_GATEWAY_WEBHOOK_SECRET", ""),
			Tolerance: time.Duration(getEnvInt("SMS_GATEWAY_WEBHOOK_TOLERANCE", 300)) * time.Second,
		},
		Logging: LoggingConfig{
			FilePath:   getEnvString("LOG_FILE_PATH", ""),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Bootstrap: BootstrapConfig{
			AccountName: getEnvString("BOOTSTRAP_ACCOUNT_NAME", "default"),
		},
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// HasBootstrapGateway reports whether the env carries a full gateway credential triple
func (c *Config) HasBootstrapGateway() bool {
	return c.Gateway.BaseURL != "" && c.Gateway.Username != "" && c.Gateway.Password != ""
}

// loadEnvFile loads environment variables from path if it exists
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// the real environment wins over the file
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBoolPtr returns nil when key is unset or unparsable
func getEnvBoolPtr(key string) *bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return &parsed
		}
	}
	return nil
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateConfig collects every configuration problem into one error
func ValidateConfig(cfg *Config) error {
	var errors []string

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Database
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errors = append(errors, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errors = append(errors, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			errors = append(errors, "DB_USER is required")
		}
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			errors = append(errors, "DB_SQLITE_PATH is required when DB_DRIVER is sqlite")
		}
	default:
		errors = append(errors, "DB_DRIVER must be one of: postgres, sqlite")
	}

	// Queue
	if !slices.Contains([]string{"redis", "memory"}, cfg.Queue.Driver) {
		errors = append(errors, "QUEUE_DRIVER must be one of: redis, memory")
	}
	if cfg.Queue.Driver == "redis" && cfg.Redis.URL == "" {
		errors = append(errors, "REDIS_URL is required when QUEUE_DRIVER is redis")
	}
	if cfg.Queue.PollInterval <= 0 {
		errors = append(errors, "QUEUE_POLL_INTERVAL must be positive")
	}
	if cfg.Queue.BatchSize <= 0 {
		errors = append(errors, "QUEUE_BATCH_SIZE must be positive")
	}
	if cfg.Queue.Concurrency <= 0 {
		errors = append(errors, "QUEUE_CONCURRENCY must be positive")
	}
	if cfg.Queue.MaxRetries < 0 {
		errors = append(errors, "QUEUE_MAX_RETRIES must not be negative")
	}
	if cfg.Queue.RetryBackoff <= 0 {
		errors = append(errors, "QUEUE_RETRY_BACKOFF must be positive")
	}
	if cfg.Queue.VisibilityTimeout <= 0 {
		errors = append(errors, "QUEUE_VISIBILITY_TIMEOUT must be positive")
	}

	// JWT
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is true")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Security
	if len(cfg.Security.AppKey) < 32 {
		errors = append(errors, "APP_KEY must be at least 32 characters long")
	}
	if cfg.Security.KeyVersion < 1 {
		errors = append(errors, "APP_KEY_VERSION must be at least 1")
	}

	// Gateway
	provided := 0
	for _, v := range []string{cfg.Gateway.BaseURL, cfg.Gateway.Username, cfg.Gateway.Password} {
		if v != "" {
			provided++
		}
	}
	if provided != 0 && provided != 3 {
		errors = append(errors, "SMS_GATEWAY_BASE_URL, SMS_GATEWAY_USER and SMS_GATEWAY_PASS must be set together")
	}
	if cfg.Gateway.BaseURL != "" {
		if u, err := url.Parse(cfg.Gateway.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, "SMS_GATEWAY_BASE_URL must be an absolute http or https URL")
		}
	}
	if cfg.Gateway.SimSlot < 0 || cfg.Gateway.SimSlot > 3 {
		errors = append(errors, "SMS_GATEWAY_SIM_SLOT must be between 0 and 3")
	}
	if cfg.Gateway.SendTimeout <= 0 || cfg.Gateway.StatusTimeout <= 0 {
		errors = append(errors, "SMS_GATEWAY_SEND_TIMEOUT and SMS_GATEWAY_STATUS_TIMEOUT must be positive")
	}

	// Webhook
	if cfg.Webhook.Tolerance <= 0 {
		errors = append(errors, "SMS_GATEWAY_WEBHOOK_TOLERANCE must be positive")
	}

	// Logging
	if cfg.Logging.FilePath != "" && (cfg.Logging.MaxSize <= 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAge < 0) {
		errors = append(errors, "LOG_MAX_SIZE must be positive and LOG_MAX_BACKUPS, LOG_MAX_AGE not negative")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errors = append(errors, "METRICS_PATH must start with /")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
