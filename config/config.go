package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	AuthConfig     AuthConfig     `json:"auth"`
	RedisConfig    RedisConfig    `json:"redis"`
	VaultConfig    VaultConfig    `json:"vault"`
	BillingConfig  BillingConfig  `json:"billing"`
	KYCConfig      KYCConfig      `json:"kyc"`
	ESignConfig    ESignConfig    `json:"esign"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // Comma-separated CORS origins
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// OriginList splits the comma-separated origins into a slice
func (c *ServerConfig) OriginList() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled                  bool          `json:"enabled"`
	JWTSecret                string        `json:"jwt_secret"`
	AccessTokenDuration      time.Duration `json:"access_token_duration"`
	RefreshTokenDuration     time.Duration `json:"refresh_token_duration"`
	PasswordResetDuration    time.Duration `json:"password_reset_duration"`
	MinPasswordLength        int           `json:"min_password_length"`
	RequireEmailVerification bool          `json:"require_email_verification"`
	MaxSessionsPerUser       int           `json:"max_sessions_per_user"`
	RootEmail                string        `json:"root_email"`
	RootPassword             string        `json:"root_password"`
}

// RedisConfig holds Redis configuration for caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for provider credentials
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// BillingConfig holds billing and subscription configuration
type BillingConfig struct {
	Enabled              bool    `json:"enabled"`
	StripeSecretKey      string  `json:"stripe_secret_key"`
	StripePublishableKey string  `json:"stripe_publishable_key"`
	StripeWebhookSecret  string  `json:"stripe_webhook_secret"`
	ProfessionalPriceID  string  `json:"professional_price_id"`
	InstitutionPriceID   string  `json:"institution_price_id"`
	DunningScanHourUTC   int     `json:"dunning_scan_hour_utc"`
	DunningGraceDays     int     `json:"dunning_grace_days"`
	DunningMinimum       float64 `json:"dunning_minimum"` // Smallest balance worth a reminder
}

// KYCConfig holds identity-verification provider configuration
type KYCConfig struct {
	Enabled       bool   `json:"enabled"`
	AppToken      string `json:"app_token"`
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
	BaseURL       string `json:"base_url"`
	LevelName     string `json:"level_name"`
}

// ESignConfig holds e-signature provider configuration
type ESignConfig struct {
	Enabled       bool   `json:"enabled"`
	APIKey        string `json:"api_key"`
	AccountID     string `json:"account_id"`
	WebhookSecret string `json:"webhook_secret"`
	BaseURL       string `json:"base_url"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Secrets (JWT secret, provider keys, DB password) are expected from the
// environment or Vault, never committed in config.json.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", valueOrInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", valueOr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", boolString(cfg.ServerConfig.ProductionMode)) == "true"
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", valueOrInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", valueOr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", valueOrInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", valueOr(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", valueOr(cfg.DatabaseConfig.Database, "investment_platform"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", valueOr(cfg.DatabaseConfig.SSLMode, "disable"))

	// Auth config - ALWAYS apply from environment
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "true") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour)
	cfg.AuthConfig.PasswordResetDuration = getEnvDurationOrDefault("AUTH_PASSWORD_RESET_DURATION", 1*time.Hour)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)
	cfg.AuthConfig.RequireEmailVerification = getEnvOrDefault("AUTH_REQUIRE_EMAIL_VERIFICATION", "false") == "true"
	cfg.AuthConfig.MaxSessionsPerUser = getEnvIntOrDefault("AUTH_MAX_SESSIONS_PER_USER", 10)
	cfg.AuthConfig.RootEmail = getEnvOrDefault("AUTH_ROOT_EMAIL", cfg.AuthConfig.RootEmail)
	cfg.AuthConfig.RootPassword = getEnvOrDefault("AUTH_ROOT_PASSWORD", cfg.AuthConfig.RootPassword)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", valueOr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", valueOrInt(cfg.RedisConfig.PoolSize, 10))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolString(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", valueOr(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", valueOr(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", valueOr(cfg.VaultConfig.SecretPath, "investment-platform/providers"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", boolString(cfg.VaultConfig.TLSEnabled)) == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Billing config
	cfg.BillingConfig.Enabled = getEnvOrDefault("BILLING_ENABLED", boolString(cfg.BillingConfig.Enabled)) == "true"
	cfg.BillingConfig.StripeSecretKey = getEnvOrDefault("STRIPE_SECRET_KEY", cfg.BillingConfig.StripeSecretKey)
	cfg.BillingConfig.StripePublishableKey = getEnvOrDefault("STRIPE_PUBLISHABLE_KEY", cfg.BillingConfig.StripePublishableKey)
	cfg.BillingConfig.StripeWebhookSecret = getEnvOrDefault("STRIPE_WEBHOOK_SECRET", cfg.BillingConfig.StripeWebhookSecret)
	cfg.BillingConfig.ProfessionalPriceID = getEnvOrDefault("STRIPE_PROFESSIONAL_PRICE_ID", cfg.BillingConfig.ProfessionalPriceID)
	cfg.BillingConfig.InstitutionPriceID = getEnvOrDefault("STRIPE_INSTITUTION_PRICE_ID", cfg.BillingConfig.InstitutionPriceID)
	cfg.BillingConfig.DunningScanHourUTC = getEnvIntOrDefault("DUNNING_SCAN_HOUR_UTC", valueOrInt(cfg.BillingConfig.DunningScanHourUTC, 8))
	cfg.BillingConfig.DunningGraceDays = getEnvIntOrDefault("DUNNING_GRACE_DAYS", valueOrInt(cfg.BillingConfig.DunningGraceDays, 3))
	cfg.BillingConfig.DunningMinimum = getEnvFloatOrDefault("DUNNING_MINIMUM", cfg.BillingConfig.DunningMinimum)

	// KYC config
	cfg.KYCConfig.Enabled = getEnvOrDefault("KYC_ENABLED", boolString(cfg.KYCConfig.Enabled)) == "true"
	cfg.KYCConfig.AppToken = getEnvOrDefault("KYC_APP_TOKEN", cfg.KYCConfig.AppToken)
	cfg.KYCConfig.SecretKey = getEnvOrDefault("KYC_SECRET_KEY", cfg.KYCConfig.SecretKey)
	cfg.KYCConfig.WebhookSecret = getEnvOrDefault("KYC_WEBHOOK_SECRET", cfg.KYCConfig.WebhookSecret)
	cfg.KYCConfig.BaseURL = getEnvOrDefault("KYC_BASE_URL", cfg.KYCConfig.BaseURL)
	cfg.KYCConfig.LevelName = getEnvOrDefault("KYC_LEVEL_NAME", cfg.KYCConfig.LevelName)

	// E-sign config
	cfg.ESignConfig.Enabled = getEnvOrDefault("ESIGN_ENABLED", boolString(cfg.ESignConfig.Enabled)) == "true"
	cfg.ESignConfig.APIKey = getEnvOrDefault("ESIGN_API_KEY", cfg.ESignConfig.APIKey)
	cfg.ESignConfig.AccountID = getEnvOrDefault("ESIGN_ACCOUNT_ID", cfg.ESignConfig.AccountID)
	cfg.ESignConfig.WebhookSecret = getEnvOrDefault("ESIGN_WEBHOOK_SECRET", cfg.ESignConfig.WebhookSecret)
	cfg.ESignConfig.BaseURL = getEnvOrDefault("ESIGN_BASE_URL", cfg.ESignConfig.BaseURL)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", valueOr(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", valueOr(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func valueOrInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "http://localhost:5173",
			ShutdownTimeout: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "investment_platform",
			SSLMode:  "disable",
		},
		AuthConfig: AuthConfig{
			Enabled:                  true,
			AccessTokenDuration:      15 * time.Minute,
			RefreshTokenDuration:     7 * 24 * time.Hour,
			PasswordResetDuration:    time.Hour,
			MinPasswordLength:        8,
			RequireEmailVerification: false,
			MaxSessionsPerUser:       10,
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		VaultConfig: VaultConfig{
			Enabled:    false,
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "investment-platform/providers",
		},
		BillingConfig: BillingConfig{
			Enabled:            false,
			DunningScanHourUTC: 8,
			DunningGraceDays:   3,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
