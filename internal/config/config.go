package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database     DatabaseConfig
	JWT          JWTConfig
	App          AppConfig
	Payroll      PayrollConfig
	Disbursement DisbursementConfig
	RateLimit    RateLimitConfig
	Cron         CronConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// PayrollConfig holds computation and workflow settings
type PayrollConfig struct {
	WorkflowVariant     string // four_stage or two_stage
	Capabilities        string // action:role|role;... overrides
	WorkerPoolSize      int
	FortnightsPerYear   int           // used when a tax configuration leaves PeriodsPerYear unset
	ProcessingLease     time.Duration // how long a process call holds a run
	OvertimeMultiplier  decimal.Decimal
	LatePenaltyMode     string // per_occurrence or per_minute
	LatePenalty         decimal.Decimal
	StandardHoursPerDay decimal.Decimal
	TaxAnnualise        bool
	SeedDefaultTax      bool
}

// DisbursementConfig selects the payout gateway
type DisbursementConfig struct {
	Gateway         string // manual or xendit
	Concurrency     int
	XenditSecretKey string
}

// RateLimitConfig limits mutating requests per actor
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type CronConfig struct {
	TaxRefreshInterval time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
		slog.Info("No .env file found, using environment")
	}

	return FromEnv()
}

// FromEnv builds the configuration from the process environment
func FromEnv() (*Config, error) {
	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payrun"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
	if config.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", 25); err != nil {
		return nil, err
	}
	if config.Database.MinConns, err = getEnvInt("DB_MIN_CONNS", 5); err != nil {
		return nil, err
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Payroll configuration
	config.Payroll = PayrollConfig{
		WorkflowVariant: getEnv("PAYROLL_WORKFLOW_VARIANT", "four_stage"),
		Capabilities:    getEnv("PAYROLL_CAPABILITIES", ""),
		LatePenaltyMode: getEnv("PAYROLL_LATE_PENALTY_MODE", "per_occurrence"),
	}
	if config.Payroll.WorkerPoolSize, err = getEnvInt("PAYROLL_WORKER_POOL_SIZE", 8); err != nil {
		return nil, err
	}
	if config.Payroll.FortnightsPerYear, err = getEnvInt("PAYROLL_FORTNIGHTS_PER_YEAR", 26); err != nil {
		return nil, err
	}
	if config.Payroll.OvertimeMultiplier, err = getEnvDecimal("PAYROLL_OVERTIME_MULTIPLIER", "1.5"); err != nil {
		return nil, err
	}
	if config.Payroll.LatePenalty, err = getEnvDecimal("PAYROLL_LATE_PENALTY", "50"); err != nil {
		return nil, err
	}
	if config.Payroll.StandardHoursPerDay, err = getEnvDecimal("PAYROLL_STANDARD_HOURS_PER_DAY", "8"); err != nil {
		return nil, err
	}
	if config.Payroll.TaxAnnualise, err = getEnvBool("PAYROLL_TAX_ANNUALISE", true); err != nil {
		return nil, err
	}
	if config.Payroll.SeedDefaultTax, err = getEnvBool("PAYROLL_SEED_DEFAULT_TAX", true); err != nil {
		return nil, err
	}

	// Disbursement configuration
	config.Disbursement = DisbursementConfig{
		Gateway:         getEnv("DISBURSEMENT_GATEWAY", "manual"),
		XenditSecretKey: getEnv("XENDIT_SECRET_KEY", ""),
	}
	if config.Disbursement.Concurrency, err = getEnvInt("DISBURSEMENT_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	// Rate limit configuration
	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	config.RateLimit.RequestsPerSecond = rps
	if config.RateLimit.Burst, err = getEnvInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}

	lease, err := time.ParseDuration(getEnv("PAYROLL_PROCESSING_LEASE", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_PROCESSING_LEASE: %w", err)
	}
	config.Payroll.ProcessingLease = lease

	// Cron configuration
	refresh, err := time.ParseDuration(getEnv("CRON_TAX_REFRESH_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_TAX_REFRESH_INTERVAL: %w", err)
	}
	config.Cron.TaxRefreshInterval = refresh

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, and DB_MAX_CONNS positive")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}

	if c.Payroll.WorkflowVariant != "four_stage" && c.Payroll.WorkflowVariant != "two_stage" {
		return fmt.Errorf("PAYROLL_WORKFLOW_VARIANT must be four_stage or two_stage")
	}
	if c.Payroll.LatePenaltyMode != "per_occurrence" && c.Payroll.LatePenaltyMode != "per_minute" {
		return fmt.Errorf("PAYROLL_LATE_PENALTY_MODE must be per_occurrence or per_minute")
	}
	if c.Payroll.WorkerPoolSize < 1 {
		return fmt.Errorf("PAYROLL_WORKER_POOL_SIZE must be at least 1")
	}
	if c.Payroll.FortnightsPerYear != 26 && c.Payroll.FortnightsPerYear != 27 {
		return fmt.Errorf("PAYROLL_FORTNIGHTS_PER_YEAR must be 26 or 27")
	}
	if c.Payroll.ProcessingLease <= 0 {
		return fmt.Errorf("PAYROLL_PROCESSING_LEASE must be positive")
	}
	if c.Payroll.OvertimeMultiplier.IsNegative() || c.Payroll.LatePenalty.IsNegative() {
		return fmt.Errorf("PAYROLL_OVERTIME_MULTIPLIER and PAYROLL_LATE_PENALTY must be non-negative")
	}
	if !c.Payroll.StandardHoursPerDay.IsPositive() {
		return fmt.Errorf("PAYROLL_STANDARD_HOURS_PER_DAY must be positive")
	}

	switch c.Disbursement.Gateway {
	case "manual":
	case "xendit":
		if c.Disbursement.XenditSecretKey == "" {
			return fmt.Errorf("XENDIT_SECRET_KEY is required when DISBURSEMENT_GATEWAY=xendit")
		}
	default:
		return fmt.Errorf("DISBURSEMENT_GATEWAY must be manual or xendit")
	}
	if c.Disbursement.Concurrency < 1 {
		return fmt.Errorf("DISBURSEMENT_CONCURRENCY must be at least 1")
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.Cron.TaxRefreshInterval <= 0 {
		return fmt.Errorf("CRON_TAX_REFRESH_INTERVAL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvDecimal(key, fallback string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
