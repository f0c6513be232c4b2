package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/segyhp/sacco-ledger/pkg/amortization"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Storage   StorageConfig   `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Documents DocumentsConfig `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"DATABASE_URL"`
	Host             string        `mapstructure:"DATABASE_HOST"`
	Port             string        `mapstructure:"DATABASE_PORT"`
	Name             string        `mapstructure:"DATABASE_NAME"`
	User             string        `mapstructure:"DATABASE_USER"`
	Password         string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode          string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns     int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns     int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime  time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	LockTimeout      time.Duration `mapstructure:"DATABASE_LOCK_TIMEOUT"`
	StatementTimeout time.Duration `mapstructure:"DATABASE_STATEMENT_TIMEOUT"`
}

// DSN returns DATABASE_URL when set and otherwise builds a connection string
// from the individual settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string        `mapstructure:"REDIS_ADDR"`
	Password string        `mapstructure:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"REDIS_DB"`
	CacheTTL time.Duration `mapstructure:"REDIS_CACHE_TTL"`
}

type StorageConfig struct {
	Driver string `mapstructure:"STORAGE_DRIVER"`
}

type SchedulerConfig struct {
	Timezone         string        `mapstructure:"SCHEDULER_TIMEZONE"`
	RepaymentSpec    string        `mapstructure:"SCHEDULER_REPAYMENT_SPEC"`
	DepositSpec      string        `mapstructure:"SCHEDULER_DEPOSIT_SPEC"`
	RepaymentEnabled bool          `mapstructure:"SCHEDULER_REPAYMENT_ENABLED"`
	DepositEnabled   bool          `mapstructure:"SCHEDULER_DEPOSIT_ENABLED"`
	LockTTL          time.Duration `mapstructure:"SCHEDULER_LOCK_TTL"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	InitialDeposit             string `mapstructure:"INITIAL_DEPOSIT"`
	DefaultMonthlyContribution string `mapstructure:"DEFAULT_MONTHLY_CONTRIBUTION"`
	MinInterestRate            string `mapstructure:"MIN_INTEREST_RATE"`
	MaxInterestRate            string `mapstructure:"MAX_INTEREST_RATE"`
	MaxLoanTerm                int    `mapstructure:"MAX_LOAN_TERM"`
	MaxDocumentSize            int64  `mapstructure:"MAX_DOCUMENT_SIZE"`
}

type DocumentsConfig struct {
	RootDir string `mapstructure:"DOCUMENTS_ROOT_DIR"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "sacco")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_LOCK_TIMEOUT", "5s")
	v.SetDefault("DATABASE_STATEMENT_TIMEOUT", "30s")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CACHE_TTL", "5m")

	v.SetDefault("STORAGE_DRIVER", DriverPostgres)

	v.SetDefault("SCHEDULER_TIMEZONE", "Africa/Nairobi")
	v.SetDefault("SCHEDULER_REPAYMENT_SPEC", "0 6 28 * *")
	v.SetDefault("SCHEDULER_DEPOSIT_SPEC", "0 6 25 * *")
	v.SetDefault("SCHEDULER_REPAYMENT_ENABLED", true)
	v.SetDefault("SCHEDULER_DEPOSIT_ENABLED", true)
	v.SetDefault("SCHEDULER_LOCK_TTL", "1h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("INITIAL_DEPOSIT", "1000")
	v.SetDefault("DEFAULT_MONTHLY_CONTRIBUTION", "1000")
	v.SetDefault("MIN_INTEREST_RATE", "1")
	v.SetDefault("MAX_INTEREST_RATE", "100")
	v.SetDefault("MAX_LOAN_TERM", 360)
	v.SetDefault("MAX_DOCUMENT_SIZE", 5<<20)

	v.SetDefault("DOCUMENTS_ROOT_DIR", "./uploads")

	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Storage.Driver)
	}

	for name, value := range map[string]string{
		"INITIAL_DEPOSIT":              c.Business.InitialDeposit,
		"DEFAULT_MONTHLY_CONTRIBUTION": c.Business.DefaultMonthlyContribution,
		"MIN_INTEREST_RATE":            c.Business.MinInterestRate,
		"MAX_INTEREST_RATE":            c.Business.MaxInterestRate,
	} {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid decimal: %w", name, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.GetMinInterestRate().GreaterThan(c.GetMaxInterestRate()) {
		return fmt.Errorf("MIN_INTEREST_RATE must not exceed MAX_INTEREST_RATE")
	}

	if c.Business.MaxLoanTerm < 1 || c.Business.MaxLoanTerm > amortization.MaxTermMonths {
		return fmt.Errorf("MAX_LOAN_TERM must be between 1 and %d", amortization.MaxTermMonths)
	}

	if c.Business.MaxDocumentSize <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_SIZE must be greater than 0")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.RepaymentSpec); err != nil {
		return fmt.Errorf("SCHEDULER_REPAYMENT_SPEC must be a valid cron spec: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.DepositSpec); err != nil {
		return fmt.Errorf("SCHEDULER_DEPOSIT_SPEC must be a valid cron spec: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

func (c *Config) GetInitialDeposit() decimal.Decimal {
	return decimal.RequireFromString(c.Business.InitialDeposit)
}

func (c *Config) GetDefaultMonthlyContribution() decimal.Decimal {
	return decimal.RequireFromString(c.Business.DefaultMonthlyContribution)
}

func (c *Config) GetMinInterestRate() decimal.Decimal {
	return decimal.RequireFromString(c.Business.MinInterestRate)
}

func (c *Config) GetMaxInterestRate() decimal.Decimal {
	return decimal.RequireFromString(c.Business.MaxInterestRate)
}

// GetMaxLoanTerm returns the longest term a loan may be applied for in
// months. An unset value falls back to the calculator's limit.
func (c *Config) GetMaxLoanTerm() int {
	if c.Business.MaxLoanTerm < 1 || c.Business.MaxLoanTerm > amortization.MaxTermMonths {
		return amortization.MaxTermMonths
	}
	return c.Business.MaxLoanTerm
}

// GetSchedulerLocation returns the scheduler time zone, falling back to UTC
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
