package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the connection string, preferring an explicit URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type SchedulerConfig struct {
	SalaryCreditSpec string `mapstructure:"salary_credit_spec"`
	Timezone         string `mapstructure:"timezone"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BusinessConfig struct {
	Timezone            string `mapstructure:"timezone"`
	AmountStep          string `mapstructure:"amount_step"`
	MinimumAmount       string `mapstructure:"minimum_amount"`
	SalaryMinimumAmount string `mapstructure:"salary_minimum_amount"`
	LunchRatePerDay     string `mapstructure:"lunch_rate_per_day"`
	WeeklyLunchCap      string `mapstructure:"weekly_lunch_cap"`
	DiscretionaryCap    string `mapstructure:"discretionary_cap"`
	WorkingDaysPerMonth int    `mapstructure:"working_days_per_month"`
	MidMonthStartDay    int    `mapstructure:"mid_month_start_day"`
	MidMonthEndDay      int    `mapstructure:"mid_month_end_day"`
	EndMonthGraceDays   int    `mapstructure:"end_month_grace_days"`
	MaxConflictRetries  int    `mapstructure:"max_conflict_retries"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

var defaults = map[string]any{
	"server.port":                     "8080",
	"server.host":                     "0.0.0.0",
	"server.env":                      "development",
	"server.read_timeout":             "15s",
	"server.write_timeout":            "15s",
	"database.url":                    "",
	"database.host":                   "localhost",
	"database.port":                   "5432",
	"database.name":                   "ledger_engine",
	"database.user":                   "postgres",
	"database.password":               "",
	"database.sslmode":                "disable",
	"database.max_open_conns":         25,
	"database.max_idle_conns":         5,
	"database.conn_max_lifetime":      "5m",
	"redis.host":                      "localhost",
	"redis.port":                      "6379",
	"redis.password":                  "",
	"redis.db":                        0,
	"redis.idempotency_ttl":           "24h",
	"storage.driver":                  "postgres",
	"scheduler.salary_credit_spec":    "0 30 23 * * *",
	"scheduler.timezone":              "Africa/Kampala",
	"logging.level":                   "info",
	"logging.format":                  "json",
	"business.timezone":               "Africa/Kampala",
	"business.amount_step":            "1000",
	"business.minimum_amount":         "1000",
	"business.salary_minimum_amount":  "10000",
	"business.lunch_rate_per_day":     "2500",
	"business.weekly_lunch_cap":       "15000",
	"business.discretionary_cap":      "5000000",
	"business.working_days_per_month": 26,
	"business.mid_month_start_day":    13,
	"business.mid_month_end_day":      15,
	"business.end_month_grace_days":   2,
	"business.max_conflict_retries":   3,
	"health.timeout":                  "5s",
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still win.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// SERVER_PORT -> server.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
	}

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
	case "postgres":
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Storage.Driver)
	}

	amounts := map[string]string{
		"BUSINESS_AMOUNT_STEP":           c.Business.AmountStep,
		"BUSINESS_MINIMUM_AMOUNT":        c.Business.MinimumAmount,
		"BUSINESS_SALARY_MINIMUM_AMOUNT": c.Business.SalaryMinimumAmount,
		"BUSINESS_LUNCH_RATE_PER_DAY":    c.Business.LunchRatePerDay,
		"BUSINESS_WEEKLY_LUNCH_CAP":      c.Business.WeeklyLunchCap,
		"BUSINESS_DISCRETIONARY_CAP":     c.Business.DiscretionaryCap,
	}
	for name, raw := range amounts {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s must be a valid decimal: %w", name, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.Business.WorkingDaysPerMonth <= 0 {
		return fmt.Errorf("BUSINESS_WORKING_DAYS_PER_MONTH must be greater than 0")
	}

	if c.Business.MidMonthStartDay < 1 || c.Business.MidMonthEndDay > 31 ||
		c.Business.MidMonthStartDay > c.Business.MidMonthEndDay {
		return fmt.Errorf("mid-month window %d-%d is invalid", c.Business.MidMonthStartDay, c.Business.MidMonthEndDay)
	}

	if c.Business.EndMonthGraceDays < 0 || c.Business.EndMonthGraceDays > 27 {
		return fmt.Errorf("BUSINESS_END_MONTH_GRACE_DAYS must be between 0 and 27")
	}

	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE is invalid: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE is invalid: %w", err)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.SalaryCreditSpec); err != nil {
		return fmt.Errorf("SCHEDULER_SALARY_CREDIT_SPEC must be a valid cron spec: %w", err)
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

// Location returns the business calendar timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustDecimal(raw string) decimal.Decimal {
	d, _ := decimal.NewFromString(raw)
	return d
}

func (c *Config) GetAmountStep() decimal.Decimal { return mustDecimal(c.Business.AmountStep) }

func (c *Config) GetMinimumAmount() decimal.Decimal { return mustDecimal(c.Business.MinimumAmount) }

func (c *Config) GetSalaryMinimumAmount() decimal.Decimal {
	return mustDecimal(c.Business.SalaryMinimumAmount)
}

func (c *Config) GetLunchRatePerDay() decimal.Decimal { return mustDecimal(c.Business.LunchRatePerDay) }

func (c *Config) GetWeeklyLunchCap() decimal.Decimal { return mustDecimal(c.Business.WeeklyLunchCap) }

func (c *Config) GetDiscretionaryCap() decimal.Decimal {
	return mustDecimal(c.Business.DiscretionaryCap)
}

// Default returns a validated configuration built only from defaults.
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var config Config
	_ = v.Unmarshal(&config)
	config.Storage.Driver = "memory"
	return &config
}
