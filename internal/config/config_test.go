package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BUSINESS_TIMEZONE", "UTC")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")
	t.Setenv("BUSINESS_WEEKLY_LUNCH_CAP", "20000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "20000", cfg.GetWeeklyLunchCap().String())
	assert.Equal(t, "2500", cfg.GetLunchRatePerDay().String())
	assert.Equal(t, 26, cfg.Business.WorkingDaysPerMonth)
	assert.Equal(t, 3, cfg.Business.MaxConflictRetries)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "1000", cfg.GetAmountStep().String())
	assert.Equal(t, "10000", cfg.GetSalaryMinimumAmount().String())
	assert.Equal(t, "Africa/Kampala", cfg.Location().String())
	assert.Equal(t, 13, cfg.Business.MidMonthStartDay)
	assert.Equal(t, 15, cfg.Business.MidMonthEndDay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }, "SERVER_PORT"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "STORAGE_DRIVER"},
		{"postgres without host", func(c *Config) {
			c.Storage.Driver = "postgres"
			c.Database.Host = ""
		}, "DATABASE_URL"},
		{"bad decimal", func(c *Config) { c.Business.AmountStep = "ten" }, "BUSINESS_AMOUNT_STEP"},
		{"negative cap", func(c *Config) { c.Business.WeeklyLunchCap = "-1" }, "BUSINESS_WEEKLY_LUNCH_CAP"},
		{"zero working days", func(c *Config) { c.Business.WorkingDaysPerMonth = 0 }, "WORKING_DAYS"},
		{"inverted mid-month", func(c *Config) { c.Business.MidMonthStartDay = 20 }, "mid-month"},
		{"grace too long", func(c *Config) { c.Business.EndMonthGraceDays = 28 }, "GRACE_DAYS"},
		{"bad timezone", func(c *Config) { c.Business.Timezone = "Mars/Olympus" }, "BUSINESS_TIMEZONE"},
		{"bad cron", func(c *Config) { c.Scheduler.SalaryCreditSpec = "every day" }, "SALARY_CREDIT_SPEC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "ledger", Password: "secret", Name: "ledger_engine", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=ledger password=secret dbname=ledger_engine sslmode=disable", d.DSN())

	d.URL = "postgres://ledger@db/ledger_engine"
	assert.Equal(t, d.URL, d.DSN())
}

func TestEnvironmentHelpers(t *testing.T) {
	c := &Config{Server: ServerConfig{Env: "prod"}}
	assert.True(t, c.IsProduction())
	assert.False(t, c.IsDevelopment())
}
