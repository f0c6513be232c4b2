package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDecodeDefaults(t *testing.T) {
	cfg, err := decode(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, int64(5<<20), cfg.Business.MaxDocumentSize)
	assert.Equal(t, "1000", cfg.GetInitialDeposit().String())
	assert.Equal(t, "1000", cfg.GetDefaultMonthlyContribution().String())
	assert.Equal(t, "1", cfg.GetMinInterestRate().String())
	assert.Equal(t, "100", cfg.GetMaxInterestRate().String())
	assert.Equal(t, 360, cfg.GetMaxLoanTerm())
	assert.True(t, cfg.Scheduler.RepaymentEnabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.LockTTL)
	assert.Equal(t, 5*time.Second, cfg.GetHealthTimeout())
	assert.True(t, cfg.IsDevelopment())
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "sacco", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=sacco sslmode=disable", d.DSN())

	d.URL = "postgres://u:p@db/sacco"
	assert.Equal(t, "postgres://u:p@db/sacco", d.DSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{"memory driver", map[string]any{"STORAGE_DRIVER": DriverMemory}, ""},
		{"unknown driver", map[string]any{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER"},
		{"no database", map[string]any{"DATABASE_HOST": ""}, "DATABASE_URL"},
		{"bad deposit", map[string]any{"INITIAL_DEPOSIT": "abc"}, "INITIAL_DEPOSIT"},
		{"negative contribution", map[string]any{"DEFAULT_MONTHLY_CONTRIBUTION": "-1"}, "DEFAULT_MONTHLY_CONTRIBUTION"},
		{"min above max", map[string]any{"MIN_INTEREST_RATE": "50", "MAX_INTEREST_RATE": "10"}, "MIN_INTEREST_RATE"},
		{"bad cron", map[string]any{"SCHEDULER_REPAYMENT_SPEC": "every day"}, "SCHEDULER_REPAYMENT_SPEC"},
		{"descriptor cron", map[string]any{"SCHEDULER_DEPOSIT_SPEC": "@monthly"}, ""},
		{"bad timezone", map[string]any{"SCHEDULER_TIMEZONE": "Mars/Olympus"}, "SCHEDULER_TIMEZONE"},
		{"zero document size", map[string]any{"MAX_DOCUMENT_SIZE": 0}, "MAX_DOCUMENT_SIZE"},
		{"zero loan term", map[string]any{"MAX_LOAN_TERM": 0}, "MAX_LOAN_TERM"},
		{"loan term above calculator limit", map[string]any{"MAX_LOAN_TERM": 1201}, "MAX_LOAN_TERM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(newViper(tt.overrides))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
