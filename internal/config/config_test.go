package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.StoreTimeout)
	assert.Equal(t, "+05:30", cfg.Inventory.DayBoundaryOffset)
	assert.Equal(t, WriteModeAppend, cfg.Inventory.WriteMode)
	assert.Equal(t, EnforcementStrict, cfg.Inventory.CatalogEnforcement)
	assert.False(t, cfg.Redis.IdempotencyEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("DAY_BOUNDARY_OFFSET", "Europe/Berlin")
	t.Setenv("RECORD_WRITE_MODE", "merge")
	t.Setenv("CATALOG_ENFORCEMENT", "flag")
	t.Setenv("IDEMPOTENCY_ENABLED", "true")
	t.Setenv("IDEMPOTENCY_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.StoreTimeout)
	assert.Equal(t, "Europe/Berlin", cfg.Inventory.DayBoundaryOffset)
	assert.Equal(t, WriteModeMerge, cfg.Inventory.WriteMode)
	assert.Equal(t, EnforcementFlag, cfg.Inventory.CatalogEnforcement)
	assert.True(t, cfg.Redis.IdempotencyEnabled)
	assert.Equal(t, time.Hour, cfg.Redis.IdempotencyTTL)
}

func TestLoad_RejectsUnknownValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"STORAGE_DRIVER", "mongo"},
		{"RECORD_WRITE_MODE", "upsert"},
		{"CATALOG_ENFORCEMENT", "off"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)

			var invalid *InvalidValueError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.key, invalid.Key)
		})
	}
}
