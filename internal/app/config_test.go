package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 600, cfg.RateLimitPerMinute)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsLists(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REPORT_CACHE_TTL", "90s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]Config{
		"unknown driver":  {StoreDriver: "sqlite", RateLimitPerMinute: 1},
		"missing dsn":     {StoreDriver: StorePostgres, RateLimitPerMinute: 1},
		"memory in prod":  {StoreDriver: StoreMemory, AppEnv: "production", RateLimitPerMinute: 1},
		"zero rate limit": {StoreDriver: StoreMemory},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, cfg.Validate())
		})
	}
	ok := Config{StoreDriver: " POSTGRES ", PGDSN: "postgres://x", RateLimitPerMinute: 10}
	require.NoError(t, ok.Validate())
	require.Equal(t, StorePostgres, ok.StoreDriver)
}
