package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/config"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":        "postgres://localhost:5432/kasir",
		"REDIS_URL":           "redis://localhost:6379/0",
		"PORT":                "",
		"APP_ENV":             "",
		"QUEUE_REDIS_PREFIX":  "",
		"CATALOG_CACHE_TTL":   "",
		"BILLING_RATE_WINDOW": "",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "kasir", cfg.QueueRedisPrefix)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.Equal(t, 60*time.Second, cfg.CatalogCacheTTL)
	require.True(t, cfg.MigrateOnStart)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":               "postgres://localhost:5432/kasir",
		"REDIS_URL":                  "redis://localhost:6379/0",
		"PORT":                       "9090",
		"DB_MIGRATE_ON_START":        "false",
		"QUEUE_INVOICE_MAX_ATTEMPTS": "3",
		"CORS_ALLOWED_ORIGINS":       "https://a.example.com, https://b.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.False(t, cfg.MigrateOnStart)
	require.Equal(t, 3, cfg.QueueInvoiceAttempts)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}
