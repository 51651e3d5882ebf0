package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) *Config {
	t.Helper()
	viper.Reset()

	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadClean(t)

	assert.Equal(t, "brain-commerce-export", cfg.AppName)
	assert.Equal(t, "default", cfg.SiteID)
	assert.Equal(t, "development", cfg.ENV)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 10, cfg.Postgres.PoolSize)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "export-commands", cfg.Kafka.CommandTopic)
	assert.Equal(t, "catalog-events", cfg.Kafka.CatalogTopic)
	assert.Equal(t, "export-results", cfg.Kafka.ResultTopic)

	// Выгрузка выключена, пока явно не настроена
	assert.False(t, cfg.Ingest.Enabled)
	assert.Equal(t, 100, cfg.Ingest.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.Ingest.Timeout)

	assert.Equal(t, []string{"large", "medium", "small"}, cfg.Export.ImageViewTypes)
	assert.Equal(t, "USD", cfg.Export.DefaultCurrency)

	assert.Equal(t, 60*time.Second, cfg.Resilience.CircuitTimeout)
	assert.Equal(t, 5, cfg.Resilience.TripThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SITE_ID", "RefArchGlobal")
	t.Setenv("INGEST_ENABLED", "true")
	t.Setenv("INGEST_BASE_URL", "https://api.braincommerce.example.com")
	t.Setenv("INGEST_API_KEY", "secret-key")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg := loadClean(t)

	assert.Equal(t, "RefArchGlobal", cfg.SiteID)
	assert.True(t, cfg.Ingest.Enabled)
	assert.Equal(t, "https://api.braincommerce.example.com", cfg.Ingest.BaseURL)
	assert.Equal(t, "secret-key", cfg.Ingest.APIKey)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
}

func TestLoad_EnvironmentName(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg := loadClean(t)
	assert.Equal(t, "production", cfg.ENV)
}
