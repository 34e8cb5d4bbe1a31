package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  http_port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 10, cfg.ClickHouse.MaxOpenConns)
	assert.Equal(t, 5, cfg.ClickHouse.MaxIdleConns)
	assert.Equal(t, time.Minute, cfg.Cache.TTLDuration())
	assert.Equal(t, "demo", cfg.Demo.ProjectID)
	assert.Equal(t, "pagelens-analytics-api", cfg.Kafka.ConsumerGroup)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  http_port: 9100
clickhouse:
  addr: ch:9000
  database: pagelens
  username: default
postgres:
  dsn: postgres://pagelens@pg:5432/pagelens
redis:
  addr: redis:6379
kafka:
  brokers: ["kafka:9092"]
  topics:
    ingested: pagelens.events.ingested
  consumer_group: custom-group
cache:
  enabled: true
  ttl: 5m
demo:
  project_id: sandbox
`))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Equal(t, "ch:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "pagelens.events.ingested", cfg.Kafka.Topics["ingested"])
	assert.Equal(t, "custom-group", cfg.Kafka.ConsumerGroup)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTLDuration())
	assert.Equal(t, "sandbox", cfg.Demo.ProjectID)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PAGELENS_PG_DSN", "postgres://u:s@host/db")

	cfg, err := Load(writeConfig(t, "postgres:\n  dsn: ${PAGELENS_PG_DSN}\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:s@host/db", cfg.Postgres.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
