package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
http:
  port: 8081
database:
  host: db.local
  user: desk
  password: secret
  database: orders
rabbitmq:
  host: mq.local
  user: guest
  password: guest
events:
  driver: rabbitmq
auth:
  jwt_secret: s3cr3t
  token_ttl: 24h
jobs:
  sweep_interval: 5m
  notify_hour: 7
  timezone: UTC
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.HTTP.Port)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "default port kept")
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "/", cfg.RabbitMQ.VHost)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.SweepInterval)
	assert.Equal(t, 4*time.Hour, cfg.Jobs.PendingTTL)
	assert.Equal(t, 7, cfg.Jobs.NotifyHour)
	assert.Equal(t, time.UTC, cfg.Jobs.Location())
}

func TestLoadConfigValidation(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "events:\n  driver: carrier-pigeon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database config incomplete")
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")
	assert.Contains(t, err.Error(), `unknown events driver "carrier-pigeon"`)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "http: [unterminated"))
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Defaults()
	env := map[string]string{
		"PORT":          "9000",
		"DB_HOST":       " pg ",
		"DB_PORT":       "not-a-number",
		"JWT_SECRET":    "from-env",
		"EVENTS_DRIVER": "kafka",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"MAIL_HOST":     "",
	}
	applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "unparsable number ignored")
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, "", cfg.Mail.Host)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=d sslmode=require", d.DSN())
}

func TestLocationFallback(t *testing.T) {
	assert.Equal(t, time.Local, JobsConfig{}.Location())
	assert.Equal(t, time.Local, JobsConfig{Timezone: "Mars/Olympus"}.Location())
}
