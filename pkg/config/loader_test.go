package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`
	JWT   JWTConfig   `yaml:"jwt"`
	App   AppConfig   `yaml:"app"`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadConfigMergesEnvironmentOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  name: habits
redis:
  addr: localhost:6379
  cache_ttl: 10m
app:
  timezone: UTC
  milestones: [7, 30]
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
app:
  timezone: Europe/Berlin
`)

	merged, err := LoadConfig("production", dir)
	require.NoError(t, err)

	var cfg testConfig
	require.NoError(t, Decode(merged, &cfg))

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "habits", cfg.DB.Name)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "Europe/Berlin", cfg.App.Timezone)
	assert.Equal(t, []int{7, 30}, cfg.App.Milestones)
}

func TestLoadConfigMissingEnvFileFallsBackToBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "db:\n  host: localhost\n")

	merged, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	var cfg testConfig
	require.NoError(t, Decode(merged, &cfg))
	assert.Equal(t, "localhost", cfg.DB.Host)
}

func TestLoadConfigSubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: ${JWT_SECRET}\n  ttl: 24h\n")
	writeFile(t, dir, "secrets.env", "# local only\nJWT_SECRET=\"s3cr3t\"\n")

	merged, err := LoadConfig("local", dir)
	require.NoError(t, err)

	var cfg testConfig
	require.NoError(t, Decode(merged, &cfg))
	assert.Equal(t, "s3cr3t", cfg.JWT.Secret)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
}

func TestLoadConfigRequiresBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base.yaml")
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("APP_TIMEZONE", "Asia/Tokyo")

	db := DBConfig{Port: 5432}
	OverrideDBFromEnv(&db)
	assert.Equal(t, 6543, db.Port)

	srv := ServerConfig{Port: ":8080"}
	OverrideServerFromEnv(&srv)
	assert.Equal(t, ":9090", srv.Port)

	app := AppConfig{Timezone: "UTC"}
	OverrideAppFromEnv(&app)
	assert.Equal(t, "Asia/Tokyo", app.Timezone)
}
