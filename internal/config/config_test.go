package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/market.db", cfg.Database.CachePath)
	assert.Equal(t, "data/trading.db", cfg.Database.TradingPath)
	assert.Equal(t, "practice", cfg.Oanda.Environment)
}

func TestLoadReadsValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  env: prod
  log_level: warn
server:
  addr: ":9090"
database:
  cache_path: /tmp/a.db
  trading_path: /tmp/b.db
oanda:
  api_key: key
  account_id: acc
  environment: live
bitunix:
  api_key: bk
  secret_key: bs
`))
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "live", cfg.Oanda.Environment)
	assert.Equal(t, "acc", cfg.Oanda.AccountID)
	assert.Equal(t, "bs", cfg.Bitunix.SecretKey)
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, "oanda:\n  environment: sandbox\n"))
	assert.ErrorContains(t, err, "oanda.environment")
}

func TestLoadRejectsSharedDatabasePath(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  cache_path: same.db
  trading_path: same.db
`))
	assert.ErrorContains(t, err, "must differ")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
