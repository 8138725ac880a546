package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("VELVETPOS_WEB_PORT", "")
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Equal(t, DefaultAppConfig.Web.Port, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "default", cfg.Store.DefaultID)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "velvetpos.yml")
	content := `
system:
  workdir: ` + dir + `
web:
  port: 8080
database:
  type: sqlite
  name: pos.db
mail:
  to: [owner@velvet.com]
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	t.Setenv("VELVETPOS_WEB_PORT", "9090")
	t.Setenv("VELVETPOS_DB_DEBUG", "true")
	t.Setenv("VELVETPOS_MAIL_TO", "a@velvet.com, b@velvet.com")

	cfg := LoadConfig(file)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "pos.db", cfg.Database.Name)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, []string{"a@velvet.com", "b@velvet.com"}, cfg.Mail.To)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())

	require.NoError(t, cfg.InitDirs())
	_, err := os.Stat(cfg.GetMetricsDir())
	assert.NoError(t, err)
}

func TestLoadConfig_ProductionEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Equal(t, "production", cfg.Logger.Mode)
	assert.False(t, cfg.System.Debug)
}
