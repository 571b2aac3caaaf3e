package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
discord_token: file-token
database_url: sqlite://file.db
spam_filter:
  enabled: true
  time_window: 20
  max_per_window: 4
`)
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATABASE_URL", "postgres://rin@localhost/rin")
	t.Setenv("TASKS", "status_loop, ,birthday_check")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.DiscordToken)
	assert.Equal(t, "postgres://rin@localhost/rin", cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.SpamFilter.TimeWindowSeconds)
	assert.Equal(t, 4, cfg.SpamFilter.MaxPerWindow)
	assert.Equal(t, []string{"status_loop", "birthday_check"}, cfg.Tasks.Enabled)
	assert.True(t, cfg.TaskEnabled("birthday_check"))
	assert.False(t, cfg.TaskEnabled("music"))
}

func TestLoadRequiresToken(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "spam_filter: [unterminated")
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "token")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateSpamFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscordToken = "token"
	require.NoError(t, cfg.Validate())

	cfg.SpamFilter.MaxPerWindow = 0
	require.Error(t, cfg.Validate())

	cfg.SpamFilter.Enabled = false
	require.NoError(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
