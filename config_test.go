package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Browser.QRTimeoutSeconds)
	assert.Equal(t, 30, cfg.WhatsApp.WaitSeconds)
	assert.Equal(t, "italian", cfg.WhatsApp.Language)
	assert.Equal(t, "messages.json", cfg.Harvest.MessagesFile)
	assert.Equal(t, 1, cfg.Harvest.DefaultMonths)
	assert.Equal(t, 10, cfg.Harvest.MaxScrollAttempts)
	assert.Equal(t, 5, cfg.Harvest.MaxNoNewMessages)
	assert.Equal(t, 60, cfg.Harvest.SyncPausedWaitSeconds)
	assert.Equal(t, 5, cfg.Harvest.SyncPausedMaxRetries)
	assert.Equal(t, "json", cfg.Storage.Backend)
	assert.True(t, filepath.IsAbs(cfg.Browser.UserDataDir))
	assert.Equal(t, defaultSelectors.SearchBox, cfg.Selectors.SearchBox)
}

func TestLoadConfig_MissingRequiredFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
browser:
  headless: true
  user_data_dir: profile
whatsapp:
  language: Spanish
harvest:
  max_scroll_attempts: 3
storage:
  backend: sqlite
  sqlite_path: history.db
logging:
  level: debug
selectors:
  search_box: "#search"
  composer:
    - "footer [contenteditable]"
`)

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, filepath.IsAbs(cfg.Browser.UserDataDir))
	assert.Equal(t, "profile", filepath.Base(cfg.Browser.UserDataDir))
	assert.Equal(t, "Spanish", cfg.WhatsApp.Language)
	assert.Equal(t, 3, cfg.Harvest.MaxScrollAttempts)
	assert.Equal(t, 2000, cfg.Harvest.ScrollPauseMillis)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "history.db", cfg.Storage.SQLitePath)

	assert.Equal(t, "#search", cfg.Selectors.SearchBox)
	assert.Equal(t, []string{"footer [contenteditable]"}, cfg.Selectors.Composer)
	// untouched entries keep their defaults
	assert.Equal(t, defaultSelectors.MessageRows, cfg.Selectors.MessageRows)
	assert.Equal(t, defaultSelectors.SendChecks, cfg.Selectors.SendChecks)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "browser: [unterminated"},
		{"unknown backend", "storage:\n  backend: mongo\n"},
		{"unknown language", "whatsapp:\n  language: klingon\n"},
		{"unknown log level", "logging:\n  level: chatty\n"},
		{"negative scroll limit", "harvest:\n  max_scroll_attempts: -1\n"},
		{"negative retries", "retry:\n  max_retries: -2\n"},
		{"negative default months", "harvest:\n  default_months: -1\n"},
		{"negative sync paused retries", "harvest:\n  sync_paused_max_retries: -3\n"},
		{"negative scroll pause", "harvest:\n  scroll_pause_ms: -100\n"},
		{"shrinking backoff", "retry:\n  backoff_multiplier: 0.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.yaml)
			_, err := LoadConfig(path, true)
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
