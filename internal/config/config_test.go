package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEYWARDEN_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("KEYWARDEN_PATHS_PRIMARY_STORE", filepath.Join(dir, "keywarden.db"))
	t.Setenv("KEYWARDEN_PATHS_ADMIN_STORE", filepath.Join(dir, "admin.db"))
	t.Setenv("KEYWARDEN_PATHS_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("KEYWARDEN_LOGGING_FILE_PATH", filepath.Join(dir, "logs", "app.log"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 3000, cfg.API.Port)
	assert.Equal(t, 60, cfg.Download.CooldownMinutes)
	assert.Equal(t, time.Hour, cfg.Cooldown())
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, 100, cfg.API.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.API.RateLimit.Window)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEYWARDEN_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("KEYWARDEN_PATHS_PRIMARY_STORE", filepath.Join(dir, "keywarden.db"))
	t.Setenv("KEYWARDEN_PATHS_ADMIN_STORE", filepath.Join(dir, "admin.db"))
	t.Setenv("KEYWARDEN_PATHS_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("KEYWARDEN_LOGGING_FILE_PATH", filepath.Join(dir, "logs", "app.log"))
	t.Setenv("KEYWARDEN_API_PORT", "8090")
	t.Setenv("KEYWARDEN_DOWNLOAD_COOLDOWN_MINUTES", "30")
	t.Setenv("KEYWARDEN_DISCORD_ADMIN_IDS", "111,222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.API.Port)
	assert.Equal(t, 30, cfg.Download.CooldownMinutes)
	assert.Equal(t, []string{"111", "222"}, cfg.Discord.AdminIDs)
}

func TestLoad_FileMerge(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "keywarden.yaml")
	content := `
discord:
  token: file-token
  admin_ids:
    - "42"
download:
  url: https://downloads.example.net/build.zip
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))

	t.Setenv("KEYWARDEN_CONFIG", cfgFile)
	t.Setenv("KEYWARDEN_PATHS_PRIMARY_STORE", filepath.Join(dir, "keywarden.db"))
	t.Setenv("KEYWARDEN_PATHS_ADMIN_STORE", filepath.Join(dir, "admin.db"))
	t.Setenv("KEYWARDEN_PATHS_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("KEYWARDEN_LOGGING_FILE_PATH", filepath.Join(dir, "logs", "app.log"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Discord.Token)
	assert.Equal(t, []string{"42"}, cfg.Discord.AdminIDs)
	assert.Equal(t, "https://downloads.example.net/build.zip", cfg.Download.URL)
}

func TestLoad_FileBeatsDefaultEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "keywarden.yaml")
	content := `
api:
  port: 9100
download:
  url: https://downloads.example.net/build.zip
  cooldown_minutes: 45
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))

	t.Setenv("KEYWARDEN_CONFIG", cfgFile)
	t.Setenv("KEYWARDEN_PATHS_PRIMARY_STORE", filepath.Join(dir, "keywarden.db"))
	t.Setenv("KEYWARDEN_PATHS_ADMIN_STORE", filepath.Join(dir, "admin.db"))
	t.Setenv("KEYWARDEN_PATHS_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("KEYWARDEN_LOGGING_FILE_PATH", filepath.Join(dir, "logs", "app.log"))
	t.Setenv("KEYWARDEN_DOWNLOAD_COOLDOWN_MINUTES", "30")

	cfg, err := Load()
	require.NoError(t, err)

	// File values replace envconfig defaults.
	assert.Equal(t, 9100, cfg.API.Port)
	assert.Equal(t, "https://downloads.example.net/build.zip", cfg.Download.URL)
	// A real environment variable still wins over the file.
	assert.Equal(t, 30, cfg.Download.CooldownMinutes)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.API.Port = -1 }},
		{"bad bcrypt cost", func(c *Config) { c.Security.BcryptCost = 2 }},
		{"bad rate limit", func(c *Config) { c.API.RateLimit.Max = 0 }},
		{"shared store file", func(c *Config) { c.Paths.AdminStore = c.Paths.PrimaryStore }},
		{"negative cooldown", func(c *Config) { c.Download.CooldownMinutes = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				API: APIConfig{
					Port:      3000,
					RateLimit: RateLimitConfig{Max: 100, Window: 15 * time.Minute},
				},
				Download: DownloadConfig{CooldownMinutes: 60},
				Security: SecurityConfig{BcryptCost: 12},
				Paths: PathsConfig{
					PrimaryStore: "data/keywarden.db",
					AdminStore:   "data/admin.db",
				},
			}
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestIsAdmin(t *testing.T) {
	allowlist := []string{"100", " 200 ", "300"}

	assert.True(t, IsAdmin("100", allowlist))
	assert.True(t, IsAdmin("200", allowlist))
	assert.False(t, IsAdmin("999", allowlist))
	assert.False(t, IsAdmin("", allowlist))
	assert.False(t, IsAdmin("100", nil))
}
