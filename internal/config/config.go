package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Discord  DiscordConfig  `yaml:"discord" envconfig:"DISCORD"`
	API      APIConfig      `yaml:"api" envconfig:"API"`
	Download DownloadConfig `yaml:"download" envconfig:"DOWNLOAD"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// DiscordConfig contains the chat-platform connection settings
type DiscordConfig struct {
	Token         string   `yaml:"token" envconfig:"TOKEN"`
	ApplicationID string   `yaml:"application_id" envconfig:"APPLICATION_ID"`
	GuildID       string   `yaml:"guild_id" envconfig:"GUILD_ID"`
	AdminIDs      []string `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
}

// APIConfig contains the HTTP validation surface configuration
type APIConfig struct {
	Enabled         bool            `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	Port            int             `yaml:"port" envconfig:"PORT" default:"3000"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains per-source rate limiting configuration
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	Window  time.Duration `yaml:"window" envconfig:"WINDOW" default:"15m"`
	Max     int           `yaml:"max" envconfig:"MAX" default:"100"`
}

// DownloadConfig controls the download gating operation
type DownloadConfig struct {
	URL             string `yaml:"url" envconfig:"URL" default:"https://example.com/download"`
	CooldownMinutes int    `yaml:"cooldown_minutes" envconfig:"COOLDOWN_MINUTES" default:"60"`
}

// SecurityConfig contains credential hashing settings
type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost" envconfig:"BCRYPT_COST" default:"12"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/keywarden.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	PrimaryStore string `yaml:"primary_store" envconfig:"PRIMARY_STORE" default:"data/keywarden.db"`
	AdminStore   string `yaml:"admin_store" envconfig:"ADMIN_STORE" default:"data/admin.db"`
	ExportDir    string `yaml:"export_dir" envconfig:"EXPORT_DIR" default:"data/exports"`
}

// Load loads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("KEYWARDEN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to prepare data directories: %w", err)
	}

	return &cfg, nil
}

// Cooldown returns the download cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Download.CooldownMinutes) * time.Minute
}

// IsAdmin reports whether the given platform identity is in the
// configured admin allow-list.
func IsAdmin(id string, allowlist []string) bool {
	for _, admin := range allowlist {
		if strings.TrimSpace(admin) == id {
			return true
		}
	}
	return false
}

func configFilePath() string {
	if p := os.Getenv("KEYWARDEN_CONFIG"); p != "" {
		return p
	}
	return "keywarden.yaml"
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays file values onto the env-processed config. envconfig
// has already filled defaults by the time this runs, so the env struct
// alone cannot tell a defaulted field from one the operator set; the
// environment is consulted directly. A file value wins over a default
// but never over an environment variable that is actually present.
func merge(fileCfg, envCfg Config) Config {
	out := envCfg
	if fileCfg.Discord.Token != "" && !envSet("DISCORD_TOKEN") {
		out.Discord.Token = fileCfg.Discord.Token
	}
	if fileCfg.Discord.ApplicationID != "" && !envSet("DISCORD_APPLICATION_ID") {
		out.Discord.ApplicationID = fileCfg.Discord.ApplicationID
	}
	if fileCfg.Discord.GuildID != "" && !envSet("DISCORD_GUILD_ID") {
		out.Discord.GuildID = fileCfg.Discord.GuildID
	}
	if len(fileCfg.Discord.AdminIDs) > 0 && !envSet("DISCORD_ADMIN_IDS") {
		out.Discord.AdminIDs = fileCfg.Discord.AdminIDs
	}
	if fileCfg.API.Port != 0 && !envSet("API_PORT") {
		out.API.Port = fileCfg.API.Port
	}
	if fileCfg.Download.URL != "" && !envSet("DOWNLOAD_URL") {
		out.Download.URL = fileCfg.Download.URL
	}
	if fileCfg.Download.CooldownMinutes != 0 && !envSet("DOWNLOAD_COOLDOWN_MINUTES") {
		out.Download.CooldownMinutes = fileCfg.Download.CooldownMinutes
	}
	if fileCfg.Paths.PrimaryStore != "" && !envSet("PATHS_PRIMARY_STORE") {
		out.Paths.PrimaryStore = fileCfg.Paths.PrimaryStore
	}
	if fileCfg.Paths.AdminStore != "" && !envSet("PATHS_ADMIN_STORE") {
		out.Paths.AdminStore = fileCfg.Paths.AdminStore
	}
	return out
}

func envSet(name string) bool {
	_, ok := os.LookupEnv("KEYWARDEN_" + name)
	return ok
}

func (c *Config) validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", c.API.Port)
	}
	if c.Download.CooldownMinutes < 0 {
		return fmt.Errorf("invalid download cooldown: %d minutes", c.Download.CooldownMinutes)
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d", c.Security.BcryptCost)
	}
	if c.API.RateLimit.Max <= 0 {
		return fmt.Errorf("invalid rate limit max: %d", c.API.RateLimit.Max)
	}
	if c.Paths.PrimaryStore == c.Paths.AdminStore {
		return fmt.Errorf("primary and admin stores must use separate files")
	}
	return nil
}

func (c *Config) ensureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.PrimaryStore),
		filepath.Dir(c.Paths.AdminStore),
		c.Paths.ExportDir,
		filepath.Dir(c.Logging.FilePath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
