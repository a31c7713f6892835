package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the service configuration
type Config struct {
	// Gitea connection
	GiteaURL      string `toml:"gitea_url"`
	GiteaToken    string `toml:"gitea_token"`
	WebhookSecret string `toml:"webhook_secret"`

	// HTTP server
	ServerAddr string `toml:"server_addr"`

	// Working directories and storage
	WorkDir string `toml:"work_dir"`
	DBPath  string `toml:"db_path"`

	// Review engine
	DefaultProvider      string   `toml:"default_provider"`
	ClaudeCmd            string   `toml:"claude_cmd"`
	CodexCmd             string   `toml:"codex_cmd"`
	ReviewTimeoutMinutes int      `toml:"review_timeout_minutes"`
	DefaultFocus         []string `toml:"default_focus"`

	// Bot identity
	BotUsername         string `toml:"bot_username"`
	AutoRequestReviewer bool   `toml:"auto_request_reviewer"`

	Debug bool `toml:"debug"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:           "0.0.0.0:8000",
		WorkDir:              filepath.Join(os.TempDir(), "gitea-tldr"),
		DefaultProvider:      "claude_code",
		ClaudeCmd:            "claude",
		CodexCmd:             "codex",
		ReviewTimeoutMinutes: 30,
		DefaultFocus:         []string{"quality", "security", "performance", "logic"},
		AutoRequestReviewer:  true,
	}
}

// DataDir returns the data directory.
// Uses GITEA_TLDR_DATA_DIR env var if set, otherwise ~/.gitea-tldr
func DataDir() string {
	if dir := os.Getenv("GITEA_TLDR_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gitea-tldr")
}

// DefaultConfigPath returns the path to the config file
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// DefaultDBPath returns the default sqlite database path
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "tldr.db")
}

// LoadFrom loads the configuration from a specific path.
// A missing file is not an error; defaults are returned.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that the settings required to talk to the forge are present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GiteaURL) == "" {
		return fmt.Errorf("gitea_url is required")
	}
	if strings.TrimSpace(c.GiteaToken) == "" {
		return fmt.Errorf("gitea_token is required")
	}
	return nil
}

// ProviderCmds returns the per-provider CLI path map used by the review engine.
func (c *Config) ProviderCmds() map[string]string {
	return map[string]string{
		"claude_code": c.ClaudeCmd,
		"codex_cli":   c.CodexCmd,
	}
}

// ProviderCmd returns the CLI path for a provider name, falling back to the
// name itself so unregistered providers can still be looked up on PATH.
func (c *Config) ProviderCmd(name string) string {
	if cmd, ok := c.ProviderCmds()[name]; ok && cmd != "" {
		return cmd
	}
	return name
}
