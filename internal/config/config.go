package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for envsync. Project
// metadata (project name, per-environment file paths, validation rules)
// lives in .envsync.yaml and is loaded separately; this covers only the
// process-level settings.
type Config struct {
	// Remote store endpoint (required for push/pull/sync).
	APIURL string `env:"ENVSYNC_API_URL"`

	// Bearer token for the remote store. Falls back to the token cached
	// by `envsync login` when empty.
	Token string `env:"ENVSYNC_TOKEN"`

	// Default environment when --env is not given.
	Environment string `env:"ENVSYNC_ENVIRONMENT" envDefault:"development"`

	// Watch-mode timing. Debounce bounds how quickly a burst of local
	// edits turns into a push; PollInterval bounds how quickly remote
	// edits become visible locally.
	Debounce     time.Duration `env:"ENVSYNC_DEBOUNCE" envDefault:"2s"`
	PollInterval time.Duration `env:"ENVSYNC_POLL_INTERVAL" envDefault:"30s"`

	// AppEnv controls log format ("production" switches to JSON).
	AppEnv string `env:"ENVIRONMENT" envDefault:"development"`

	// EnvFileWarning is set when the loaded .env file has permissions
	// wider than 0600. Logging happens after config is loaded, so the
	// caller surfaces it once a logger exists.
	EnvFileWarning string `env:"-"`
}

// insecureEnvFileWarning returns a warning when the local env file has
// overly permissive permissions. On Unix systems, group or world readable
// files risk exposing credentials to other users.
func insecureEnvFileWarning(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return "" // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		return fmt.Sprintf("%s has insecure permissions %04o; recommended 0600", path, mode)
	}

	return ""
}

// Load reads configuration from environment variables. It first attempts
// to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.EnvFileWarning = insecureEnvFileWarning(".env")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ENVSYNC_API_URL must be an absolute URL, got %q", c.APIURL)
		}
	}

	if c.Debounce <= 0 {
		return fmt.Errorf("ENVSYNC_DEBOUNCE must be positive, got %s", c.Debounce)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("ENVSYNC_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	if c.Environment == "" {
		return fmt.Errorf("ENVSYNC_ENVIRONMENT must not be empty")
	}

	return nil
}

// IsProduction returns true when the app environment is set to production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DefaultStateDir returns the directory holding envsync's persistent
// state: ~/.envsync/
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".envsync"), nil
}
