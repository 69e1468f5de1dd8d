// internal/config/config.go
//
// This package handles configuration and the per-user trustwork directory.
// Settings live in config.yaml inside that directory; environment variables
// (optionally loaded from a .env file) override the file values.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the name of the directory created in the user's home.
	AppDir = ".trustwork"

	defaultAPIBaseURL   = "http://localhost:8000"
	defaultCallbackAddr = "127.0.0.1:8642"
)

const defaultConfigYAML = `# trustwork client configuration
version: 1

# Base URL of the TrustWork backend. The /api prefix is appended by the client.
api_base_url: http://localhost:8000

# Public key handed to the hosted Paystack checkout. Deposits fail without it.
paystack_public_key: ""

# Address the one-shot payment callback listener binds to.
callback_addr: 127.0.0.1:8642
`

// FileConfig models config.yaml.
type FileConfig struct {
	Version           int    `yaml:"version"`
	APIBaseURL        string `yaml:"api_base_url"`
	PaystackPublicKey string `yaml:"paystack_public_key"`
	CallbackAddr      string `yaml:"callback_addr"`
}

// Config holds the runtime configuration for the client.
type Config struct {
	// Home is the per-user trustwork directory (session, logs, config).
	Home string

	File FileConfig
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version:      1,
		APIBaseURL:   defaultAPIBaseURL,
		CallbackAddr: defaultCallbackAddr,
	}
}

// New loads configuration: .env, then config.yaml, then env overrides.
// The trustwork directory is created if it does not exist yet.
func New() (*Config, error) {
	_ = godotenv.Load()

	home := strings.TrimSpace(os.Getenv("TRUSTWORK_HOME"))
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolving home directory: %w", err)
		}
		home = filepath.Join(userHome, AppDir)
	}

	cfg := &Config{
		Home: home,
		File: defaultFileConfig(),
	}
	if err := cfg.ensureDirs(); err != nil {
		return nil, err
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ensureDirs() error {
	dirs := []string{
		c.Home,
		c.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// First run: write the commented default so users have something to edit.
		if werr := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); werr != nil {
			return fmt.Errorf("config: writing default %s: %w", path, werr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c.File); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if c.File.APIBaseURL == "" {
		c.File.APIBaseURL = defaultAPIBaseURL
	}
	if c.File.CallbackAddr == "" {
		c.File.CallbackAddr = defaultCallbackAddr
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TRUSTWORK_API_BASE_URL")); v != "" {
		c.File.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTWORK_PAYSTACK_PUBLIC_KEY")); v != "" {
		c.File.PaystackPublicKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTWORK_CALLBACK_ADDR")); v != "" {
		c.File.CallbackAddr = v
	}
}

// Validate checks the loaded values make sense before anything dials out.
func (c *Config) Validate() error {
	u, err := url.Parse(c.File.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: api_base_url %q is not an absolute URL", c.File.APIBaseURL)
	}
	return nil
}

// APIBaseURL returns the backend base URL without a trailing slash.
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.File.APIBaseURL, "/")
}

// PaystackPublicKey returns the checkout public key, possibly empty.
func (c *Config) PaystackPublicKey() string {
	return c.File.PaystackPublicKey
}

// CallbackAddr returns the payment callback listen address.
func (c *Config) CallbackAddr() string {
	return c.File.CallbackAddr
}

// ConfigPath returns the on-disk location for config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Home, "config.yaml")
}

// SessionPath returns the path to the persisted session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Home, "session.json")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Home, "logs")
}

// LogPath returns the path to the client journey log.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "client.log")
}
