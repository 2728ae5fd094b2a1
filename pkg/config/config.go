// Package config loads the dashboard configuration: an optional YAML file,
// then a .env file, then the process environment. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"bank-dashboard/pkg/api"
	"bank-dashboard/pkg/backend"
	"bank-dashboard/pkg/link"
	"bank-dashboard/pkg/logging"
	"bank-dashboard/pkg/resilience"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvBackendURL     = "BACKEND_URL"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvBackendTimeout = "BACKEND_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvLogDev         = "LOG_DEV"
	EnvLinkSessionTTL = "LINK_SESSION_TTL"
)

// DefaultEnvFile is read when Load is given no env files.
const DefaultEnvFile = ".env"

// Config is the top-level dashboard configuration.
type Config struct {
	Backend BackendConfig    `yaml:"backend"`
	Server  api.ServerConfig `yaml:"server"`
	Log     logging.Config   `yaml:"log"`
	Link    LinkConfig       `yaml:"link"`
	Metrics MetricsConfig    `yaml:"metrics"`
}

// BackendConfig points at the transactions backend.
type BackendConfig struct {
	URL        string            `yaml:"url"`
	Resilience resilience.Config `yaml:",inline"`
}

// LinkConfig controls pending bank-link sessions.
type LinkConfig struct {
	SessionTTL  time.Duration `yaml:"session_ttl"`
	MaxSessions int           `yaml:"max_sessions"`
}

// MetricsConfig controls Prometheus naming.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:        backend.DefaultBaseURL,
			Resilience: resilience.DefaultConfig(),
		},
		Server: api.DefaultServerConfig(),
		Log:    logging.DefaultConfig(),
		Link: LinkConfig{
			SessionTTL:  link.DefaultSessionTTL,
			MaxSessions: 1000,
		},
		Metrics: MetricsConfig{
			Namespace: "bank_dashboard",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), the given env files (DefaultEnvFile when none), and
// the process environment. Process variables win over env files; missing
// env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", file, err)
		}
		for k, v := range values {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBackendURL); ok && v != "" {
		c.Backend.URL = v
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.Server.Address = v
	}
	if v, ok := lookup(EnvBackendTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBackendTimeout, err)
		}
		c.Backend.Resilience.Timeout = d
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvLogDev); ok && v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogDev, err)
		}
		c.Log.Development = dev
	}
	if v, ok := lookup(EnvLinkSessionTTL); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLinkSessionTTL, err)
		}
		c.Link.SessionTTL = d
	}
	return nil
}

// Validate checks the configuration for values the dashboard cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("backend.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.url: scheme must be http or https, got %q", c.Backend.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("backend.url: missing host in %q", c.Backend.URL)
	}
	if c.Backend.Resilience.Timeout < 0 {
		return errors.New("backend.timeout: must not be negative")
	}
	if c.Server.Address == "" {
		return errors.New("server.address: required")
	}
	if c.Link.SessionTTL <= 0 {
		return errors.New("link.session_ttl: must be positive")
	}
	if c.Link.MaxSessions < 0 {
		return errors.New("link.max_sessions: must not be negative")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}
