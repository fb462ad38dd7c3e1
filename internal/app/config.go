package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/sift/internal/tools"
	"github.com/raysh454/sift/internal/tracing"
	"github.com/raysh454/sift/internal/webclient"
)

// DefaultConfigFile is looked up in the working directory, then under the
// XDG config home.
const DefaultConfigFile = "sift.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

type ServerConfig struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`
	// AllowedOrigins feeds the CORS and websocket origin checks. "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// Metrics exposes GET /metrics.
	Metrics bool `yaml:"metrics"`
}

type ScanConfig struct {
	// MaxConcurrency caps how many tools of one scan run at once. Zero means
	// no cap.
	MaxConcurrency int `yaml:"max_concurrency"`
	// Deadline bounds a whole scan; tools still running when it passes are
	// recorded as failed.
	Deadline time.Duration `yaml:"deadline"`
	// PersistTimeout bounds the final write of the run record.
	PersistTimeout time.Duration `yaml:"persist_timeout"`
	// EventBuffer is the per-subscriber progress channel size.
	EventBuffer int `yaml:"event_buffer"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the runtime configuration of the service and CLI.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// StorageRoot holds the SQLite database.
	StorageRoot string `yaml:"storage_root"`

	Logging   LoggingConfig    `yaml:"logging"`
	Scan      ScanConfig       `yaml:"scan"`
	Tools     tools.Config     `yaml:"tools"`
	WebClient webclient.Config `yaml:"webclient"`
	Tracing   tracing.Config   `yaml:"tracing"`
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
			Metrics:        true,
		},
		StorageRoot: filepath.Join(xdg.DataHome, "sift"),
		Logging:     LoggingConfig{Level: "info"},
		Scan: ScanConfig{
			MaxConcurrency: 4,
			Deadline:       2 * time.Minute,
			PersistTimeout: 10 * time.Second,
			EventBuffer:    32,
		},
		Tools: tools.DefaultConfig(),
		WebClient: webclient.Config{
			Client:    webclient.ClientNetHTTP,
			Timeout:   45 * time.Second,
			UserAgent: "sift/0.1",
		},
	}
}

// DBPath is the SQLite file under StorageRoot.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageRoot, "sift.db")
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.StorageRoot == "" {
		return fmt.Errorf("storage_root is required")
	}
	if c.Scan.MaxConcurrency < 0 {
		return fmt.Errorf("scan.max_concurrency must not be negative")
	}
	if c.Scan.Deadline <= 0 {
		return fmt.Errorf("scan.deadline must be positive")
	}
	if c.Scan.EventBuffer < 1 {
		return fmt.Errorf("scan.event_buffer must be at least 1")
	}
	return c.Tools.Validate()
}

// LoadConfigFile decodes the YAML file at path on top of the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for sift.yaml in the current directory
// 3. Look for sift/sift.yaml under the XDG config home
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := filepath.Join(xdg.ConfigHome, "sift", DefaultConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// LoadConfig resolves the config file, applies environment overrides and
// validates the result. An explicit configPath that does not exist is an
// error; a missing default file is not.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if path := FindConfigFile(configPath); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}

	ApplyEnv(cfg, os.Getenv)
	cfg.StorageRoot = expandPath(cfg.StorageRoot)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays SIFT_* environment variables. Service URLs and API keys
// usually arrive this way rather than through the file.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.ListenAddr, "SIFT_LISTEN_ADDR")
	set(&cfg.StorageRoot, "SIFT_STORAGE_ROOT")
	set(&cfg.Logging.Level, "SIFT_LOG_LEVEL")
	set(&cfg.Tracing.Endpoint, "SIFT_OTLP_ENDPOINT")

	set(&cfg.Tools.Maigret.URL, "SIFT_MAIGRET_URL")
	set(&cfg.Tools.Maigret.APIKey, "SIFT_MAIGRET_API_KEY")
	set(&cfg.Tools.SpiderFoot.URL, "SIFT_SPIDERFOOT_URL")
	set(&cfg.Tools.SpiderFoot.APIKey, "SIFT_SPIDERFOOT_API_KEY")
	set(&cfg.Tools.ReconNG.URL, "SIFT_RECONNG_URL")
	set(&cfg.Tools.ReconNG.APIKey, "SIFT_RECONNG_API_KEY")
	set(&cfg.Tools.Harvester.URL, "SIFT_HARVESTER_URL")
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
