package tools

import (
	"fmt"
	"time"
)

// Tool identifiers.
const (
	Maigret    = "maigret"
	SpiderFoot = "spiderfoot"
	ReconNG    = "reconng"
	Harvester  = "harvester"
)

// ToolConfig configures one external service.
type ToolConfig struct {
	// URL is the service base URL. Empty means the tool is not configured.
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Price is the fixed per-invocation cost in credits.
	Price int `yaml:"price"`
	// Timeout bounds a single call to the service.
	Timeout time.Duration `yaml:"timeout"`
	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	// Disabled unregisters the tool entirely.
	Disabled bool `yaml:"disabled"`
}

// Config holds the per-tool settings.
type Config struct {
	Maigret    ToolConfig `yaml:"maigret"`
	SpiderFoot ToolConfig `yaml:"spiderfoot"`
	ReconNG    ToolConfig `yaml:"reconng"`
	Harvester  ToolConfig `yaml:"harvester"`
}

const defaultToolTimeout = 30 * time.Second

// DefaultConfig returns the stock price table with every service unconfigured.
func DefaultConfig() Config {
	return Config{
		Maigret:    ToolConfig{Price: 5, Timeout: defaultToolTimeout},
		SpiderFoot: ToolConfig{Price: 10, Timeout: defaultToolTimeout},
		ReconNG:    ToolConfig{Price: 10, Timeout: defaultToolTimeout},
		Harvester:  ToolConfig{Price: 10, Timeout: defaultToolTimeout, RateLimit: 1, Burst: 1},
	}
}

// ByName returns the tool settings keyed by tool id.
func (c Config) ByName() map[string]ToolConfig {
	return map[string]ToolConfig{
		Maigret:    c.Maigret,
		SpiderFoot: c.SpiderFoot,
		ReconNG:    c.ReconNG,
		Harvester:  c.Harvester,
	}
}

// Validate checks prices, timeouts and rate limits.
func (c Config) Validate() error {
	for name, tc := range c.ByName() {
		if tc.Price < 0 {
			return fmt.Errorf("tool %s: price must be non-negative", name)
		}
		if tc.Timeout < 0 {
			return fmt.Errorf("tool %s: timeout must be non-negative", name)
		}
		if tc.RateLimit < 0 {
			return fmt.Errorf("tool %s: rate_limit must be non-negative", name)
		}
		if tc.Burst < 0 {
			return fmt.Errorf("tool %s: burst must be non-negative", name)
		}
	}
	return nil
}
