// Package config loads the assistant's declarative startup configuration
// from YAML with first-match discovery.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/petalpilot/core"
)

const (
	projectConfigName = "petalpilot.yaml"
	homeConfigName    = "config.yaml"
	homeConfigDir     = ".petalpilot"
)

// Config is the full startup configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Browser  BrowserConfig  `yaml:"browser"`
	Store    StoreConfig    `yaml:"store"`
	Quota    QuotaConfig    `yaml:"quota"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Locale   string         `yaml:"locale,omitempty"`
	Personas []core.Persona `yaml:"personas,omitempty"`
}

// ProviderConfig names the language-generation backend.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key,omitempty"` // supports ${ENV} expansion
	Model  string `yaml:"model,omitempty"`
}

// BrowserConfig selects and tunes the session host.
type BrowserConfig struct {
	// Host is "rod" (a launched Chromium) or "extension" (websocket channel).
	Host string `yaml:"host,omitempty"`
	// Headless applies to the rod host only.
	Headless bool `yaml:"headless,omitempty"`
	// ListenAddr applies to the extension host only.
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// StoreConfig locates the persistence database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // empty means the default under $HOME
}

// QuotaConfig bounds daily completion usage.
type QuotaConfig struct {
	DailyLimit int `yaml:"daily_limit,omitempty"` // 0 disables metering
}

// TimeoutConfig overrides execution bounds. Values are duration strings
// ("15s", "2m"); empty keeps the defaults.
type TimeoutConfig struct {
	ToolExecute string `yaml:"tool_execute,omitempty"`
	Collect     string `yaml:"collect,omitempty"`
}

// ToolExecuteDuration parses the tool execution bound, 0 when unset.
func (t TimeoutConfig) ToolExecuteDuration() time.Duration {
	return parseDuration(t.ToolExecute)
}

// CollectDuration parses the per-session collection bound, 0 when unset.
func (t TimeoutConfig) CollectDuration() time.Duration {
	return parseDuration(t.Collect)
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider: ProviderConfig{Name: "openai"},
		Browser:  BrowserConfig{Host: "rod", ListenAddr: "127.0.0.1:8965"},
		Quota:    QuotaConfig{DailyLimit: 0},
		Locale:   "en",
	}
}

// DiscoverPath resolves the config location with first-match semantics:
// an explicit path, then petalpilot.yaml in the working directory, then
// ~/.petalpilot/config.yaml. An explicit path that does not exist is an
// error; otherwise absence means "use defaults".
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load discovers and reads the configuration, falling back to Default when
// no file exists.
func Load(explicitPath string) (Config, error) {
	path, found, err := DiscoverPath(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads one config file and merges it over the defaults.
func LoadFile(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.Provider.APIKey = os.ExpandEnv(cfg.Provider.APIKey)
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Provider.Name) == "" {
		return errors.New("provider.name is required")
	}
	switch c.Browser.Host {
	case "", "rod", "extension":
	default:
		return fmt.Errorf("unsupported browser.host %q", c.Browser.Host)
	}
	if raw := strings.TrimSpace(c.Timeouts.ToolExecute); raw != "" {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("timeouts.tool_execute: %w", err)
		}
	}
	if raw := strings.TrimSpace(c.Timeouts.Collect); raw != "" {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("timeouts.collect: %w", err)
		}
	}
	seen := make(map[string]bool, len(c.Personas))
	for _, p := range c.Personas {
		if strings.TrimSpace(p.ID) == "" {
			return errors.New("persona id is required")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
