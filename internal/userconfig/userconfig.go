// Package userconfig manages the engine's persistent user settings, stored
// as TOML at $RECIPE_HOME/config/config.toml and editable in place or via
// Get/Set on a dotted key path.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/levitate-os/recipe/internal/config"
	"github.com/levitate-os/recipe/internal/log"
)

// configFileName is the file within Config.ConfigDir holding settings.
const configFileName = "config.toml"

// Config represents user-configurable engine settings.
type Config struct {
	// LLM contains LLM-bridge related configuration.
	LLM LLMConfig `toml:"llm"`
}

// LLMConfig holds the engine-side gate for the llm_* helper bridge.
// Which provider CLI to spawn, its timeout, byte caps, and named
// profiles live in llm.toml, owned by internal/llm.
type LLMConfig struct {
	// Enabled enables or disables LLM helpers entirely. Default is true.
	Enabled *bool `toml:"enabled,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads the config file and returns the configuration, falling back to
// defaults if the file doesn't exist. The engine-home copy wins; when it is
// absent, the XDG config search path (XDG_CONFIG_HOME then XDG_CONFIG_DIRS)
// is consulted for recipe/config.toml.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}
	path := filepath.Join(cfg.ConfigDir, configFileName)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if xdgPath, xdgErr := xdg.SearchConfigFile(filepath.Join("recipe", configFileName)); xdgErr == nil {
			path = xdgPath
		}
	}
	return loadFromPath(path)
}

// loadFromPath reads config from a specific file path (for testing).
func loadFromPath(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		mode := info.Mode().Perm()
		if mode&0077 != 0 {
			log.Default().Warn("config file has permissive permissions",
				"path", path,
				"mode", fmt.Sprintf("%04o", mode),
				"expected", "0600",
			)
		}
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return userCfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.saveToPath(filepath.Join(cfg.ConfigDir, configFileName))
}

// saveToPath writes config to a specific file path using an atomic
// write-then-rename with 0600 permissions, so a crash mid-write never
// leaves a truncated config file behind.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	encoder := toml.NewEncoder(tmpFile)
	if err := encoder.Encode(c); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// LLMEnabled returns whether LLM helpers are enabled. Defaults to true.
func (c *Config) LLMEnabled() bool {
	if c.LLM.Enabled == nil {
		return true
	}
	return *c.LLM.Enabled
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
func (c *Config) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "llm.enabled":
		return strconv.FormatBool(c.LLMEnabled()), true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "llm.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for llm.enabled: must be true or false")
		}
		c.LLM.Enabled = &b
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// AvailableKeys returns a list of all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"llm.enabled": "Enable the llm_extract helper bridge (true/false); provider, timeout, byte caps, and profiles live in llm.toml",
	}
}
