package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/levitate-os/recipe/internal/config"
)

const (
	// llmFileName is the bridge's config file within the engine config
	// dir, or under recipe/ in the XDG config search path.
	llmFileName = "llm.toml"

	// DefaultTimeout bounds one provider subprocess run.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxInputBytes caps the prompt piped on stdin.
	DefaultMaxInputBytes = 4 << 20

	// DefaultMaxOutputBytes caps each of the subprocess's stdout and
	// stderr streams.
	DefaultMaxOutputBytes = 1 << 20
)

// Settings is the resolved llm.toml: which provider CLI to spawn and the
// limits every bridge call shares.
type Settings struct {
	DefaultProvider ProviderID
	Timeout         time.Duration
	MaxInputBytes   int
	MaxOutputBytes  int

	Claude ProviderConfig
	Codex  ProviderConfig
}

// llmFile is the on-disk shape of llm.toml. A profile section repeats
// the top-level fields; selecting a profile overlays its non-zero fields
// onto the base.
type llmFile struct {
	DefaultProvider string `toml:"default_provider"`
	TimeoutSecs     int    `toml:"timeout_secs,omitempty"`
	MaxInputBytes   int    `toml:"max_input_bytes,omitempty"`
	MaxOutputBytes  int    `toml:"max_output_bytes,omitempty"`

	Providers map[string]ProviderConfig `toml:"providers,omitempty"`
	Profiles  map[string]llmFile        `toml:"profiles,omitempty"`
}

// defaultProfile is the profile name selected for the whole process,
// set once at CLI startup from --llm-profile.
var (
	defaultProfileMu sync.RWMutex
	defaultProfile   string
)

// SetDefaultProfile selects the named llm.toml profile for every bridge
// constructed afterward. Called once from the CLI's flag parsing.
func SetDefaultProfile(name string) {
	defaultProfileMu.Lock()
	defer defaultProfileMu.Unlock()
	defaultProfile = name
}

// DefaultProfile returns the profile selected with SetDefaultProfile,
// "" if none.
func DefaultProfile() string {
	defaultProfileMu.RLock()
	defer defaultProfileMu.RUnlock()
	return defaultProfile
}

// settingsPath resolves llm.toml: the engine-home config dir wins; when
// absent there, the XDG config search path (XDG_CONFIG_HOME then
// XDG_CONFIG_DIRS) is consulted for recipe/llm.toml.
func settingsPath() (string, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return "", err
	}
	path := filepath.Join(cfg.ConfigDir, llmFileName)
	if _, statErr := os.Stat(path); statErr == nil {
		return path, nil
	}
	if xdgPath, xdgErr := xdg.SearchConfigFile(filepath.Join("recipe", llmFileName)); xdgErr == nil {
		return xdgPath, nil
	}
	return "", fmt.Errorf("no llm.toml found: create %s (or recipe/llm.toml under your XDG config dirs) with a default_provider", path)
}

// LoadSettings reads llm.toml and resolves it with the named profile
// overlaid. A default_provider is required - there is no implicit
// provider fallback. profile may be "" for the base configuration; an
// unknown profile name is an error.
func LoadSettings(profile string) (*Settings, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	return loadSettingsFromPath(path, profile)
}

func loadSettingsFromPath(path, profile string) (*Settings, error) {
	var file llmFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	resolved := file
	if profile != "" {
		p, ok := file.Profiles[profile]
		if !ok {
			return nil, fmt.Errorf("unknown LLM profile %q in %s", profile, path)
		}
		resolved = overlayProfile(file, p)
	}

	if resolved.DefaultProvider == "" {
		return nil, fmt.Errorf("%s does not set default_provider", path)
	}
	provider, err := ParseProviderID(resolved.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s := &Settings{
		DefaultProvider: provider,
		Timeout:         DefaultTimeout,
		MaxInputBytes:   DefaultMaxInputBytes,
		MaxOutputBytes:  DefaultMaxOutputBytes,
		Claude:          resolved.Providers["claude"],
		Codex:           resolved.Providers["codex"],
	}
	if resolved.TimeoutSecs > 0 {
		s.Timeout = time.Duration(resolved.TimeoutSecs) * time.Second
	}
	if resolved.MaxInputBytes > 0 {
		s.MaxInputBytes = resolved.MaxInputBytes
	}
	if resolved.MaxOutputBytes > 0 {
		s.MaxOutputBytes = resolved.MaxOutputBytes
	}
	return s, nil
}

// overlayProfile returns base with the profile's non-zero fields taking
// precedence. Provider sections replace whole, not field-by-field.
func overlayProfile(base, profile llmFile) llmFile {
	out := base
	if profile.DefaultProvider != "" {
		out.DefaultProvider = profile.DefaultProvider
	}
	if profile.TimeoutSecs > 0 {
		out.TimeoutSecs = profile.TimeoutSecs
	}
	if profile.MaxInputBytes > 0 {
		out.MaxInputBytes = profile.MaxInputBytes
	}
	if profile.MaxOutputBytes > 0 {
		out.MaxOutputBytes = profile.MaxOutputBytes
	}
	if len(profile.Providers) > 0 {
		merged := map[string]ProviderConfig{}
		for name, pc := range base.Providers {
			merged[name] = pc
		}
		for name, pc := range profile.Providers {
			merged[name] = pc
		}
		out.Providers = merged
	}
	return out
}
