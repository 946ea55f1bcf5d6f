package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Store handles persistence of profiles and settings. Files ending in .toml
// are TOML, everything else is YAML.
type Store struct {
	path string
}

// Config is the top-level structure of the config file.
type Config struct {
	Profiles []Profile `yaml:"profiles" toml:"profiles"`
	Settings Settings  `yaml:"settings" toml:"settings"`
}

// DefaultPath returns $RPCWIRE_CONFIG, or config.yaml under the user config dir.
func DefaultPath() string {
	if v := strings.TrimSpace(os.Getenv("RPCWIRE_CONFIG")); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "rpcwire", "config.yaml")
}

// NewStore creates a new profile store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) isTOML() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".toml")
}

// Load reads config from the file. A missing file yields defaults.
func (s *Store) Load() ([]Profile, Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Profile{}, DefaultSettings(), nil
		}
		return nil, Settings{}, err
	}

	var config Config
	if s.isTOML() {
		err = toml.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, Settings{}, fmt.Errorf("parse %s: %w", s.path, err)
	}

	defaults := DefaultSettings()
	if config.Settings.DefaultProfile == "" {
		config.Settings.DefaultProfile = defaults.DefaultProfile
	}
	if config.Settings.LogLevel == "" {
		config.Settings.LogLevel = defaults.LogLevel
	}

	for _, p := range config.Profiles {
		if err := p.Validate(); err != nil {
			return nil, Settings{}, err
		}
	}

	return config.Profiles, config.Settings, nil
}

// Save writes config to the file.
func (s *Store) Save(profiles []Profile, settings Settings) error {
	config := Config{
		Profiles: profiles,
		Settings: settings,
	}

	var (
		bytes []byte
		err   error
	)
	if s.isTOML() {
		bytes, err = toml.Marshal(config)
	} else {
		bytes, err = yaml.Marshal(config)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, bytes, 0600)
}

// Find returns the profile with the given id.
func Find(profiles []Profile, id string) (Profile, bool) {
	for _, p := range profiles {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// Resolve picks the profile named id, falling back to the default profile,
// and applies the RPCWIRE_URL and RPCWIRE_TOKEN overrides. With no matching
// profile an override URL alone is enough.
func Resolve(profiles []Profile, settings Settings, id string) (Profile, error) {
	if id == "" {
		id = settings.DefaultProfile
	}
	p, ok := Find(profiles, id)
	if !ok {
		p = Profile{ID: id}
	}
	if v := strings.TrimSpace(os.Getenv("RPCWIRE_URL")); v != "" {
		p.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("RPCWIRE_TOKEN")); v != "" {
		p.Token = v
	}
	if !ok && p.URL == "" {
		return Profile{}, fmt.Errorf("profile %q not found", id)
	}
	return p, p.Validate()
}
