package profile

// Settings represents global application configuration.
type Settings struct {
	DefaultProfile string `yaml:"default_profile" toml:"default_profile" json:"default_profile"`
	LogLevel       string `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogDir         string `yaml:"log_dir,omitempty" toml:"log_dir,omitempty" json:"log_dir,omitempty"`
}

// DefaultSettings returns the settings used when the config file has none.
func DefaultSettings() Settings {
	return Settings{
		DefaultProfile: "default",
		LogLevel:       "info",
	}
}
