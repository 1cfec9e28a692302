// Package config loads client settings from an optional config file and
// PULSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the client settings.
type Config struct {
	APIBaseURL      string `mapstructure:"api_base_url"`
	SupabaseURL     string `mapstructure:"supabase_url"`
	SupabaseAnonKey string `mapstructure:"supabase_anon_key"`
	RedirectURL     string `mapstructure:"redirect_url"`
	SessionPath     string `mapstructure:"session_path"`
	LogPath         string `mapstructure:"log_path"`
	LogLevel        string `mapstructure:"log_level"`
}

// Load reads path (or config.yaml in the user config dir when path is empty)
// and the environment. Missing required settings are an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	stateDir := defaultStateDir()
	v.SetDefault("api_base_url", "")
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.SetDefault("redirect_url", "")
	v.SetDefault("session_path", filepath.Join(stateDir, "session.json"))
	v.SetDefault("log_path", filepath.Join(stateDir, "pulse.log"))
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("PULSE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "pulse"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing required setting.
func (c *Config) Validate() error {
	required := []struct {
		env   string
		value string
	}{
		{"PULSE_API_BASE_URL", c.APIBaseURL},
		{"PULSE_SUPABASE_URL", c.SupabaseURL},
		{"PULSE_SUPABASE_ANON_KEY", c.SupabaseAnonKey},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pulse")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "pulse")
	}
	return filepath.Join(os.TempDir(), "pulse")
}
