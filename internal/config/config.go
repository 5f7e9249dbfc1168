// Package config loads, validates, and watches the gitshadow
// configuration. Settings come from three layers: built-in defaults,
// the YAML config file, and GITSHADOW_* environment variables, each
// overriding the one before it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gitshadow/gitshadow/internal/github"
)

// Project is one directory-to-remote mapping.
type Project struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Remote string `mapstructure:"remote" yaml:"remote"`
}

// Identity is the author recorded on backup commits.
type Identity struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// Dashboard configures the optional local status dashboard.
type Dashboard struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Config is the full configuration tree.
type Config struct {
	Token    string   `mapstructure:"token" yaml:"token"`
	Identity Identity `mapstructure:"identity" yaml:"identity"`

	Debounce       time.Duration `mapstructure:"debounce" yaml:"debounce"`
	PushInterval   time.Duration `mapstructure:"push_interval" yaml:"push_interval"`
	StabilizeDelay time.Duration `mapstructure:"stabilize_delay" yaml:"stabilize_delay"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	NetworkTimeout time.Duration `mapstructure:"network_timeout" yaml:"network_timeout"`

	RemoteName   string `mapstructure:"remote_name" yaml:"remote_name"`
	RemoteBranch string `mapstructure:"remote_branch" yaml:"remote_branch"`

	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	Dashboard Dashboard `mapstructure:"dashboard" yaml:"dashboard"`

	Projects []Project `mapstructure:"projects" yaml:"projects"`
}

// DefaultDir returns the directory the config file lives in by default.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "gitshadow"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Init wires viper: the explicit file if given, otherwise the default
// search path, plus the GITSHADOW_* environment overlay and defaults
// for every tunable. The config file itself is optional at this stage;
// Validate decides what is actually required.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GITSHADOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Keys need a default registered for the environment overlay to
	// reach them through Unmarshal.
	viper.SetDefault("token", "")
	viper.SetDefault("identity.name", "")
	viper.SetDefault("identity.email", "")
	viper.SetDefault("debounce", "3s")
	viper.SetDefault("push_interval", "5m")
	viper.SetDefault("stabilize_delay", "500ms")
	viper.SetDefault("command_timeout", "30s")
	viper.SetDefault("network_timeout", "2m")
	viper.SetDefault("remote_name", "origin")
	viper.SetDefault("remote_branch", "main")
	viper.SetDefault("log_file", "")
	viper.SetDefault("dashboard.enabled", false)
	viper.SetDefault("dashboard.port", 8037)

	_ = viper.ReadInConfig()
	return nil
}

// Load unmarshals the current configuration state.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot parse configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the daemon cannot start without. These
// are fatal at startup; per-project problems go through ValidateProject
// instead so one bad entry cannot take the whole daemon down.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required (set it in the config file or GITSHADOW_TOKEN)")
	}
	if c.Identity.Name == "" || c.Identity.Email == "" {
		return fmt.Errorf("identity.name and identity.email are required")
	}
	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project is required")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	if c.PushInterval <= 0 {
		return fmt.Errorf("push_interval must be positive, got %s", c.PushInterval)
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port < 1 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be between 1 and 65535, got %d", c.Dashboard.Port)
	}
	return nil
}

// ValidateProject checks a single project entry.
func ValidateProject(p Project) error {
	if p.Path == "" {
		return fmt.Errorf("project has no path")
	}
	if p.Remote == "" {
		return fmt.Errorf("project %s has no remote", p.Path)
	}
	if _, _, err := github.ParseOwnerRepo(p.Remote); err != nil {
		return fmt.Errorf("project %s: %w", p.Path, err)
	}
	return nil
}
