package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProvider = "gemini"
	DefaultModel    = "gemini-1.5-pro"
	dirName         = ".wsaudit"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// WorkspaceConfig is how the audited tenant is reached.
type WorkspaceConfig struct {
	Domain              string        `yaml:"domain"`
	AdminEmail          string        `yaml:"admin_email"`
	CredentialsFile     string        `yaml:"credentials_file"`
	Customer            string        `yaml:"customer,omitempty"`
	RequestDelay        time.Duration `yaml:"request_delay,omitempty"`
	MaxConcurrentChecks int           `yaml:"max_concurrent_checks,omitempty"`
}

type AuditConfig struct {
	Frameworks     []string `yaml:"frameworks,omitempty"`
	ControlMapFile string   `yaml:"control_map_file,omitempty"`
	LogLevel       string   `yaml:"log_level,omitempty"`
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
	Workspace        WorkspaceConfig           `yaml:"workspace"`
	Audit            AuditConfig               `yaml:"audit"`
}

// Env holds the environment variables that override the file.
type Env struct {
	AdminEmail      string `envconfig:"GOOGLE_WORKSPACE_ADMIN_EMAIL"`
	CredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleAPIKey    string `envconfig:"GOOGLE_API_KEY"`
	Domain          string `envconfig:"WSAUDIT_DOMAIN"`
	LogLevel        string `envconfig:"WSAUDIT_LOG_LEVEL"`
}

func Default() *Config {
	return &Config{
		SelectedProvider: DefaultProvider,
		SelectedModel:    DefaultModel,
		Providers:        make(map[string]ProviderConfig),
		Audit: AuditConfig{
			Frameworks: []string{"CMMC"},
			LogLevel:   "info",
		},
	}
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, dirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadConfig reads the config from path, or from the default location when path is
// empty. A missing file gives the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, or to the default location when path is empty.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// api keys live in here
	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overlays the environment on top of the file values.
func (c *Config) ApplyEnv() error {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	if env.AdminEmail != "" {
		c.Workspace.AdminEmail = env.AdminEmail
	}
	if env.CredentialsFile != "" {
		c.Workspace.CredentialsFile = env.CredentialsFile
	}
	if env.Domain != "" {
		c.Workspace.Domain = env.Domain
	}
	if env.LogLevel != "" {
		c.Audit.LogLevel = env.LogLevel
	}
	if env.GoogleAPIKey != "" && c.GetAPIKey(DefaultProvider) == "" {
		c.SetAPIKey(DefaultProvider, env.GoogleAPIKey)
	}
	return nil
}

func (c *Config) SetAPIKey(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}
