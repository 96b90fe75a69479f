package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for local daemon mode
type LocalConfig struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Backends BackendsConfig `yaml:"backends"`
	Cache    CacheConfig    `yaml:"cache"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// BackendsConfig holds the backend service endpoints. With UseFixtures
// set, the daemon serves embedded fixture data instead of calling out.
type BackendsConfig struct {
	AuthURL       string `yaml:"auth_url"`
	OnboardingURL string `yaml:"onboarding_url"`
	ExercisingURL string `yaml:"exercising_url"`
	UseFixtures   bool   `yaml:"use_fixtures"`
	Token         string `yaml:"-"` // Loaded from secrets.yaml
}

// CacheConfig tunes the in-memory session cache.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	MaxEntries int `yaml:"max_entries"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	Backends struct {
		Token string `yaml:"token"`
	} `yaml:"backends"`
}

// PolyglotDir returns the path to ~/.polyglot
func PolyglotDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".polyglot"), nil
}

// EnsurePolyglotDir creates ~/.polyglot and subdirectories if they don't exist
func EnsurePolyglotDir() (string, error) {
	dir, err := PolyglotDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"store",
		"db",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7632,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Backends: BackendsConfig{
			AuthURL:       "http://localhost:8081",
			OnboardingURL: "http://localhost:8082",
			ExercisingURL: "http://localhost:8083",
			UseFixtures:   true,
		},
		Cache: CacheConfig{
			TTLMinutes: 15,
			MaxEntries: 512,
		},
	}
}

// LoadLocalConfig loads configuration from ~/.polyglot/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := PolyglotDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")

	// If config doesn't exist, return defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// loadSecrets loads the backend token from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	// If secrets file doesn't exist, skip
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Backends.Token = secrets.Backends.Token
	return nil
}

// SaveLocalConfig saves configuration to ~/.polyglot/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsurePolyglotDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
