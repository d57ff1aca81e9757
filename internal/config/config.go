package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is used when neither the config file nor the environment names a backend.
const DefaultBaseURL = "http://localhost:8000"

// BaseURLEnv overrides api.base_url. LegacyBaseURLEnv is honoured for
// deployments that still export the web client's variable.
const (
	BaseURLEnv       = "RAGQA_API_BASE"
	LegacyBaseURLEnv = "NEXT_PUBLIC_API_BASE"
)

// APIConfig holds connection details for the document QA backend.
type APIConfig struct {
	BaseURL           string `yaml:"base_url"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	UploadTimeoutSecs int    `yaml:"upload_timeout_secs"`
}

// Timeout is the per-request deadline for listing and questions.
func (c APIConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// UploadTimeout is the per-request deadline for uploads.
func (c APIConfig) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSecs) * time.Second
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// UIConfig holds interaction policies.
type UIConfig struct {
	// SelectUploaded makes a freshly uploaded document the active scope.
	SelectUploaded *bool `yaml:"select_uploaded,omitempty"`
}

// SelectsUploaded reports the effective upload selection policy.
func (c UIConfig) SelectsUploaded() bool { return c.SelectUploaded == nil || *c.SelectUploaded }

// AppConfig is the root application configuration structure.
type AppConfig struct {
	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`
	UI  UIConfig  `yaml:"ui"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./ragqa.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "ragqa.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the resolved configuration is usable.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSecs < 0 || c.API.UploadTimeoutSecs < 0 {
		return errors.New("api timeouts must not be negative")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultLogPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "ragqa", "ragqa.log")
	}
	return filepath.Join(os.TempDir(), "ragqa.log")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		API: APIConfig{BaseURL: DefaultBaseURL, TimeoutSecs: 120, UploadTimeoutSecs: 600},
		Log: LogConfig{File: defaultLogPath(), Level: "info", MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30, Compress: true},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = 120
	}
	if cfg.API.UploadTimeoutSecs == 0 {
		cfg.API.UploadTimeoutSecs = 600
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogPath()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
}

func applyEnv(cfg *AppConfig) {
	for _, key := range []string{BaseURLEnv, LegacyBaseURLEnv} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.API.BaseURL = v
			break
		}
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
}
