// Package config loads mirror-agent settings from a YAML file with MIRROR_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// EnvPrefix prefixes environment overrides, e.g. MIRROR_SESSION_MAX_MESSAGES.
const EnvPrefix = "MIRROR"

// Device backends.
const (
	BackendX11    = "x11"
	BackendDryRun = "dryrun"
)

// Config holds all mirror-agent configuration.
type Config struct {
	Temporal  TemporalConfig       `mapstructure:"temporal" yaml:"temporal"`
	Session   models.SessionConfig `mapstructure:"session" yaml:"-"`
	Device    DeviceConfig         `mapstructure:"device" yaml:"device"`
	Storage   StorageConfig        `mapstructure:"storage" yaml:"storage"`
	Anthropic AnthropicConfig      `mapstructure:"anthropic" yaml:"anthropic"`
	API       APIConfig            `mapstructure:"api" yaml:"api"`
}

// TemporalConfig overrides the envconfig-derived connection.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" yaml:"host_port"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// DeviceConfig selects how the mirrored window is captured and driven.
type DeviceConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// DryRunImage is the screenshot served by the dryrun backend.
	DryRunImage string `mapstructure:"dry_run_image" yaml:"dry_run_image"`
}

// StorageConfig locates on-disk state.
type StorageConfig struct {
	ScreenshotDir   string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	AuditJSONL      string `mapstructure:"audit_jsonl" yaml:"audit_jsonl"`
	// AuditSQLite enables the SQLite audit sink when set.
	AuditSQLite string `mapstructure:"audit_sqlite" yaml:"audit_sqlite"`
}

// AnthropicConfig holds provider connection overrides.
type AnthropicConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// APIConfig configures the local HTTP control API.
type APIConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(configDir, "mirror-agent"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the default configuration.
func Default() Config {
	dir, err := Dir()
	if err != nil {
		dir = ".mirror-agent"
	}
	return Config{
		Session: models.DefaultSessionConfig(),
		Device:  DeviceConfig{Backend: BackendX11},
		Storage: StorageConfig{
			ScreenshotDir:   filepath.Join(dir, "screenshots"),
			CredentialsPath: filepath.Join(dir, "credentials.json"),
			AuditJSONL:      filepath.Join(dir, "audit.jsonl"),
		},
		API: APIConfig{Addr: "127.0.0.1:8765"},
	}
}

// Load reads path (or the default location when path is empty) and applies
// environment overrides. A missing default file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else if def, err := DefaultPath(); err == nil {
		v.SetConfigFile(def)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFound) || (path == "" && errors.Is(err, os.ErrNotExist))) {
			return Default(), fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	s := cfg.Session
	defaults := map[string]interface{}{
		"temporal.host_port":          cfg.Temporal.HostPort,
		"temporal.namespace":          cfg.Temporal.Namespace,
		"session.model.model":         s.Model.Model,
		"session.model.temperature":   s.Model.Temperature,
		"session.model.max_tokens":    s.Model.MaxTokens,
		"session.codec.byte_ceiling":  s.Codec.ByteCeiling,
		"session.codec.start_quality": s.Codec.StartQuality,
		"session.codec.decay_factor":  s.Codec.DecayFactor,
		"session.codec.quality_floor": s.Codec.QualityFloor,
		"session.max_messages":        s.MaxMessages,
		"session.max_images":          s.MaxImages,
		"session.settle_delay":        s.SettleDelay,
		"session.iteration_delay":     s.IterationDelay,
		"session.window_title":        s.WindowTitle,
		"session.credential_name":     s.CredentialName,
		"device.backend":              cfg.Device.Backend,
		"device.dry_run_image":        cfg.Device.DryRunImage,
		"storage.screenshot_dir":      cfg.Storage.ScreenshotDir,
		"storage.credentials_path":    cfg.Storage.CredentialsPath,
		"storage.audit_jsonl":         cfg.Storage.AuditJSONL,
		"storage.audit_sqlite":        cfg.Storage.AuditSQLite,
		"anthropic.base_url":          cfg.Anthropic.BaseURL,
		"api.addr":                    cfg.API.Addr,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate checks values that would otherwise fail deep inside a session.
func (c Config) Validate() error {
	codec := c.Session.Codec
	switch {
	case c.Session.MaxMessages < 2:
		return fmt.Errorf("session.max_messages must be at least 2, got %d", c.Session.MaxMessages)
	case codec.DecayFactor <= 0 || codec.DecayFactor >= 1:
		return fmt.Errorf("session.codec.decay_factor must be in (0, 1), got %v", codec.DecayFactor)
	case codec.StartQuality < 1 || codec.StartQuality > 100:
		return fmt.Errorf("session.codec.start_quality must be in [1, 100], got %d", codec.StartQuality)
	case codec.ByteCeiling <= 0:
		return fmt.Errorf("session.codec.byte_ceiling must be positive, got %d", codec.ByteCeiling)
	case c.Device.Backend != BackendX11 && c.Device.Backend != BackendDryRun:
		return fmt.Errorf("device.backend must be %q or %q, got %q", BackendX11, BackendDryRun, c.Device.Backend)
	case c.Device.Backend == BackendDryRun && c.Device.DryRunImage == "":
		return errors.New("device.dry_run_image is required for the dryrun backend")
	}
	return nil
}

// sessionFile is the on-disk form of models.SessionConfig with readable
// durations.
type sessionFile struct {
	Model          models.ModelConfig `yaml:"model"`
	Codec          models.CodecConfig `yaml:"codec"`
	MaxMessages    int                `yaml:"max_messages"`
	MaxImages      int                `yaml:"max_images"`
	SettleDelay    string             `yaml:"settle_delay"`
	IterationDelay string             `yaml:"iteration_delay"`
	WindowTitle    string             `yaml:"window_title"`
	CredentialName string             `yaml:"credential_name"`
}

type fileConfig struct {
	Config  `yaml:",inline"`
	Session sessionFile `yaml:"session"`
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	s := c.Session
	data, err := yaml.Marshal(fileConfig{
		Config: c,
		Session: sessionFile{
			Model:          s.Model,
			Codec:          s.Codec,
			MaxMessages:    s.MaxMessages,
			MaxImages:      s.MaxImages,
			SettleDelay:    s.SettleDelay.String(),
			IterationDelay: s.IterationDelay.String(),
			WindowTitle:    s.WindowTitle,
			CredentialName: s.CredentialName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to path, creating parent directories.
func (c Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
