// Package config loads cfdpd's configuration: which local entity ID
// it terminates traffic for, which virtual filestore backend it reads
// and writes through, where the Remote Entity Configuration Table is
// persisted, and how its control plane, logging, and telemetry are
// configured.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cfdpgo/entity/internal/bytesize"
	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/internal/telemetry"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig/store"
	"github.com/cfdpgo/entity/pkg/controlplane/api"
)

// FilestoreBackend selects which filestore.Filestore implementation
// cfdpd reads and writes transaction payloads through.
type FilestoreBackend string

const (
	BackendLocal  FilestoreBackend = "local"
	BackendBadger FilestoreBackend = "badger"
	BackendS3     FilestoreBackend = "s3"
)

// FilestoreConfig configures the selected virtual filestore backend.
type FilestoreConfig struct {
	Backend FilestoreBackend `mapstructure:"backend" yaml:"backend"`

	// LocalPath roots the "local" backend.
	LocalPath string `mapstructure:"local_path" yaml:"local_path"`

	// BadgerDir roots the "badger" backend's on-disk database.
	BadgerDir string `mapstructure:"badger_dir" yaml:"badger_dir"`

	// S3Bucket and S3Prefix configure the "s3" backend.
	S3Bucket         string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix         string `mapstructure:"s3_prefix" yaml:"s3_prefix"`
	S3Region         string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Endpoint       string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKeyID    string `mapstructure:"s3_access_key_id" yaml:"s3_access_key_id"`
	S3SecretKey      string `mapstructure:"s3_secret_access_key" yaml:"s3_secret_access_key"`
	S3ForcePathStyle bool   `mapstructure:"s3_force_path_style" yaml:"s3_force_path_style"`

	// MaxObjectSize caps the size of any single file this entity will
	// write through the filestore, accepting human-readable forms like
	// "2Gi" or "500MB". Zero disables the limit.
	MaxObjectSize bytesize.ByteSize `mapstructure:"max_object_size" yaml:"max_object_size"`
}

// Config is cfdpd's top-level configuration.
type Config struct {
	// LocalEntityID is this process's own entity ID value.
	LocalEntityID uint64 `mapstructure:"local_entity_id" yaml:"local_entity_id"`
	// EntityIDWidth is the byte width (1, 2, 4, or 8) entity and
	// transaction sequence numbers are encoded at.
	EntityIDWidth int `mapstructure:"entity_id_width" yaml:"entity_id_width"`

	Filestore     FilestoreConfig `mapstructure:"filestore" yaml:"filestore"`
	RemoteConfigs store.Config    `mapstructure:"remote_configs" yaml:"remote_configs"`
	ControlPlane  api.Config      `mapstructure:"control_plane" yaml:"control_plane"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// MetricsPort serves /metrics for Prometheus scraping. Default: 9090.
	MetricsPort int `mapstructure:"metrics_port" yaml:"metrics_port"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig configures internal/telemetry tracing and profiling.
type TelemetryConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool          `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64       `mapstructure:"sample_rate" yaml:"sample_rate"`
	Profiling  ProfilingSpec `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingSpec configures continuous profiling via Pyroscope.
type ProfilingSpec struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// applyDefaults fills in zero values with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.EntityIDWidth == 0 {
		cfg.EntityIDWidth = 4
	}
	if cfg.Filestore.Backend == "" {
		cfg.Filestore.Backend = BackendLocal
	}
	if cfg.Filestore.LocalPath == "" {
		cfg.Filestore.LocalPath = filepath.Join(getConfigDir(), "files")
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	cfg.RemoteConfigs.ApplyDefaults()
}

// Validate rejects configurations that cannot start a daemon.
func Validate(cfg *Config) error {
	if cfg.LocalEntityID == 0 {
		return fmt.Errorf("local_entity_id must be set")
	}
	switch cfg.EntityIDWidth {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("entity_id_width must be 1, 2, 4, or 8, got %d", cfg.EntityIDWidth)
	}
	switch cfg.Filestore.Backend {
	case BackendLocal:
		if cfg.Filestore.LocalPath == "" {
			return fmt.Errorf("filestore.local_path must be set for the local backend")
		}
	case BackendBadger:
		if cfg.Filestore.BadgerDir == "" {
			return fmt.Errorf("filestore.badger_dir must be set for the badger backend")
		}
	case BackendS3:
		if cfg.Filestore.S3Bucket == "" {
			return fmt.Errorf("filestore.s3_bucket must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown filestore backend %q", cfg.Filestore.Backend)
	}
	return cfg.RemoteConfigs.Validate()
}

// ToTelemetryConfig adapts the daemon's telemetry section to
// internal/telemetry.Config.
func (c *Config) ToTelemetryConfig(serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    "cfdpd",
		ServiceVersion: serviceVersion,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// ToProfilingConfig adapts the daemon's profiling section to
// internal/telemetry.ProfilingConfig.
func (c *Config) ToProfilingConfig(serviceVersion string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    "cfdpd",
		ServiceVersion: serviceVersion,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}

// ToLoggerConfig adapts the daemon's logging section to logger.Config.
func (c *Config) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// Load reads configuration from configPath (or the default location
// if empty), falling back to defaults when no file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if found {
		hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), byteSizeDecodeHook())
		if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CFDPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/cfdpd, or ~/.config/cfdpd, or
// ./.cfdpd if the home directory cannot be determined.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cfdpd")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "cfdpd")
	}
	return ".cfdpd"
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
