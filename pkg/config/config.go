// Package config loads flowstate.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/flowstate/pkg/saved"
	"github.com/go-drift/flowstate/pkg/stream"
)

// FileName is the configuration file looked up by LoadOptional.
const FileName = "flowstate.yaml"

// Defaults applied by Resolve.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultStorePath   = "state.yaml"
	DefaultStopTimeout = 5 * time.Second
	DispatchImmediate  = "immediate"
	DispatchLoop       = "loop"

	// NeverExpire is the replay_expiration literal keeping the last value.
	NeverExpire = "never"
)

// Config represents flowstate.yaml.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Sharing  SharingConfig  `yaml:"sharing"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// StoreConfig locates the file store.
type StoreConfig struct {
	Path      string `yaml:"path,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// SharingConfig sets the restart policy of persisted states. Durations use
// Go syntax ("5s", "1m30s"). The replay expiration also accepts "never",
// its default, to keep the last value forever; "0s" resets it as soon as the
// upstream stops.
type SharingConfig struct {
	StopTimeout      string `yaml:"stop_timeout,omitempty"`
	ReplayExpiration string `yaml:"replay_expiration,omitempty"`
	Reset            string `yaml:"reset,omitempty"`
}

// DispatchConfig selects where values are delivered and launched work runs.
type DispatchConfig struct {
	Mode     string `yaml:"mode,omitempty"`
	PoolSize int    `yaml:"pool_size,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LoadOptional reads flowstate.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Resolved holds configuration values with defaults applied.
type Resolved struct {
	LogLevel     zerolog.Level
	LogFormat    string
	StorePath    string
	Namespace    string
	Started      stream.Started
	Reset        saved.ResetPolicy
	DispatchMode string
	PoolSize     int
	MetricsAddr  string
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve validates c and fills in defaults.
func (c *Config) Resolve() (*Resolved, error) {
	var errs []error
	r := &Resolved{
		LogFormat:    strings.ToLower(strings.TrimSpace(c.Log.Format)),
		StorePath:    strings.TrimSpace(c.Store.Path),
		Namespace:    strings.TrimSpace(c.Store.Namespace),
		DispatchMode: strings.ToLower(strings.TrimSpace(c.Dispatch.Mode)),
		PoolSize:     c.Dispatch.PoolSize,
		MetricsAddr:  strings.TrimSpace(c.Metrics.Addr),
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		level = DefaultLogLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	r.LogLevel = parsed

	switch r.LogFormat {
	case "":
		r.LogFormat = DefaultLogFormat
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be json or text, got %q", c.Log.Format))
	}

	if r.StorePath == "" {
		r.StorePath = DefaultStorePath
	}

	stop, err := parseDuration("sharing.stop_timeout", c.Sharing.StopTimeout, DefaultStopTimeout)
	if err != nil {
		errs = append(errs, err)
	}
	expiration := stream.Never
	if raw := strings.TrimSpace(c.Sharing.ReplayExpiration); !strings.EqualFold(raw, NeverExpire) {
		expiration, err = parseDuration("sharing.replay_expiration", raw, stream.Never)
		if err != nil {
			errs = append(errs, err)
		}
	}
	r.Started = stream.WhileSubscribed(stop, expiration)

	r.Reset, err = saved.ParseResetPolicy(strings.ToLower(strings.TrimSpace(c.Sharing.Reset)))
	if err != nil {
		errs = append(errs, fmt.Errorf("sharing.reset: %w", err))
	}

	switch r.DispatchMode {
	case "":
		r.DispatchMode = DispatchImmediate
	case DispatchImmediate, DispatchLoop:
	default:
		errs = append(errs, fmt.Errorf("dispatch.mode: must be immediate or loop, got %q", c.Dispatch.Mode))
	}
	if r.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("dispatch.pool_size: must not be negative, got %d", r.PoolSize))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", field, value)
	}
	return d, nil
}
