// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Control    ControlConfig           `yaml:"control"`
	Library    LibraryConfig           `yaml:"library"`
	Playback   PlaybackConfig          `yaml:"playback"`
	Broadcast  BroadcastConfig         `yaml:"broadcast"`
	Admin      AdminConfig             `yaml:"admin"`
	History    HistoryConfig           `yaml:"history"`
	Discovery  DiscoveryConfig         `yaml:"discovery"`
	Automation []AutomationEntry       `yaml:"automation" validate:"dive"`
	Filters    map[string]FilterConfig `yaml:"filters"`
	Log        LogConfig               `yaml:"log"`
}

// ServerConfig represents the HTTP server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080" validate:"required"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents the control protocol server configuration.
type ControlConfig struct {
	Addr           string `yaml:"addr" default:":3000" validate:"required"`
	MaxLineBytes   *int   `yaml:"max_line_bytes" default:"4096" validate:"required,gte=0"` // 0 = unlimited
	WriteTimeoutMs int    `yaml:"write_timeout_ms" default:"5000" validate:"gte=0,lte=60000"`
}

// LibraryConfig represents the track library configuration.
type LibraryConfig struct {
	Dir           string `yaml:"dir" default:"tracks" validate:"required"`
	Extension     string `yaml:"extension" default:".mp3" validate:"startswith=.,excludesall=/\\"`
	Watch         *bool  `yaml:"watch" default:"true"`
	MeasureDuration *bool  `yaml:"measure_duration" default:"true"`
}

// PlaybackConfig represents the scheduler configuration.
type PlaybackConfig struct {
	TickIntervalMs int `yaml:"tick_interval_ms" default:"100" validate:"gte=10,lte=10000"`
	ChunkSize      int `yaml:"chunk_size" default:"4096" validate:"gte=512,lte=1048576"`
}

// BroadcastConfig represents the listener transport configuration.
type BroadcastConfig struct {
	SinkQueueChunks int  `yaml:"sink_queue_chunks" default:"4" validate:"gte=1,lte=1024"`
	WriteTimeoutMs  int  `yaml:"write_timeout_ms" default:"5000" validate:"gte=1,lte=60000"`
	WebSocket       bool `yaml:"websocket"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// HistoryConfig represents the play history configuration.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn" default:"history.db"`
	RecentLimit int    `yaml:"recent_limit" default:"20" validate:"gte=1,lte=1000"`
}

// DiscoveryConfig represents the mDNS advertisement configuration.
type DiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name" default:"19cast"`
}

// AutomationEntry is one timed control command.
type AutomationEntry struct {
	Schedule string `yaml:"schedule" validate:"required"` // Standard 5-field cron expression
	Command  string `yaml:"command" validate:"required,startswith=/"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"` // "stdout", "stderr", or file path
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies environment overrides and
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("JUKEBOX_TRACKS_DIR"); v != "" {
		c.Library.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateAutomation(); err != nil {
		return err
	}

	return nil
}

// validateAutomation checks that every schedule is a valid cron expression.
func (c *Config) validateAutomation() error {
	for i, entry := range c.Automation {
		if _, err := cron.ParseStandard(entry.Schedule); err != nil {
			return errors.Wrapf(err, "automation[%d]: invalid schedule %q", i, entry.Schedule)
		}
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// TickInterval returns the scheduler tick interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickIntervalMs) * time.Millisecond
}

// MaxLineBytes returns the control line limit, 0 meaning unlimited.
func (c *Config) MaxLineBytes() int {
	if c.Control.MaxLineBytes == nil {
		return 0
	}
	return *c.Control.MaxLineBytes
}

// ControlWriteTimeout returns the control reply write deadline.
func (c *Config) ControlWriteTimeout() time.Duration {
	return time.Duration(c.Control.WriteTimeoutMs) * time.Millisecond
}

// BroadcastWriteTimeout returns the listener write deadline.
func (c *Config) BroadcastWriteTimeout() time.Duration {
	return time.Duration(c.Broadcast.WriteTimeoutMs) * time.Millisecond
}

// WatchLibrary reports whether the library listing is watched and cached.
func (c *Config) WatchLibrary() bool {
	return c.Library.Watch == nil || *c.Library.Watch
}

// MeasureDuration reports whether track durations are measured on open.
func (c *Config) MeasureDuration() bool {
	return c.Library.MeasureDuration == nil || *c.Library.MeasureDuration
}
