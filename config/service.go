package config

import (
	"fmt"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/logger"
	"github.com/kbukum/chanflow/observability"
	"github.com/kbukum/chanflow/resilience"
	"github.com/kbukum/chanflow/validation"
)

// ServiceConfig contains the fields every chanflow binary needs.
type ServiceConfig struct {
	Name        string               `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string               `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string               `yaml:"version" mapstructure:"version"`
	Logging     logger.Config        `yaml:"logging" mapstructure:"logging"`
	Telemetry   observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults applies default values to the service configuration.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = c.Environment
	}
	c.Telemetry.ApplyDefaults()
}

// Validate validates the service configuration.
func (c *ServiceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("config.telemetry: %w", err)
	}
	return nil
}

// StreamConfig holds the engine knobs a binary exposes.
type StreamConfig struct {
	// Capacity bounds every stage's output channel. 0 means unbounded.
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"gte=0"`
	// Width is the fan-out lane count.
	Width int `yaml:"width" mapstructure:"width" validate:"gte=1,lte=1024"`
	// BatchSize is the batch stage size.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=1"`
	// DataDir is the input directory for file based commands.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	// RetryAttempts is how many times a failing transform runs before its
	// stage fails. 1 disables retries.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts" validate:"gte=1,lte=10"`
}

// ApplyDefaults applies default values to the stream configuration.
func (c *StreamConfig) ApplyDefaults() {
	if c.Width == 0 {
		c.Width = 2
	}
	if c.BatchSize == 0 {
		c.BatchSize = 2
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 1
	}
}

// Validate validates the stream configuration.
func (c *StreamConfig) Validate() error {
	return validation.Validate(c)
}

// RetryConfig returns the retry policy for transform stages, or false when
// retries are disabled.
func (c *StreamConfig) RetryConfig() (resilience.RetryConfig, bool) {
	if c.RetryAttempts <= 1 {
		return resilience.RetryConfig{}, false
	}
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.RetryAttempts
	return cfg, true
}

// ChannelCapacity converts Capacity to a channel capacity.
func (c *StreamConfig) ChannelCapacity() channel.Capacity {
	if c.Capacity <= 0 {
		return channel.Unbounded()
	}
	return channel.Bounded(c.Capacity)
}

// AppConfig is the full configuration of the chanflow CLI.
type AppConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Stream        StreamConfig `yaml:"stream" mapstructure:"stream"`
}

// Defaults returns the loader defaults for AppConfig. Registering them lets
// environment variables such as STREAM_WIDTH override keys missing from the
// config file.
func Defaults() map[string]any {
	return map[string]any{
		"name":                  "chanflow",
		"environment":           "development",
		"logging.level":         "info",
		"logging.format":        logger.FormatConsole,
		"logging.output":        "stderr",
		"telemetry.enabled":     false,
		"stream.capacity":       0,
		"stream.width":          2,
		"stream.batch_size":     2,
		"stream.data_dir":       "data",
		"stream.retry_attempts": 1,
	}
}

// ApplyDefaults applies defaults to every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Stream.ApplyDefaults()
}

// Validate validates every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("config.stream: %w", err)
	}
	return nil
}
