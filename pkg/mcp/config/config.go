// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package config defines the client/transport/retry/health-check
// configuration surface for the MCP runtime, loadable from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// RetryConfig configures the transport retry wrapper.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      bool          `mapstructure:"jitter"`
	Policy      string        `mapstructure:"policy"` // "constant", "linear", "exponential"
}

// HealthCheckConfig configures the endpoint's background liveness probe.
type HealthCheckConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Interval             time.Duration `mapstructure:"interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

// Config is the §6 configuration surface: the recognized options and their
// effects on transport, endpoint, and retry behavior.
type Config struct {
	// ConnectTimeout caps transport establishment (transport.start).
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// SendTimeout is the per-request deadline for a single send() call.
	SendTimeout time.Duration `mapstructure:"send_timeout"`

	// RequestTimeout and ResponseTimeout bound the HTTP transport's
	// underlying request/response round trip, independent of SendTimeout.
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`

	// MaxMessageSize is the pre-send size guard, in bytes.
	MaxMessageSize int `mapstructure:"max_message_size"`

	Retry       RetryConfig       `mapstructure:"retry"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`

	// ValidateCertificates controls TLS verification for HTTP transports.
	ValidateCertificates bool `mapstructure:"validate_certificates"`

	// AutoResumeStreams reattaches the SSE read loop after a disconnect
	// using the last-seen event id, rather than starting a fresh stream.
	AutoResumeStreams bool `mapstructure:"auto_resume_streams"`

	// MaxSimultaneousStreams caps concurrent SSE fan-in per endpoint.
	MaxSimultaneousStreams int `mapstructure:"max_simultaneous_streams"`
}

// defaultMaxMessageSize is 4 MiB, per §6.
const defaultMaxMessageSize = 4 * 1024 * 1024

// Default returns the configuration's zero-value-unsafe defaults.
func Default() Config {
	return Config{
		ConnectTimeout:  30 * time.Second,
		SendTimeout:     30 * time.Second,
		RequestTimeout:  30 * time.Second,
		ResponseTimeout: 30 * time.Second,
		MaxMessageSize:  defaultMaxMessageSize,
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    30 * time.Second,
			Jitter:      true,
			Policy:      "exponential",
		},
		HealthCheck: HealthCheckConfig{
			Enabled:              false,
			Interval:             30 * time.Second,
			MaxReconnectAttempts: 3,
		},
		ValidateCertificates:   true,
		AutoResumeStreams:      true,
		MaxSimultaneousStreams: 4,
	}
}

// Validate checks the configuration for internally-inconsistent values.
func (c Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be > 0")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send_timeout must be > 0")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size must be > 0")
	}
	switch c.Retry.Policy {
	case "constant", "linear", "exponential":
	default:
		return fmt.Errorf("retry.policy must be one of constant, linear, exponential, got %q", c.Retry.Policy)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be >= 0")
	}
	if c.HealthCheck.Enabled && c.HealthCheck.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("health_check.max_reconnect_attempts must be > 0 when enabled")
	}
	return nil
}

// Load reads configuration from cfgFile (if non-empty) or the standard
// search locations, overlaying the file on the defaults; environment
// variables prefixed MCP_ take precedence over both (env > file >
// defaults). No command-line flag layer is bound.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mcp/")
		v.SetConfigName("mcp")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix("MCP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("send_timeout", d.SendTimeout)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("response_timeout", d.ResponseTimeout)
	v.SetDefault("max_message_size", d.MaxMessageSize)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.jitter", d.Retry.Jitter)
	v.SetDefault("retry.policy", d.Retry.Policy)
	v.SetDefault("health_check.enabled", d.HealthCheck.Enabled)
	v.SetDefault("health_check.interval", d.HealthCheck.Interval)
	v.SetDefault("health_check.max_reconnect_attempts", d.HealthCheck.MaxReconnectAttempts)
	v.SetDefault("validate_certificates", d.ValidateCertificates)
	v.SetDefault("auto_resume_streams", d.AutoResumeStreams)
	v.SetDefault("max_simultaneous_streams", d.MaxSimultaneousStreams)
}
