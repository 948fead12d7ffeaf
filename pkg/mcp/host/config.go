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
// Package host supervises a fleet of MCP endpoints: one ConnectionRecord per
// connected server, fanning list-changed notifications into cache refreshes
// and exposing a unified event stream to the application.
package host

import (
	"fmt"

	"github.com/spf13/viper"
	mcpconfig "github.com/teradata-labs/mcp-endpoint/pkg/mcp/config"
)

// Config is the multi-server supervisor configuration: one ServerConfig per
// connectionId, plus the shared client identity and endpoint defaults
// applied to every connection.
type Config struct {
	// Servers maps connectionId to its per-server configuration.
	Servers map[string]ServerConfig `mapstructure:"servers"`

	// DynamicDiscovery holds runtime tool discovery settings. Validate
	// checks CacheSize; Host does not otherwise read them.
	DynamicDiscovery DynamicDiscoveryConfig `mapstructure:"dynamic_discovery"`

	// ClientInfo is sent as clientInfo during every connection's initialize.
	ClientInfo ClientInfo `mapstructure:"client_info"`

	// Endpoint holds the shared §6 configuration surface (timeouts, retry,
	// health-check) applied to every managed connection; no ServerConfig
	// field overrides it.
	Endpoint mcpconfig.Config `mapstructure:"endpoint"`
}

// ServerConfig defines the configuration for a single MCP server connection.
type ServerConfig struct {
	// Enabled indicates whether this server should be started.
	Enabled bool `mapstructure:"enabled"`

	// Transport selects "stdio" or "http" (alias "sse").
	Transport string `mapstructure:"transport"`

	// Command, Args, Env configure the stdio transport.
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`

	// URL configures the streamable-HTTP transport.
	URL             string `mapstructure:"url"`
	DiscoverPostURL bool   `mapstructure:"discover_post_url"`

	// ToolFilter holds include/exclude rules for this server's tools,
	// evaluated by ShouldRegisterTool. Host.AvailableTools does not apply it.
	ToolFilter ToolFilter `mapstructure:"tools"`

	// Timeout is a Go duration string (e.g. "30s"). Host does not read it:
	// every connection's initialize handshake is bounded by
	// Config.Endpoint's ConnectTimeout.
	Timeout string `mapstructure:"timeout"`
}

// ToolFilter controls which tools are registered from a server.
type ToolFilter struct {
	All     bool     `mapstructure:"all"`
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// DynamicDiscoveryConfig configures runtime tool discovery.
type DynamicDiscoveryConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	CacheSize int  `mapstructure:"cache_size"`
}

// ClientInfo provides implementation details sent to MCP servers.
type ClientInfo struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no servers configured")
	}
	for name, server := range c.Servers {
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}
	if c.DynamicDiscovery.CacheSize < 0 {
		return fmt.Errorf("dynamic_discovery.cache_size must be >= 0")
	}
	return c.Endpoint.Validate()
}

// Validate checks the server configuration for errors.
func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Transport == "" {
		s.Transport = "stdio"
	}
	switch s.Transport {
	case "stdio":
		if s.Command == "" {
			return fmt.Errorf("command required for stdio transport")
		}
	case "http", "sse":
		if s.URL == "" {
			return fmt.Errorf("url required for http/sse transport")
		}
	default:
		return fmt.Errorf("invalid transport: %s (must be 'stdio', 'http', or 'sse')", s.Transport)
	}
	return nil
}

// ShouldRegisterTool checks if a tool should be registered based on the filter.
func (f *ToolFilter) ShouldRegisterTool(toolName string) bool {
	if len(f.Include) > 0 {
		if !contains(f.Include, toolName) {
			return false
		}
		return !contains(f.Exclude, toolName)
	}
	if contains(f.Exclude, toolName) {
		return false
	}
	return f.All
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Servers: make(map[string]ServerConfig),
		DynamicDiscovery: DynamicDiscoveryConfig{
			Enabled:   false,
			CacheSize: 100,
		},
		ClientInfo: ClientInfo{
			Name:    "mcp-endpoint",
			Version: "0.1.0",
		},
		Endpoint: mcpconfig.Default(),
	}
}

// LoadConfig loads the host configuration from cfgFile (or the standard
// search locations when empty), overlaying defaults and MCPHOST_-prefixed
// environment variables.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("dynamic_discovery.enabled", def.DynamicDiscovery.Enabled)
	v.SetDefault("dynamic_discovery.cache_size", def.DynamicDiscovery.CacheSize)
	v.SetDefault("client_info.name", def.ClientInfo.Name)
	v.SetDefault("client_info.version", def.ClientInfo.Version)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mcp/")
		v.SetConfigName("mcphost")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix("MCPHOST")
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
