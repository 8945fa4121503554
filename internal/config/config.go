// Package config handles mcpcall configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./mcpcall.yaml, ~/.config/mcpcall/config.yaml,
// /etc/mcpcall/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"mcpcall.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mcpcall", "config.yaml"))
	}

	paths = append(paths, "/etc/mcpcall/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all mcpcall configuration.
type Config struct {
	// Servers maps a friendly server name to its connection settings.
	Servers map[string]ServerConfig `yaml:"servers"`

	// TranscriptDB is the path to the SQLite tool-invocation transcript.
	// Empty disables transcript recording.
	TranscriptDB string `yaml:"transcript_db"`

	LogLevel string `yaml:"log_level"`
}

// ServerConfig defines how to reach one MCP server.
type ServerConfig struct {
	// Transport selects the connection type: "stdio" (default) or
	// "websocket".
	Transport string `yaml:"transport"`

	// Command is the executable to spawn for stdio servers.
	Command string `yaml:"command"`
	// Args are command-line arguments for the executable.
	Args []string `yaml:"args"`
	// Env are additional environment variables (format: "KEY=VALUE"),
	// appended to the current process environment.
	Env []string `yaml:"env"`

	// URL is the endpoint for websocket servers (ws:// or wss://).
	URL string `yaml:"url"`
	// Headers are additional HTTP headers for the websocket handshake.
	Headers map[string]string `yaml:"headers"`
}

// Validate checks that the server definition is internally consistent.
func (s ServerConfig) Validate() error {
	switch s.Transport {
	case "", "stdio":
		if s.Command == "" {
			return fmt.Errorf("stdio server requires a command")
		}
	case "websocket":
		if s.URL == "" {
			return fmt.Errorf("websocket server requires a url")
		}
	default:
		return fmt.Errorf("unknown transport %q (valid: stdio, websocket)", s.Transport)
	}
	return nil
}

// Server looks up a named server definition.
func (c *Config) Server(name string) (ServerConfig, error) {
	srv, ok := c.Servers[name]
	if !ok {
		names := make([]string, 0, len(c.Servers))
		for n := range c.Servers {
			names = append(names, n)
		}
		return ServerConfig{}, fmt.Errorf("unknown server %q (configured: %v)", name, names)
	}
	return srv, nil
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so tokens can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	for name, srv := range cfg.Servers {
		if err := srv.Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
	}

	return cfg, nil
}
