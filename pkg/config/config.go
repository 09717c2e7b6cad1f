// Package config provides unified configuration for ruder clients.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RUDER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for a ruder client.
type Config struct {
	Backend Backend `yaml:"backend"`
	Session Session `yaml:"session"`
	Auth    Auth    `yaml:"auth"`
	MCP     MCP     `yaml:"mcp"`
	Debug   Debug   `yaml:"debug"`
}

// Backend holds inference backend settings.
type Backend struct {
	URL        string        `yaml:"url"`          // required
	APIKey     string        `yaml:"api_key"`      // optional static bearer token
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // required
	Timeout    time.Duration `yaml:"timeout"`      // non-streamed calls, default: 120s
}

// Session holds default settings for new sessions.
type Session struct {
	System       string  `yaml:"system"`        // default: the built-in assistant prompt
	Temperature  float64 `yaml:"temperature"`   // default: 0.3
	SaveMessages bool    `yaml:"save_messages"` // default: true
}

// Auth holds client authentication settings.
type Auth struct {
	Type string `yaml:"type"` // "none", "apikey", "jwt", default: "none"
	JWT  JWT    `yaml:"jwt"`
}

// JWT holds settings for self-minted HS256 bearer tokens.
type JWT struct {
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	Issuer     string        `yaml:"issuer"`
	Subject    string        `yaml:"subject"`
	Audience   string        `yaml:"audience"`
	TTL        time.Duration `yaml:"ttl"` // default: 5m
}

// MCP holds MCP (Model Context Protocol) tool server settings.
type MCP struct {
	Servers []MCPServer `yaml:"servers"`
}

// MCPServer describes a single MCP server connection.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
}

// Debug holds diagnostic logging settings.
type Debug struct {
	Categories string `yaml:"categories"` // comma-separated, or "all"
	Level      string `yaml:"level"`      // "trace", "debug", "info", "warn", "error"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Backend: Backend{
			Timeout: 120 * time.Second,
		},
		Session: Session{
			Temperature:  0.3,
			SaveMessages: true,
		},
		Auth: Auth{
			Type: "none",
			JWT: JWT{
				TTL: 5 * time.Minute,
			},
		},
		Debug: Debug{
			Level: "info",
		},
	}
}
