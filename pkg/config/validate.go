package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.URL == "" {
		errs = append(errs, fmt.Errorf("backend.url is required"))
	}
	if c.Backend.Model == "" {
		errs = append(errs, fmt.Errorf("backend.model is required"))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be >= 0, got %s", c.Backend.Timeout))
	}

	if c.Session.Temperature < 0 || c.Session.Temperature > 2 {
		errs = append(errs, fmt.Errorf("session.temperature must be in [0, 2], got %g", c.Session.Temperature))
	}

	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// If auth.type is "apikey", the key must come from somewhere.
	if c.Auth.Type == "apikey" && c.Backend.APIKey == "" && c.Backend.APIKeyFile == "" {
		errs = append(errs, fmt.Errorf("backend.api_key or backend.api_key_file is required when auth.type is \"apikey\""))
	}

	// If auth.type is "jwt", the signing secret must come from somewhere.
	if c.Auth.Type == "jwt" && c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
	}

	for i, srv := range c.MCP.Servers {
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if srv.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch srv.Transport {
		case "sse", "streamable-http", "":
			// valid, empty defaults to streamable-http
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, srv.Transport))
		}
	}

	return errors.Join(errs...)
}
