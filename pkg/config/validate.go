package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the loaded configuration before the server boots.
// Every problem is collected and reported at once so a broken config
// file can be fixed in a single edit.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Upstream.BaseURL == "" {
		fail("upstream.base_url is required")
	} else if _, err := url.Parse(c.Upstream.BaseURL); err != nil {
		fail("upstream.base_url: %v", err)
	}

	if c.Server.Port <= 0 {
		fail("server.port must be > 0, got %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			fail("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is %q", c.Storage.Type)
		}
	default:
		fail("storage.type must be %q or %q, got %q", "memory", "postgres", c.Storage.Type)
	}

	switch c.Auth.Type {
	case "none", "apikey":
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			fail("auth.jwt.jwks_url is required when auth.type is %q", c.Auth.Type)
		}
	default:
		fail("auth.type must be %q, %q, or %q, got %q", "none", "apikey", "jwt", c.Auth.Type)
	}

	if c.Upstream.Spawn.Command != "" && c.Upstream.Spawn.HealthPath == "" {
		fail("upstream.spawn.health_path is required when upstream.spawn.command is set")
	}

	return errors.Join(errs...)
}
