package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load assembles the effective configuration: built-in defaults, then
// the discovered YAML file, then UMLEITUNG_* environment overrides,
// then secret files referenced by *_file fields, validated last.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		if err := mergeYAML(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	overlayEnv(&cfg)

	if err := loadSecretRefs(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// findConfigFile picks the config file: an explicit path, then
// UMLEITUNG_CONFIG, then ./config.yaml, then /etc/umleitung/config.yaml.
// Explicit and environment paths are returned without an existence
// check so a missing file surfaces as an error instead of silently
// running on defaults.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv("UMLEITUNG_CONFIG"); path != "" {
		return path
	}
	for _, path := range []string{"config.yaml", "/etc/umleitung/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// mergeYAML overlays a YAML file onto cfg. Absent fields keep their
// current values.
func mergeYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envOverrides maps each recognized environment variable to the config
// field it overrides. Values that fail to parse are ignored so a typo
// cannot take down a working deployment.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"UMLEITUNG_UPSTREAM_URL", func(c *Config, v string) { c.Upstream.BaseURL = v }},
	{"UMLEITUNG_UPSTREAM_API_KEY", func(c *Config, v string) { c.Upstream.APIKey = v }},
	{"UMLEITUNG_UPSTREAM_VERSION", func(c *Config, v string) { c.Upstream.APIVersion = v }},
	{"UMLEITUNG_MODEL", func(c *Config, v string) { c.Gateway.DefaultModel = v }},
	{"UMLEITUNG_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}},
	{"UMLEITUNG_STORAGE", func(c *Config, v string) { c.Storage.Type = v }},
	{"UMLEITUNG_STORAGE_SIZE", func(c *Config, v string) {
		if size, err := strconv.Atoi(v); err == nil {
			c.Storage.MaxSize = size
		}
	}},
	{"UMLEITUNG_AUTH_TYPE", func(c *Config, v string) { c.Auth.Type = v }},
	{"UMLEITUNG_MODELS_CACHE_TTL", func(c *Config, v string) {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Models.CacheTTL = ttl
		}
	}},
	{"UMLEITUNG_API_KEYS", func(c *Config, v string) {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err == nil && len(keys) > 0 {
			c.Auth.APIKeys = keys
		}
	}},
}

func overlayEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

// secretRef points a *_file config field at the value field it fills.
type secretRef struct {
	field string  // config path, for error messages
	file  string  // path of the secret file
	dst   *string // value field; left alone when already set
}

// loadSecretRefs reads every referenced secret file into its value
// field. An explicitly configured value wins over its file reference.
func loadSecretRefs(cfg *Config) error {
	refs := []secretRef{
		{"upstream.api_key_file", cfg.Upstream.APIKeyFile, &cfg.Upstream.APIKey},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
	}
	for i := range cfg.Auth.APIKeys {
		refs = append(refs, secretRef{
			fmt.Sprintf("auth.api_keys[%d].key_file", i),
			cfg.Auth.APIKeys[i].KeyFile,
			&cfg.Auth.APIKeys[i].Key,
		})
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.dst != "" {
			continue
		}
		data, err := os.ReadFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.field, err)
		}
		*ref.dst = strings.TrimSpace(string(data))
	}
	return nil
}
