// Package config provides unified configuration for the umleitung gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (UMLEITUNG_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the umleitung gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Models        ModelsConfig        `yaml:"models"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streaming-safe)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MB
	CORS            bool          `yaml:"cors"`             // default: false
	Passthrough     bool          `yaml:"passthrough"`      // proxy unknown paths upstream
}

// UpstreamConfig holds the backend connection settings.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"base_url"` // required
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	APIVersion string        `yaml:"api_version"`  // default: "2023-06-01"
	Timeout    time.Duration `yaml:"timeout"`      // non-streaming timeout, default: 120s
	Spawn      SpawnConfig   `yaml:"spawn"`
}

// SpawnConfig describes an upstream process the gateway launches and
// supervises itself. Empty command means the upstream is external.
type SpawnConfig struct {
	Command        string        `yaml:"command"`
	Args           []string      `yaml:"args"`
	HealthPath     string        `yaml:"health_path"`     // default: "/v1/models"
	StartupTimeout time.Duration `yaml:"startup_timeout"` // default: 60s
}

// GatewayConfig holds translation core settings.
type GatewayConfig struct {
	DefaultModel string `yaml:"default_model"` // optional
	MaxMessages  int    `yaml:"max_messages"`  // default: 1000
	MaxTools     int    `yaml:"max_tools"`     // default: 128
	RecordUsage  bool   `yaml:"record_usage"`  // default: true
}

// ModelsConfig holds model listing cache settings.
type ModelsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"` // default: 5m
}

// StorageConfig holds usage accounting settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`      // settings for type=jwt

	// RateLimitRPM caps requests per minute per subject. 0 disables
	// rate limiting.
	RateLimitRPM int `yaml:"rate_limit_rpm"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds JWT/OIDC validation settings.
type JWTConfig struct {
	Issuer      string `yaml:"issuer"`
	Audience    string `yaml:"audience"`
	JWKSURL     string `yaml:"jwks_url"`
	UserClaim   string `yaml:"user_claim"`   // default: "sub"
	TenantClaim string `yaml:"tenant_claim"` // default: "tenant_id"
	ScopesClaim string `yaml:"scopes_claim"` // default: "scope"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Upstream: UpstreamConfig{
			APIVersion: "2023-06-01",
			Timeout:    120 * time.Second,
			Spawn: SpawnConfig{
				HealthPath:     "/v1/models",
				StartupTimeout: 60 * time.Second,
			},
		},
		Gateway: GatewayConfig{
			MaxMessages: 1000,
			MaxTools:    128,
			RecordUsage: true,
		},
		Models: ModelsConfig{
			CacheTTL: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
