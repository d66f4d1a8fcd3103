// Command server runs the umleitung chat-completions gateway.
//
// The gateway accepts OpenAI-style Chat Completions requests and
// translates them to an Anthropic-style Messages backend.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, UMLEITUNG_CONFIG, ./config.yaml, /etc/umleitung/config.yaml),
// then UMLEITUNG_* environment overrides. The most common settings:
//
//	UMLEITUNG_UPSTREAM_URL     - Messages API backend URL (required)
//	UMLEITUNG_UPSTREAM_API_KEY - upstream API key (optional)
//	UMLEITUNG_MODEL            - default model name (optional)
//	UMLEITUNG_PORT             - listen port (default: 8080)
//	UMLEITUNG_STORAGE          - usage store: "memory" or "postgres"
//	UMLEITUNG_AUTH_TYPE        - "none", "apikey", or "jwt"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/auth"
	"github.com/rhuss/umleitung/pkg/auth/apikey"
	authjwt "github.com/rhuss/umleitung/pkg/auth/jwt"
	"github.com/rhuss/umleitung/pkg/config"
	"github.com/rhuss/umleitung/pkg/debug"
	"github.com/rhuss/umleitung/pkg/gateway"
	"github.com/rhuss/umleitung/pkg/observability"
	"github.com/rhuss/umleitung/pkg/process"
	"github.com/rhuss/umleitung/pkg/provider/anthropic"
	"github.com/rhuss/umleitung/pkg/storage"
	"github.com/rhuss/umleitung/pkg/storage/memory"
	"github.com/rhuss/umleitung/pkg/storage/postgres"
	"github.com/rhuss/umleitung/pkg/transport"
	transporthttp "github.com/rhuss/umleitung/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	debug.Init("", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Optionally launch and supervise the upstream ourselves.
	if cfg.Upstream.Spawn.Command != "" {
		sup, err := process.New(process.Config{
			Command:        cfg.Upstream.Spawn.Command,
			Args:           cfg.Upstream.Spawn.Args,
			HealthURL:      cfg.Upstream.BaseURL + cfg.Upstream.Spawn.HealthPath,
			StartupTimeout: cfg.Upstream.Spawn.StartupTimeout,
		})
		if err != nil {
			return fmt.Errorf("creating upstream supervisor: %w", err)
		}
		if err := sup.Start(context.Background()); err != nil {
			return fmt.Errorf("starting upstream: %w", err)
		}
		defer sup.Stop()
	}

	// Create the upstream provider.
	prov, err := anthropic.New(anthropic.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		APIKey:     cfg.Upstream.APIKey,
		APIVersion: cfg.Upstream.APIVersion,
		Timeout:    cfg.Upstream.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	// Create the usage store.
	usageStore, err := buildUsageStore(cfg)
	if err != nil {
		return fmt.Errorf("creating usage store: %w", err)
	}
	if usageStore != nil {
		defer usageStore.Close()
	}

	// Create the gateway.
	gw, err := gateway.New(prov, usageStore, gateway.Config{
		DefaultModel: cfg.Gateway.DefaultModel,
		Validation: api.ValidationConfig{
			MaxMessages: cfg.Gateway.MaxMessages,
			MaxTools:    cfg.Gateway.MaxTools,
		},
		RecordUsage: cfg.Gateway.RecordUsage,
		Metrics:     cfg.Observability.Metrics.Enabled,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	// Model listing goes through the TTL cache.
	models := transport.NewModelCache(prov, cfg.Models.CacheTTL)

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(slog.Default()),
	}

	if cfg.Server.Passthrough {
		headers := map[string]string{
			"anthropic-version": cfg.Upstream.APIVersion,
		}
		if cfg.Upstream.APIKey != "" {
			headers["x-api-key"] = cfg.Upstream.APIKey
		}
		opts = append(opts, transporthttp.WithPassthrough(cfg.Upstream.BaseURL, headers))
	}

	if cfg.Observability.Metrics.Enabled {
		opts = append(opts,
			transporthttp.WithExtraRoute("GET "+cfg.Observability.Metrics.Path, promhttp.Handler()),
			transporthttp.WithHTTPMiddleware(observability.MetricsMiddleware),
		)
	}

	if cfg.Server.CORS {
		opts = append(opts, transporthttp.WithHTTPMiddleware(transporthttp.CORS()))
	}

	if authMW, err := buildAuthMiddleware(cfg); err != nil {
		return err
	} else if authMW != nil {
		opts = append(opts, transporthttp.WithHTTPMiddleware(authMW))
	}

	srv, err := transporthttp.NewServer(gw, models, opts...)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	slog.Info("gateway configured",
		"upstream", cfg.Upstream.BaseURL,
		"default_model", cfg.Gateway.DefaultModel,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)

	return srv.ListenAndServe()
}

// buildUsageStore constructs the configured usage accounting backend.
func buildUsageStore(cfg *config.Config) (storage.UsageStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		store, err := postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("usage store enabled", "type", "postgres")
		return store, nil
	case "memory":
		slog.Info("usage store enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	default:
		return nil, nil
	}
}

// buildAuthMiddleware assembles the credential gate from configuration.
// With auth.type "none" the gate carries no verifiers and every request
// runs as the anonymous caller, so usage records still get a subject.
func buildAuthMiddleware(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	gate := &auth.Gate{}

	switch cfg.Auth.Type {
	case "none":
		gate.Anonymous = &auth.Caller{Subject: "anonymous", Tier: "default"}
	case "apikey":
		if len(cfg.Auth.APIKeys) == 0 {
			return nil, fmt.Errorf("auth.type is \"apikey\" but no api_keys configured")
		}
		keys := make([]apikey.Key, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{
				Secret: k.Key,
				Caller: auth.Caller{
					Subject: k.Subject,
					Tenant:  k.TenantID,
					Tier:    k.ServiceTier,
				},
			})
		}
		gate.Verifiers = append(gate.Verifiers, apikey.New(keys))
	case "jwt":
		gate.Verifiers = append(gate.Verifiers, authjwt.New(authjwt.Config{
			Issuer:      cfg.Auth.JWT.Issuer,
			Audience:    cfg.Auth.JWT.Audience,
			JWKSURL:     cfg.Auth.JWT.JWKSURL,
			UserClaim:   cfg.Auth.JWT.UserClaim,
			TenantClaim: cfg.Auth.JWT.TenantClaim,
			ScopesClaim: cfg.Auth.JWT.ScopesClaim,
		}))
	}

	var limiter auth.Limiter
	if cfg.Auth.RateLimitRPM > 0 {
		limiter = auth.NewWindowLimiter(nil, cfg.Auth.RateLimitRPM)
	}

	return auth.Middleware(gate, limiter, auth.DefaultOpenPaths), nil
}
