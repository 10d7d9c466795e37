// Package rendezvous parses rendezvous broker flags and launches the service.
package rendezvous

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	entrypoint "github.com/louisbranch/rendezvous/internal/platform/cmd"
	server "github.com/louisbranch/rendezvous/internal/services/rendezvous/app"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/store"
)

// Config holds rendezvous command configuration.
type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR"          envDefault:":8090"`
	GRPCPort          int           `env:"GRPC_PORT"          envDefault:"8091"`
	DBPath            string        `env:"DB_PATH"            envDefault:"data/rendezvous.db"`
	InstanceID        string        `env:"INSTANCE_ID"        envDefault:"c96d8ac6-e571-48bb-9e1f-58df18574e43"`
	TTL               time.Duration `env:"TTL"                envDefault:"300s"`
	CacheShards       int           `env:"CACHE_SHARDS"       envDefault:"16"`
	EphemeralDisabled bool          `env:"EPHEMERAL_DISABLED" envDefault:"false"`
	CapabilityAddr    string        `env:"CAPABILITY_ADDR"`
	CapabilityService string        `env:"CAPABILITY_SERVICE" envDefault:"rendezvous.v1.EphemeralTier"`
	MaxConnections    int           `env:"MAX_CONNECTIONS"    envDefault:"256"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The rendezvous HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The rendezvous gRPC health port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	id, err := uuid.Parse(strings.TrimSpace(cfg.InstanceID))
	if err != nil {
		return Config{}, fmt.Errorf("parse instance id %q: %w", cfg.InstanceID, err)
	}
	cfg.InstanceID = id.String()
	if cfg.TTL <= 0 {
		return Config{}, fmt.Errorf("ttl must be positive, got %s", cfg.TTL)
	}
	return cfg, nil
}

// Run starts the rendezvous broker.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRendezvous, func(ctx context.Context) error {
		return server.Run(ctx, serverConfig(cfg))
	})
}

func serverConfig(cfg Config) server.Config {
	service := strings.TrimSpace(cfg.CapabilityService)
	if service == "" {
		service = capability.DefaultHealthService
	}
	namespace := cfg.InstanceID
	if namespace == "" {
		namespace = store.DefaultNamespace
	}
	return server.Config{
		HTTPAddr:          cfg.HTTPAddr,
		GRPCAddr:          fmt.Sprintf(":%d", cfg.GRPCPort),
		DBPath:            cfg.DBPath,
		Namespace:         namespace,
		TTL:               cfg.TTL,
		CacheShards:       cfg.CacheShards,
		EphemeralDisabled: cfg.EphemeralDisabled,
		CapabilityAddr:    cfg.CapabilityAddr,
		CapabilityService: service,
		MaxConnections:    cfg.MaxConnections,
	}
}
