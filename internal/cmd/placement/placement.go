// Package placement parses placement service flags and launches the service.
package placement

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/soimap/internal/platform/cmd"
	"github.com/louisbranch/soimap/internal/platform/discovery"
	server "github.com/louisbranch/soimap/internal/services/placement/app"
)

// Config holds placement command configuration.
type Config struct {
	Port int    `env:"SOIMAP_PLACEMENT_PORT"`
	Addr string `env:"SOIMAP_PLACEMENT_LISTEN_ADDR"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Port == 0 {
		cfg.Port = discovery.DefaultGRPCPort(discovery.ServicePlacement)
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The placement gRPC server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The placement listen address (overrides -port)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the placement gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePlacement, func(context.Context) error {
		if cfg.Addr != "" {
			return server.RunWithAddr(ctx, cfg.Addr)
		}
		return server.Run(ctx, cfg.Port)
	})
}
