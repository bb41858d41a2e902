package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/webpool/internal/config"
)

type flags struct {
	configFile     string
	addr           string
	adminAddr      string
	workers        int
	maxConnections int
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "webpool",
		Short: "Serve static pages from a fixed-size worker pool",
		Long: `webpool accepts TCP connections and answers each one on a worker
from a fixed-size pool. An optional admin API exposes health, metrics,
pool statistics and recent access logs.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	bindFlags(cmd, &f)
	return cmd
}

func bindFlags(cmd *cobra.Command, f *flags) {
	fl := cmd.Flags()
	fl.StringVar(&f.configFile, "config", "", "YAML config file")
	fl.StringVar(&f.addr, "addr", "", "page server listen address (LISTEN_ADDR)")
	fl.StringVar(&f.adminAddr, "admin-addr", "", "admin API listen address, empty disables it (ADMIN_ADDR)")
	fl.IntVar(&f.workers, "workers", 0, "worker pool size (POOL_SIZE)")
	fl.IntVar(&f.maxConnections, "max-connections", 0, "stop after this many connections, 0 for no limit (MAX_CONNECTIONS)")
}

// resolveConfig layers environment, then the config file, then flags the
// user actually set.
func resolveConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg := config.Load()
	if f.configFile != "" {
		if err := config.ApplyFile(&cfg, f.configFile); err != nil {
			return cfg, err
		}
	}

	fl := cmd.Flags()
	if fl.Changed("addr") {
		cfg.ListenAddr = f.addr
	}
	if fl.Changed("admin-addr") {
		cfg.AdminAddr = f.adminAddr
	}
	if fl.Changed("workers") {
		cfg.PoolSize = f.workers
	}
	if fl.Changed("max-connections") {
		cfg.MaxConnections = f.maxConnections
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
