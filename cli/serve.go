package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/engine/infra/server"
	"github.com/memgate/memgate/engine/timesync"
	"github.com/memgate/memgate/pkg/config"
	"github.com/memgate/memgate/pkg/logger"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memgate server",
		RunE:  handleServeCmd,
	}

	cmd.Flags().String("host", "", "Host to bind the server to (env: MEMGATE_SERVER_HOST)")
	cmd.Flags().Int("port", 0, "Port to run the server on (env: MEMGATE_SERVER_PORT)")
	cmd.Flags().String("redis-url", "", "Redis connection URL (env: MEMGATE_REDIS_URL)")

	return cmd
}

func handleServeCmd(cmd *cobra.Command, _ []string) error {
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	store := cache.NewStore(ctx, cache.FromAppConfig(cfg))
	defer store.Close()

	tracker := timesync.NewTracker(timesync.WithStaleThreshold(cfg.Sync.StaleThreshold))
	for _, service := range cfg.Sync.Services {
		tracker.Register(ctx, service)
	}

	srv := server.NewServer(cfg, store, tracker)
	return srv.Run(ctx)
}

// applyServeFlags overrides loaded configuration with explicitly set CLI flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		host, err := cmd.Flags().GetString("host")
		if err != nil {
			return fmt.Errorf("failed to get host flag: %w", err)
		}
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return fmt.Errorf("failed to get port flag: %w", err)
		}
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("redis-url") {
		url, err := cmd.Flags().GetString("redis-url")
		if err != nil {
			return fmt.Errorf("failed to get redis-url flag: %w", err)
		}
		cfg.Redis.URL = url
	}
	return nil
}
