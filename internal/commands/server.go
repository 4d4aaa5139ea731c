package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"evalgo.org/mdm/internal/api"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/registry"
	"evalgo.org/mdm/internal/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long:  `Start the HTTP API server with Echo framework`,
	RunE:  runServer,
}

// openServices connects the configured store and wires the domain
// services. The returned cleanup closes the Redis client when one was
// opened.
func openServices(ctx context.Context) (*api.Services, func(), error) {
	log := logging.Default()

	store, err := storage.New(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := metrics.New()
	cleanup := func() {}
	var opts []registry.Option
	if cfg.Redis.URL != "" {
		client, err := registry.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			// The registry falls back to the store, so a missing cache is not fatal.
			log.WithError(err).Warn("redis unavailable, entity registry runs without cache")
		} else {
			opts = append(opts,
				registry.WithCache(registry.NewRedisCache(client), cfg.Redis.RegistryTTL),
				registry.WithLogger(log),
			)
			cleanup = func() {
				if err := client.Close(); err != nil {
					log.WithError(err).Warn("failed to close redis client")
				}
			}
		}
	}

	return api.BuildServices(cfg, store, m, opts...), cleanup, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	services, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	server := api.New(cfg, services)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logging.Default().WithFields(logrus.Fields{
			"timeout": cfg.Server.ShutdownTimeout.String(),
		}).Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return nil

	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}
