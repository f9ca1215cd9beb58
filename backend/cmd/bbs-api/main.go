package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchan-dev/bbs/backend/internal/router"
	"github.com/itchan-dev/bbs/backend/internal/setup"
	"github.com/itchan-dev/bbs/shared/config"
	"github.com/itchan-dev/bbs/shared/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.Log.Level, cfg.Public.Log.Json)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		logger.Log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.Public.Http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Public.Http.Addr, err)
	}
	return serve(ctx, cfg, ln)
}

// serve runs the API on ln until ctx is done. It returns an error when the
// server stops on its own; cleanup runs either way.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	deps, err := setup.SetupDependencies(ctx, cfg)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to set up dependencies: %w", err)
	}
	defer deps.Cleanup()

	server := &http.Server{
		Handler:      router.New(deps),
		ReadTimeout:  cfg.Public.Http.ReadTimeout,
		WriteTimeout: cfg.Public.Http.WriteTimeout,
		IdleTimeout:  cfg.Public.Http.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Log.Info("server started", "addr", ln.Addr().String(), "storage", cfg.Public.Storage)
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server shut down unexpectedly: %w", err)
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("server did not shut down gracefully", "error", err)
	}
	return nil
}
