// Command pathoassist runs the microscope video processing backend: it
// captures frames, applies the active overlay pipeline and serves the
// annotated MJPEG stream and metrics over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pathoassist/internal/capture"
	"pathoassist/internal/config"
	"pathoassist/internal/logger"
	"pathoassist/internal/overlay"
	"pathoassist/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger is not configured yet; fall back to stderr.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("config", *configPath).Msg("starting pathoassist backend")

	registry := overlay.DefaultRegistry(overlay.ModelOptions{
		Dir:    cfg.Model.Dir,
		CUDA:   cfg.Model.CUDA,
		Logger: log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cap := capture.New(cfg.Camera, registry, log)
	if err := cap.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start video capture")
	}
	defer cap.Stop()

	active := overlay.Config{
		Name:   "cell_count",
		Params: overlay.Params{"threshold": 128, "min_size": 50, "max_size": 1000},
	}
	srv := server.New(registry, cap, active, log)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
