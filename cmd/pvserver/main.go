// pvserver serves the tracker analysis HTTP API over a plant dataset
// loaded from a JSON export or a SQLite measurement store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helios-data/yield.report/internal/api"
	"github.com/helios-data/yield.report/internal/config"
	"github.com/helios-data/yield.report/internal/plant"
	"github.com/helios-data/yield.report/internal/plant/sqlite"
	"github.com/helios-data/yield.report/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to server config file (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pvserver %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("pvserver: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	data, err := loadData(cfg)
	if err != nil {
		return err
	}
	log.Printf("loaded plant dataset: %d trackers, %d timestamps",
		data.TrackerCount(), len(data.Timestamps()))

	tuning, err := config.LoadTuningConfig(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("failed to load tuning config: %w", err)
	}

	server := api.NewServer(data, tuning)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.LoggingMiddleware(server.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("pvserver %s listening on %s", version.Version, cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}
	return nil
}

func loadData(cfg *config.ServerConfig) (*plant.Data, error) {
	if cfg.DatabasePath != "" {
		store, err := sqlite.NewStore(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open measurement store: %w", err)
		}
		defer store.Close()
		return store.LoadData(context.Background())
	}
	return plant.LoadFile(cfg.DatasetPath)
}
