// Command hydrahub serves the dashboard API over an S3-compatible bucket.
//
// Run with:
//
//	hydrahub -config hydrahub.yaml
//
// Every setting can also come from HYDRA_* environment variables; with no
// config file the defaults point at a local MinIO.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koustreak/hydrahub/internal/asset"
	"github.com/koustreak/hydrahub/internal/config"
	"github.com/koustreak/hydrahub/internal/database"
	"github.com/koustreak/hydrahub/internal/database/mysql"
	"github.com/koustreak/hydrahub/internal/database/postgres"
	"github.com/koustreak/hydrahub/internal/dataset"
	"github.com/koustreak/hydrahub/internal/files"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/koustreak/hydrahub/internal/filestore/memory"
	"github.com/koustreak/hydrahub/internal/filestore/minio"
	"github.com/koustreak/hydrahub/internal/filestore/s3"
	"github.com/koustreak/hydrahub/internal/logger"
	"github.com/koustreak/hydrahub/internal/meta"
	"github.com/koustreak/hydrahub/internal/metrics"
	"github.com/koustreak/hydrahub/internal/server"
)

var version = "dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("HYDRA_CONFIG"), "Path to the YAML config file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println("hydrahub " + version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hydrahub: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LoggerConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWith("hydrahub stopped", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	m := metrics.New()

	store, err := openStore(ctx, cfg.FilestoreConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	gw := filestore.NewGateway(store, cfg.Storage.Bucket, filestore.GatewayOptions{
		Timeout:       cfg.Storage.Timeout,
		StreamTimeout: cfg.Server.StreamTimeout,
		Logger:        log,
		Observer:      m.StorageObserver(),
	})

	deps := server.Deps{
		Gateway:  gw,
		Files:    files.New(gw, cfg.FilesOptions(), log),
		Meta:     meta.NewResolver(gw, log),
		Datasets: dataset.NewRepository(gw, log),
		Metrics:  m,
		Logger:   log,

		StreamTimeout: cfg.Server.StreamTimeout,
	}

	if dbCfg := cfg.DatabaseConfig(); dbCfg != nil {
		db, err := openDB(ctx, dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		catalog := asset.NewStore(db, log).WithQueryTimeout(dbCfg.QueryTimeout)
		if err := catalog.EnsureSchema(ctx); err != nil {
			return err
		}
		deps.Assets = catalog
		log.Info("data-asset catalog enabled on " + string(dbCfg.Driver))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.InfoWith("hydrahub listening", map[string]interface{}{
			"addr":     cfg.Server.Addr,
			"provider": string(cfg.Storage.Provider),
			"bucket":   cfg.Storage.Bucket,
			"version":  version,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.Provider {
	case filestore.ProviderMinIO:
		return minio.New(connectCtx, cfg)
	case filestore.ProviderS3:
		return s3.New(connectCtx, cfg)
	case filestore.ProviderMemory:
		return memory.New(cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func openDB(ctx context.Context, cfg *database.Config) (database.DB, error) {
	switch cfg.Driver {
	case database.DriverPostgres:
		return postgres.New(ctx, cfg)
	case database.DriverMySQL:
		return mysql.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
