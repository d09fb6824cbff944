package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blind-book-reader/internal/artifact"
	"blind-book-reader/internal/catalog"
	"blind-book-reader/internal/config"
	"blind-book-reader/internal/explain"
	"blind-book-reader/internal/logging"
	"blind-book-reader/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, *configFlag)
		},
	}
}

func serve(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.ResolveFormat(cfg.Logging.Format, os.Stderr.Fd()), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Error("listen failed", zap.String("addr", cfg.Addr()), zap.Error(err))
		return err
	}
	return runServer(ctx, cfg, logger, ln)
}

// runServer wires the stores into a server and serves ln until ctx ends
// or the server fails. It owns ln.
func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, ln net.Listener) error {
	store, err := catalog.Open(ctx, catalog.Options{
		Backend:     cfg.Storage.CatalogBackend,
		Path:        cfg.Storage.CatalogPath,
		DatabaseURL: cfg.Storage.DatabaseURL,
		Logger:      logger,
	})
	if err != nil {
		_ = ln.Close()
		logger.Error("catalog open failed", zap.String("backend", cfg.Storage.CatalogBackend), zap.Error(err))
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("catalog close failed", zap.Error(err))
		}
	}()

	artifacts, err := openArtifacts(ctx, cfg)
	if err != nil {
		_ = ln.Close()
		logger.Error("artifact store open failed", zap.String("backend", cfg.Storage.ArtifactBackend), zap.Error(err))
		return err
	}

	explainer := explain.NewGemini(explain.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.ExplainTimeout(),
	})
	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; /explain will fail")
	}

	srv := server.New(server.Config{
		Addr:                 cfg.Addr(),
		Catalog:              store,
		Artifacts:            artifacts,
		Explainer:            explainer,
		Logger:               logger,
		CORSOrigin:           cfg.Server.CORSOrigin,
		MaxUploadBytes:       cfg.Server.MaxUploadBytes,
		ExplainRatePerMinute: cfg.Gemini.RatePerMinute,
		TrustProxyHeaders:    cfg.Server.TrustProxyHeaders,
		Version:              version,
	})

	logger.Info("starting",
		zap.String("version", version),
		zap.String("catalog", cfg.Storage.CatalogBackend),
		zap.String("artifacts", cfg.Storage.ArtifactBackend),
		zap.String("model", explainer.Model()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func openArtifacts(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	switch cfg.Storage.ArtifactBackend {
	case "minio":
		return artifact.NewMinioStore(ctx, artifact.MinioConfig{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
		})
	case "disk", "":
		return artifact.NewDiskStore(cfg.Storage.UploadDir)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Storage.ArtifactBackend)
	}
}
