package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/contdb/queryview/internal/api"
	"github.com/contdb/queryview/internal/cache"
	"github.com/contdb/queryview/internal/config"
	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/container/blobstore"
	"github.com/contdb/queryview/internal/container/chregion"
	"github.com/contdb/queryview/internal/container/pgcontainer"
	"github.com/contdb/queryview/internal/events"
	"github.com/contdb/queryview/internal/index"
)

// blobOffloadThreshold is the dataset byte size above which a materialized
// dataset is offloaded to the BLOB tier instead of stored inline (only
// takes effect when blobstore is configured).
const blobOffloadThreshold = 1 << 20 // 1 MiB

func main() {
	// Load .env file if present (development convenience).
	_ = godotenv.Load()             // cmd/queryviewd/.env
	_ = godotenv.Load("../.env")    // running from cmd/ -> project root .env
	_ = godotenv.Load("../../.env") // running from cmd/queryviewd/ -> project root .env

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting queryview daemon", "port", cfg.APIPort, "env", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Durable container backend ---
	pg, err := pgcontainer.Connect(ctx, cfg.PostgresURL, "queryview.h5")
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	// --- Columnar dataset-region backend ---
	ch, err := chregion.Connect(ctx, cfg.ClickHouseURL, "queryview.h5")
	if err != nil {
		slog.Warn("failed to connect to ClickHouse; numeric-range pushdown unavailable", "error", err)
	} else {
		defer ch.Close()
	}

	// --- View-materialized event publisher ---
	publisher, err := events.NewPublisher(cfg.NATSURL)
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	if err := publisher.EnsureStream(ctx); err != nil {
		slog.Error("failed to ensure NATS stream", "error", err)
		os.Exit(1)
	}

	// --- Region-selection cache (optional accelerant) ---
	var regionCache *cache.RegionCache
	if rc, err := cache.New(ctx, cfg.RedisURL); err != nil {
		slog.Warn("failed to connect to Redis; region-selection memoization unavailable", "error", err)
	} else {
		regionCache = rc
		defer regionCache.Close()
	}

	// --- Name/attribute-name index (optional accelerant) ---
	var nameIndex *index.Manager
	if idx, err := index.New(cfg.IndexBasePath); err != nil {
		slog.Warn("failed to open name index; LinkName/AttrName narrowing unavailable", "error", err)
	} else {
		nameIndex = idx
		defer nameIndex.Close()
	}

	// --- BLOB tier for oversized materialized datasets (optional) ---
	if bs, err := blobstore.New(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL); err != nil {
		slog.Warn("failed to configure blob store; large materialized datasets stay inline", "error", err)
	} else {
		pg.SetBlobStore(bs, blobOffloadThreshold)
	}

	// --- Registry: the container namespace the HTTP handlers resolve
	// {container} path variables against. pg is both the "queryview.h5"
	// durable container and the materialization host. ---
	registry := api.NewRegistry(pg)
	registry.Register("queryview.h5", pg, pgcontainer.DefaultReadContext)
	if ch != nil {
		registry.Register("queryview-columnar.h5", ch, chregion.DefaultReadContext)
	}

	if nameIndex != nil {
		if err := populateNameIndex(ctx, nameIndex, "queryview.h5", pg, pgcontainer.DefaultReadContext); err != nil {
			slog.Warn("failed to populate name index for queryview.h5", "error", err)
		}
		if ch != nil {
			if err := populateNameIndex(ctx, nameIndex, "queryview-columnar.h5", ch, chregion.DefaultReadContext); err != nil {
				slog.Warn("failed to populate name index for queryview-columnar.h5", "error", err)
			}
		}
	}

	handlers := &api.Handlers{
		Registry:  registry,
		Publisher: publisher,
		Cache:     regionCache,
		Index:     nameIndex,
	}

	streamHandler := api.NewStreamHandler(registry, []string{"*"})
	streamHandler.Cache = regionCache
	streamHandler.Index = nameIndex

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins:     []string{"*"},
		HealthHandler:      http.HandlerFunc(handlers.Health),
		ApplyHandler:       http.HandlerFunc(handlers.Apply),
		MaterializeHandler: http.HandlerFunc(handlers.Materialize),
		WSHandler:          streamHandler,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("queryview daemon stopped")
}

// populateNameIndex walks every object in c and indexes its link name and
// its attributes' names, so index.Manager.MatchingPaths has something to
// narrow against on the very first query rather than staying empty until
// some other code path happens to call IndexNames.
func populateNameIndex(ctx context.Context, idx *index.Manager, containerName string, c container.Container, rcxt container.ReadContext) error {
	var docs []index.NameDoc
	err := c.VisitObjects(ctx, rcxt, "/", func(ctx context.Context, info container.ObjectInfo) error {
		docs = append(docs, index.NameDoc{Path: info.Path, Name: info.Name, Kind: "object"})
		attrs, err := c.IterateAttributes(ctx, rcxt, info.Path)
		if err != nil {
			return err
		}
		for _, a := range attrs {
			docs = append(docs, index.NameDoc{Path: info.Path, Name: a.Name, Kind: "attribute"})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("populate name index: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	return idx.IndexNames(ctx, containerName, docs)
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
