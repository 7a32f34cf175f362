// Package main provides the HTTP and WebSocket server for fitplan.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raphaelgruber/fitplan/internal/config"
	"github.com/raphaelgruber/fitplan/internal/db"
	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/llm"
	"github.com/raphaelgruber/fitplan/internal/memstore"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/raphaelgruber/fitplan/internal/parser"
	"github.com/raphaelgruber/fitplan/internal/server"
	"github.com/raphaelgruber/fitplan/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// stores groups the chunk and plan persistence backends.
type stores struct {
	vectors service.VectorStore
	plans   service.PlanStore
	close   func(context.Context) error
}

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, *wipeDB || os.Getenv("FITPLAN_WIPE_DB") == "true"); err != nil {
		slog.Error("server failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, wipe bool) error {
	slog.Info("starting fitplan-server",
		"port", cfg.ServerPort,
		"registry", cfg.RegistryBackend,
		"store", cfg.StoreBackend,
		"llm", cfg.LLMProvider,
		"embed", cfg.EmbedProvider)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	pm := metrics.NewPrometheus(prometheus.DefaultRegisterer)
	timings := metrics.NewCollector()

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var rdb *redis.Client
	if cfg.RegistryBackend == config.BackendRedis {
		var err error
		rdb, err = jobs.NewRedisClient(initCtx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	st, err := openStores(initCtx, cfg, timings, wipe)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	embedder, err := llm.NewEmbedder(initCtx, cfg, timings)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	model, err := llm.NewModel(initCtx, cfg, timings)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	slog.Info("providers ready", "chat_model", model.Model(), "embed_model", embedder.Model(), "dimension", embedder.Dimension())

	uploads := registry[models.UploadJob](rdb, "upload")
	runs := registry[models.ProcessingJob](rdb, "processing")
	gens := registry[models.GenerationJob](rdb, "generation")
	files := registry[models.FileBatch](rdb, "files")

	h := hub.New(
		hub.WithReplayer(service.NewReplayer(uploads, runs, gens)),
		hub.WithRecorder(pm),
	)

	srv := server.New(server.Deps{
		Uploads: service.NewUploadTracker(uploads, h, cfg.JobRetention, pm),
		Ingest: service.NewIngestService(service.IngestDeps{
			Files:        files,
			Runs:         runs,
			Hub:          h,
			Extractor:    parser.NewTextExtractor(),
			Splitter:     parser.NewSplitter(),
			Embedder:     embedder,
			Store:        st.vectors,
			Metrics:      pm,
			Timings:      timings,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			Retention:    cfg.JobRetention,
		}),
		Generation: service.NewGenerationService(service.GenerateDeps{
			Jobs:      gens,
			Hub:       h,
			Retriever: service.NewRetriever(embedder, st.vectors),
			Model:     model,
			Plans:     st.plans,
			Metrics:   pm,
			TopK:      cfg.RetrievalK,
			Retention: cfg.JobRetention,
		}),
		Hub:            h,
		Timings:        timings,
		Metrics:        pm,
		Gatherer:       prometheus.DefaultGatherer,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, slog.Default())

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No Read/WriteTimeout: uploads and WebSocket streams are long-lived.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api", cfg.ServerPort))
		slog.Info("event stream available", "url", fmt.Sprintf("ws://localhost:%s/ws", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// registry returns a Redis-backed registry when rdb is set, an in-memory one otherwise.
func registry[T any](rdb *redis.Client, kind string) jobs.Registry[T] {
	if rdb != nil {
		return jobs.NewRedisRegistry[T](rdb, kind)
	}
	return jobs.NewMemoryRegistry[T](kind)
}

func openStores(ctx context.Context, cfg config.Config, timings *metrics.Collector, wipe bool) (stores, error) {
	if cfg.StoreBackend != config.BackendSurreal {
		if wipe {
			slog.Warn("--wipe has no effect on the memory store")
		}
		return stores{
			vectors: memstore.NewVectorStore(),
			plans:   memstore.NewPlanStore(),
			close:   func(context.Context) error { return nil },
		}, nil
	}

	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, slog.Default(), timings)
	if err != nil {
		return stores{}, fmt.Errorf("connect surrealdb: %w", err)
	}

	if wipe {
		slog.Warn("wiping database")
		if err := client.WipeData(ctx); err != nil {
			client.Close(ctx)
			return stores{}, fmt.Errorf("wipe database: %w", err)
		}
	}
	if err := client.InitSchema(ctx, cfg.EmbedDimension); err != nil {
		client.Close(ctx)
		return stores{}, fmt.Errorf("init schema: %w", err)
	}

	return stores{vectors: client, plans: client, close: client.Close}, nil
}
