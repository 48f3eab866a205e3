// Package app wires the HTTP API and the ingest worker.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/satishpasalait/RAGAIUSLawBills/features/ask"
	runs "github.com/satishpasalait/RAGAIUSLawBills/features/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/features/mcp"
	"github.com/satishpasalait/RAGAIUSLawBills/features/stats"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/retrieval"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	Retrieval      *retrieval.Service
	Runs           *runs.Service
	IngestConsumer *worker.IngestConsumer

	cfg      *config.Config
	queryLog *retrieval.QueryLogger
}

func New(
	cfg *config.Config,
	db *sql.DB,
	store index.Store,
	gw *Gateways,
	taskPub TaskPublisher,
	version string,
) (*App, error) {
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	// Feature: Retrieval
	retrievalService := retrieval.NewService(gw.Embedder, store, gw.Completer, queryLogger, retrieval.Options{
		DefaultTopK: cfg.DefaultTopK,
		Temperature: cfg.Temperature,
	})
	askHandler := ask.NewHandler(retrievalService, cfg.RequestTimeout())
	mcpHandler := mcp.NewHandler(retrievalService, version)

	// Feature: Ingest runs
	runRepo := runs.NewPostgresRepo(db)
	runService := runs.NewService(runRepo, taskPub, cfg.IngestRoot)
	runHandler := runs.NewHandler(runService)

	// Feature: Stats
	statsHandler := stats.NewHandler(runService, store)

	// Worker
	ingestConsumer := worker.NewIngestConsumer(runRepo, runService.Load, PipelineFactory(cfg, gw.Embedder, store), 0)

	mux := http.NewServeMux()

	// Method-scoped patterns would answer OPTIONS with 405 before CORS runs,
	// so each path also gets an OPTIONS route that ends in the preflight.
	preflight := middleware.CorrelationID(middleware.CORS(http.NotFoundHandler()))
	preflightPaths := make(map[string]bool)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
		if _, path, ok := strings.Cut(pattern, " "); ok && !preflightPaths[path] {
			preflightPaths[path] = true
			mux.Handle(http.MethodOptions+" "+path, preflight)
		}
	}

	handle("POST /ask", askHandler.Ask)

	handle("POST /ingest", runHandler.Submit)
	handle("GET /ingest/runs", runHandler.List)
	handle("GET /ingest/runs/{id}", runHandler.Get)
	handle("POST /ingest/runs/{id}/retry", runHandler.Retry)

	handle("GET /stats", statsHandler.GetStats)

	mux.Handle("/mcp", middleware.CorrelationID(middleware.CORS(mcpHandler)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:        mux,
		Retrieval:      retrievalService,
		Runs:           runService,
		IngestConsumer: ingestConsumer,
		cfg:            cfg,
		queryLog:       queryLogger,
	}, nil
}

// PipelineFactory builds ingestion pipelines from cfg with a per-run id
// strategy.
func PipelineFactory(cfg *config.Config, embedder Embedder, store index.Writer) worker.PipelineFactory {
	return func(ids ingest.IDStrategy) (worker.Ingester, error) {
		opts := cfg.Ingest()
		opts.IDs = ids
		return ingest.NewPipeline(embedder, store, opts)
	}
}

// Run serves the API and consumes ingest tasks, as enabled, until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.queryLog.Close()

	if a.cfg.EnableIngestWorker {
		consumer, err := a.startConsumer()
		if err != nil {
			return err
		}
		defer func() {
			consumer.Stop()
			<-consumer.StopChan
		}()
	}

	if !a.cfg.EnableAPI {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) startConsumer() (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicIngestTask, config.ChannelIngestWorker, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}
	consumer.AddHandler(a.IngestConsumer)

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect NSQ consumer: %w", err)
	}
	slog.Info("NSQ ingest consumer connected", "topic", config.TopicIngestTask, "channel", config.ChannelIngestWorker)
	return consumer, nil
}
