package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/gemini"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/memory"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/milvus"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/openai"
	wstore "github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/weaviate"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/retrieval"
)

// Embedder satisfies both the ingestion and the retrieval pipelines.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Gateways struct {
	Embedder  Embedder
	Completer retrieval.Completer
}

// Index is the configured store wrapped in a dimension guard.
type Index struct {
	Store *index.DimensionGuard
	close func(ctx context.Context) error
}

func (i *Index) Close(ctx context.Context) error {
	if i == nil || i.close == nil {
		return nil
	}
	return i.close(ctx)
}

type Dependencies struct {
	DB          *sql.DB
	Index       *Index
	Gateways    *Gateways
	NSQProducer *nsq.Producer
}

func (d *Dependencies) Close(ctx context.Context) {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if err := d.Index.Close(ctx); err != nil {
		slog.Warn("failed to close index", "error", err)
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

// Bootstrap connects everything the server and the ingest worker need.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	idx, err := OpenIndex(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	gw, err := OpenGateways(ctx, cfg)
	if err != nil {
		idx.Close(ctx)
		db.Close()
		return nil, err
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		idx.Close(ctx)
		db.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	if cfg.NSQDHTTP != "" {
		createTopics(cfg.NSQDHTTP)
	}

	return &Dependencies{
		DB:          db,
		Index:       idx,
		Gateways:    gw,
		NSQProducer: producer,
	}, nil
}

// OpenDatabase connects to Postgres, waiting for it to come up, and applies
// migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	err = retry(ctx, cfg.BootstrapRetryAttempts, retryDelay, func() error {
		return db.PingContext(ctx)
	}, "failed to ping db, retrying...")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.InfoContext(ctx, "migrations applied successfully")

	return db, nil
}

// OpenIndex builds the configured index backend.
func OpenIndex(ctx context.Context, cfg *config.Config) (*Index, error) {
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	switch strings.ToLower(cfg.IndexBackend) {
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("%w: weaviate client: %w", apperr.ErrIndexUnavailable, err)
		}
		store := wstore.NewStore(client, cfg.WeaviateClass)
		if err := EnsureSchemaWithRetry(ctx, store, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			return nil, fmt.Errorf("%w: weaviate schema error: %w", apperr.ErrIndexUnavailable, err)
		}
		slog.InfoContext(ctx, "weaviate schema ensured", "class", cfg.WeaviateClass)
		return &Index{Store: index.NewDimensionGuard(store, cfg.EmbeddingDim)}, nil

	case config.BackendMilvus:
		var store *milvus.Store
		err := retry(ctx, cfg.BootstrapRetryAttempts, retryDelay, func() error {
			var err error
			store, err = milvus.Connect(ctx, cfg.MilvusAddress, cfg.MilvusCollection)
			return err
		}, "failed to connect to milvus, retrying...")
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrIndexUnavailable, err)
		}
		if cfg.EmbeddingDim > 0 {
			if err := store.EnsureCollection(ctx, cfg.EmbeddingDim); err != nil {
				store.Close(ctx)
				return nil, apperr.Wrap(apperr.ErrIndexUnavailable, err)
			}
		}
		return &Index{Store: index.NewDimensionGuard(store, cfg.EmbeddingDim), close: store.Close}, nil

	case config.BackendMemory:
		slog.WarnContext(ctx, "using in-memory index; contents are lost on exit")
		return &Index{Store: index.NewDimensionGuard(memory.NewStore(), cfg.EmbeddingDim)}, nil
	}

	return nil, fmt.Errorf("%w: INDEX_BACKEND %q", apperr.ErrInvalidConfiguration, cfg.IndexBackend)
}

// OpenGateways builds the embedding and completion clients for the
// configured providers.
func OpenGateways(ctx context.Context, cfg *config.Config) (*Gateways, error) {
	gw := &Gateways{}

	switch strings.ToLower(cfg.EmbeddingProvider) {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		gw.Embedder = gemini.NewEmbedder(client, cfg.EmbeddingModel)
	case config.ProviderOpenAI:
		client, err := openai.NewClient(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		gw.Embedder = openai.NewEmbedder(client, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("%w: EMBEDDING_PROVIDER %q", apperr.ErrInvalidConfiguration, cfg.EmbeddingProvider)
	}

	switch strings.ToLower(cfg.CompletionProvider) {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		gw.Completer = gemini.NewCompleter(client, cfg.ChatModel)
	case config.ProviderOpenAI:
		client, err := openai.NewClient(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		gw.Completer = openai.NewCompleter(client, cfg.ChatModel)
	default:
		return nil, fmt.Errorf("%w: COMPLETION_PROVIDER %q", apperr.ErrInvalidConfiguration, cfg.CompletionProvider)
	}

	return gw, nil
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestTask)
	}()
}

type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// EnsureSchemaWithRetry delegates schema check to a helper with retry logic.
func EnsureSchemaWithRetry(ctx context.Context, store SchemaEnsurer, attempts int, delay time.Duration) error {
	return retry(ctx, attempts, delay, func() error {
		return store.EnsureSchema(ctx)
	}, "failed to ensure schema, retrying...")
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, msg string) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		slog.WarnContext(ctx, msg, "attempt", i+1, "max_attempts", attempts, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
