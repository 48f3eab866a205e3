package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/retrieval"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/text"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Index backends
const (
	BackendWeaviate = "weaviate"
	BackendMilvus   = "milvus"
	BackendMemory   = "memory"
)

// Model providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"bills"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"bills"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Index
	IndexBackend     string `envconfig:"INDEX_BACKEND" default:"weaviate"`
	WeaviateHost     string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme   string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateClass    string `envconfig:"WEAVIATE_CLASS" default:"BillChunk"`
	MilvusAddress    string `envconfig:"MILVUS_ADDRESS" default:"localhost:19530"`
	MilvusCollection string `envconfig:"MILVUS_COLLECTION" default:"bill_chunks"`

	// Models
	EmbeddingProvider  string  `envconfig:"EMBEDDING_PROVIDER" default:"gemini"`
	EmbeddingModel     string  `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDim       int     `envconfig:"EMBEDDING_DIM" default:"0"`
	CompletionProvider string  `envconfig:"COMPLETION_PROVIDER" default:"gemini"`
	ChatModel          string  `envconfig:"CHAT_MODEL" default:"gemini-2.0-flash"`
	Temperature        float32 `envconfig:"TEMPERATURE" default:"0.2"`
	GeminiAPIKey       string  `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey       string  `envconfig:"OPENAI_API_KEY"`

	// Ingestion
	ChunkMaxChars        int    `envconfig:"CHUNK_MAX_CHARS" default:"1000"`
	ChunkOverlap         int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	IngestBatchSize      int    `envconfig:"INGEST_BATCH_SIZE" default:"100"`
	IngestionConcurrency int    `envconfig:"INGESTION_CONCURRENCY" default:"4"`
	IDStrategy           string `envconfig:"ID_STRATEGY" default:"random"`
	// POST /ingest only reads paths under this directory.
	IngestRoot           string `envconfig:"INGEST_ROOT" default:"data/bills"`

	// Retrieval
	DefaultTopK           int `envconfig:"DEFAULT_TOP_K" default:"5"`
	RequestTimeoutSeconds int `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"60"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI          bool `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool `envconfig:"ENABLE_INGEST_WORKER" default:"false"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; .env files only fill gaps.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if strings.TrimSpace(c.IngestRoot) == "" {
		return fmt.Errorf("%w: INGEST_ROOT", ErrMissingRequired)
	}

	if err := c.Chunking().Validate(); err != nil {
		return err
	}
	if _, err := ingest.ParseIDStrategy(c.IDStrategy); err != nil {
		return err
	}

	switch strings.ToLower(c.IndexBackend) {
	case BackendWeaviate, BackendMilvus, BackendMemory:
	default:
		return fmt.Errorf("%w: INDEX_BACKEND %q", apperr.ErrInvalidConfiguration, c.IndexBackend)
	}
	for name, p := range map[string]string{"EMBEDDING_PROVIDER": c.EmbeddingProvider, "COMPLETION_PROVIDER": c.CompletionProvider} {
		switch strings.ToLower(p) {
		case ProviderGemini, ProviderOpenAI:
		default:
			return fmt.Errorf("%w: %s %q", apperr.ErrInvalidConfiguration, name, p)
		}
	}

	if c.EmbeddingDim < 0 {
		return fmt.Errorf("%w: EMBEDDING_DIM must not be negative", apperr.ErrInvalidConfiguration)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > retrieval.MaxTopK {
		return fmt.Errorf("%w: DEFAULT_TOP_K must be between 1 and %d", apperr.ErrInvalidConfiguration, retrieval.MaxTopK)
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("%w: REQUEST_TIMEOUT_SECONDS must not be negative", apperr.ErrInvalidConfiguration)
	}
	if c.IngestBatchSize < 1 {
		return fmt.Errorf("%w: INGEST_BATCH_SIZE must be at least 1", apperr.ErrInvalidConfiguration)
	}
	if c.IngestionConcurrency < 1 {
		return fmt.Errorf("%w: INGESTION_CONCURRENCY must be at least 1", apperr.ErrInvalidConfiguration)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: TEMPERATURE must be within [0, 2]", apperr.ErrInvalidConfiguration)
	}
	return nil
}

func (c *Config) Chunking() text.Options {
	return text.Options{MaxChars: c.ChunkMaxChars, Overlap: c.ChunkOverlap}
}

// Ingest assembles pipeline options. Call after Validate.
func (c *Config) Ingest() ingest.Options {
	ids, _ := ingest.ParseIDStrategy(c.IDStrategy)
	return ingest.Options{
		Chunking:    c.Chunking(),
		BatchSize:   c.IngestBatchSize,
		Concurrency: c.IngestionConcurrency,
		IDs:         ids,
	}
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}
