// Package testutils starts the containers integration tests run against.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
)

const (
	dbName = "bills_test"
	dbUser = "test"
	dbPass = "test"
)

type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer

	DBHost       string
	DBPort       int
	WeaviateHost string
	NSQDAddr     string

	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

// MigrationPath is the file:// URL of the repository's migrations.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

func (s *IntegrationSuite) Setup() {
	if testing.Short() {
		s.T.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	s.startPostgres(ctx)
	s.startWeaviate(ctx)
	s.startNSQ(ctx)
}

func (s *IntegrationSuite) startPostgres(ctx context.Context) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	host, err := pgContainer.Host(ctx)
	require.NoError(s.T, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.DBHost = host
	s.DBPort, err = strconv.Atoi(port.Port())
	require.NoError(s.T, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	m, err := migrate.New(MigrationPath(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())
}

func (s *IntegrationSuite) startWeaviate(ctx context.Context) {
	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:1.25.4",
		ExposedPorts: []string{"8080/tcp", "50051/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"DEFAULT_VECTORIZER_MODULE":               "none",
			"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
		},
		WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
	}
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	host, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	port, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)
	s.WeaviateHost = fmt.Sprintf("%s:%s", host, port.Port())

	s.Weaviate, err = weaviate.NewClient(weaviate.Config{Host: s.WeaviateHost, Scheme: "http"})
	require.NoError(s.T, err)
}

func (s *IntegrationSuite) startNSQ(ctx context.Context) {
	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	host, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	port, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)
	s.NSQDAddr = fmt.Sprintf("%s:%s", host, port.Port())

	s.NSQ, err = nsq.NewProducer(s.NSQDAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a configuration pointing at the suite's containers.
// Model providers are left for the caller to stub.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost:        s.DBHost,
		DBPort:        s.DBPort,
		DBUser:        dbUser,
		DBPass:        dbPass,
		DBName:        dbName,
		MigrationPath: MigrationPath(),

		IndexBackend:   config.BackendWeaviate,
		WeaviateHost:   s.WeaviateHost,
		WeaviateScheme: "http",
		WeaviateClass:  "BillChunkTest",

		EmbeddingProvider:  config.ProviderGemini,
		CompletionProvider: config.ProviderGemini,
		Temperature:        0.2,

		ChunkMaxChars:        1000,
		ChunkOverlap:         200,
		IngestBatchSize:      100,
		IngestionConcurrency: 4,
		IDStrategy:           "random",
		IngestRoot:           s.T.TempDir(),

		DefaultTopK:           5,
		RequestTimeoutSeconds: 30,

		NSQDHost: s.NSQDAddr,

		EnableAPI:          true,
		EnableIngestWorker: true,

		BootstrapRetryAttempts:     3,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.weaviateContainer != nil {
		s.weaviateContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
