package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/memory"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
)

type keywordEmbedder struct{}

// Embed maps text onto a two-word vocabulary.
func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	var v [2]float32
	if strings.Contains(text, "water") {
		v[0] = 1
	}
	if strings.Contains(text, "grazing") {
		v[1] = 1
	}
	if v[0] == 0 && v[1] == 0 {
		v[0], v[1] = 0.5, 0.5
	}
	return v[:], nil
}

type echoCompleter struct{ prompt string }

func (c *echoCompleter) Complete(_ context.Context, _, prompt string, _ float32) (string, error) {
	c.prompt = prompt
	return "answer", nil
}

type nopPublisher struct{ topics []string }

func (p *nopPublisher) Publish(topic string, _ []byte) error {
	p.topics = append(p.topics, topic)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultTopK:           5,
		Temperature:           0.2,
		RequestTimeoutSeconds: 5,
		ChunkMaxChars:         1000,
		ChunkOverlap:          200,
		IngestBatchSize:       100,
		IngestionConcurrency:  2,
		IDStrategy:            "random",
		ServerPort:            0,
	}
}

func newTestApp(t *testing.T) (*App, sqlmock.Sqlmock, index.Store, *echoCompleter, *nopPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := index.NewDimensionGuard(memory.NewStore(), 0)
	completer := &echoCompleter{}
	pub := &nopPublisher{}

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "bills.csv"), []byte("text\nA bill.\n"), 0o644))
	cfg := testConfig()
	cfg.IngestRoot = root

	a, err := New(cfg, db, store, &Gateways{Embedder: keywordEmbedder{}, Completer: completer}, pub, "test")
	require.NoError(t, err)
	return a, mock, store, completer, pub
}

func TestNew_Health(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)
	assert.NotNil(t, a.Retrieval)
	assert.NotNil(t, a.Runs)
	assert.NotNil(t, a.IngestConsumer)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNew_AskRoute(t *testing.T) {
	a, _, store, completer, _ := newTestApp(t)
	ctx := context.Background()

	p, err := PipelineFactory(testConfig(), keywordEmbedder{}, store)(ingest.DeterministicIDs)
	require.NoError(t, err)
	_, err = p.Run(ctx, []ingest.Document{
		{ID: "bill_3", Title: "Clean Water", FullText: "Sets water quality standards."},
		{ID: "bill_7", Title: "Farm Aid", FullText: "Grazing payments for ranchers."},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"What about water?","top_k":1}`))
	req.Header.Set(middleware.HeaderCorrelationID, "corr-42")
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "corr-42", w.Header().Get(middleware.HeaderCorrelationID))

	var body struct {
		Answer  string `json:"answer"`
		Sources []struct {
			BillID string `json:"bill_id"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "answer", body.Answer)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "bill_3", body.Sources[0].BillID)
	assert.Contains(t, completer.prompt, "water quality")
}

func TestNew_AskRoute_ZeroTopK(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","top_k":0}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNew_IngestRoute(t *testing.T) {
	a, mock, _, _, pub := newTestApp(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ingest_runs")).
		WithArgs(filepath.Join(a.cfg.IngestRoot, "bills.csv"), "random", "queued").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("run-1", now, now))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"path":"bills.csv"}`)))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{config.TopicIngestTask}, pub.topics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_StatsRoute(t *testing.T) {
	a, mock, _, _, _ := newTestApp(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM ingest_runs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1")).
		WithArgs("failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"chunks":0,"runs":3,"failed_runs":1}}`, w.Body.String())
}

func TestNew_IngestRoute_OutsideRoot(t *testing.T) {
	a, mock, _, _, pub := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"path":"/etc/passwd"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pub.topics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_CORSPreflight(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)

	for _, path := range []string{"/mcp", "/ask", "/ingest", "/ingest/runs", "/ingest/runs/run-1", "/ingest/runs/run-1/retry", "/stats"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			a.Handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderCorrelationID))
		})
	}
}

func TestNew_AskRoute_CORSHeaders(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"water"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_AskRoute_TopKTooLarge(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","top_k":100000}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNew_MCPRoute(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bills_ask")
}
