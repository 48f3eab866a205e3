package ingest_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satishpasalait/RAGAIUSLawBills/features/ingest"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Create(ctx context.Context, run *ingest.Run) error {
	args := m.Called(ctx, run)
	if args.Error(0) == nil {
		run.ID = "run-1"
	}
	return args.Error(0)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*ingest.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Run), args.Error(1)
}

func (m *MockRepo) List(ctx context.Context, limit int) ([]ingest.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ingest.Run), args.Error(1)
}

func (m *MockRepo) MarkRunning(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepo) Complete(ctx context.Context, id string, documents, chunks int) error {
	return m.Called(ctx, id, documents, chunks).Error(0)
}

func (m *MockRepo) Fail(ctx context.Context, id string, chunks int, message string) error {
	return m.Called(ctx, id, chunks, message).Error(0)
}

func (m *MockRepo) Requeue(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mu       sync.Mutex
	err      error
	Topic    string
	Messages []map[string]string
}

func (p *MockPublisher) Publish(topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var msg map[string]string
	_ = json.Unmarshal(body, &msg)
	p.Topic = topic
	p.Messages = append(p.Messages, msg)
	return nil
}

// billsRoot lays out an ingest root holding a few source files and returns
// its resolved path.
func billsRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	for _, name := range []string{"bills.csv", "bills.docx", filepath.Join("data", "bills.csv")} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("text\nA bill.\n"), 0o644))
	}
	return root
}
