package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
)

type MockRunTracker struct{ mock.Mock }

func (m *MockRunTracker) MarkRunning(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRunTracker) Complete(ctx context.Context, id string, documents, chunks int) error {
	return m.Called(ctx, id, documents, chunks).Error(0)
}

func (m *MockRunTracker) Fail(ctx context.Context, id string, chunks int, message string) error {
	return m.Called(ctx, id, chunks, message).Error(0)
}

type MockIngester struct{ mock.Mock }

func (m *MockIngester) Run(ctx context.Context, docs []ingest.Document) (ingest.Report, error) {
	args := m.Called(ctx, docs)
	return args.Get(0).(ingest.Report), args.Error(1)
}
