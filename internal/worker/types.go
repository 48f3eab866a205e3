package worker

import (
	"context"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
)

type RunTracker interface {
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, documents, chunks int) error
	Fail(ctx context.Context, id string, chunks int, message string) error
}

type Ingester interface {
	Run(ctx context.Context, docs []ingest.Document) (ingest.Report, error)
}

// PipelineFactory builds an ingester for one run's id strategy.
type PipelineFactory func(ids ingest.IDStrategy) (Ingester, error)

type DocumentLoader func(path string) ([]ingest.Document, error)
