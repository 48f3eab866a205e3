package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
)

const DefaultRunTimeout = 30 * time.Minute

type IngestConsumer struct {
	runs      RunTracker
	load      DocumentLoader
	pipelines PipelineFactory
	timeout   time.Duration
}

func NewIngestConsumer(runs RunTracker, load DocumentLoader, pipelines PipelineFactory, timeout time.Duration) *IngestConsumer {
	if load == nil {
		load = ingest.Load
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &IngestConsumer{
		runs:      runs,
		load:      load,
		pipelines: pipelines,
		timeout:   timeout,
	}
}

// HandleMessage runs one queued ingestion. Failures inside the run are
// recorded on the run and acked; only ledger errors are returned so NSQ
// requeues the message.
func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.RunID == "" {
		slog.Error("poison pill: missing run id", "path", payload.Path)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if err := h.runs.MarkRunning(ctx, payload.RunID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			slog.WarnContext(ctx, "ingest run no longer exists", "run_id", payload.RunID)
			return nil
		}
		slog.ErrorContext(ctx, "failed to mark run running", "run_id", payload.RunID, "error", err)
		return err // Retry
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	report, err := h.process(runCtx, payload)
	if err != nil {
		committed := report.Chunks
		var runErr *ingest.RunError
		if errors.As(err, &runErr) {
			committed = runErr.Committed
		}
		slog.ErrorContext(ctx, "ingest run failed", "run_id", payload.RunID, "committed", committed, "error", err)
		if ferr := h.runs.Fail(ctx, payload.RunID, committed, err.Error()); ferr != nil {
			slog.ErrorContext(ctx, "failed to record run failure", "run_id", payload.RunID, "error", ferr)
		}
		return nil
	}

	if err := h.runs.Complete(ctx, payload.RunID, report.Documents, report.Chunks); err != nil {
		slog.ErrorContext(ctx, "failed to record run completion", "run_id", payload.RunID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "ingest run completed",
		"run_id", payload.RunID,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"skipped", report.Skipped,
	)
	return nil
}

func (h *IngestConsumer) process(ctx context.Context, payload IngestTaskPayload) (ingest.Report, error) {
	ids, err := ingest.ParseIDStrategy(payload.IDStrategy)
	if err != nil {
		return ingest.Report{}, err
	}

	docs, err := h.load(payload.Path)
	if err != nil {
		return ingest.Report{}, err
	}
	slog.InfoContext(ctx, "documents loaded", "run_id", payload.RunID, "path", payload.Path, "count", len(docs))

	pipeline, err := h.pipelines(ids)
	if err != nil {
		return ingest.Report{}, err
	}
	return pipeline.Run(ctx, docs)
}
