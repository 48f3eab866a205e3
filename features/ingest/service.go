// Package ingest records ingestion runs and hands them to the ingest worker.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	pipeline "github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/worker"
)

const (
	DefaultListLimit = 50
	publishTimeout   = 5 * time.Second
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
	root string
}

// NewService builds a Service that only accepts paths under root.
func NewService(repo Repository, pub EventPublisher, root string) *Service {
	return &Service{repo: repo, pub: pub, root: root}
}

// Submit records a queued run for path and publishes it to the worker.
func (s *Service) Submit(ctx context.Context, path, idStrategy string) (*Run, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", apperr.ErrInvalidRequest)
	}
	if filepath.Ext(path) != "" && !pipeline.Supported(path) {
		return nil, fmt.Errorf("%w: unsupported file type for %s", apperr.ErrInvalidRequest, path)
	}
	strategy, err := pipeline.ParseIDStrategy(idStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	path, err = s.resolve(path)
	if err != nil {
		return nil, err
	}

	run := &Run{Path: path, IDStrategy: string(strategy), Status: StatusQueued}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := s.publish(ctx, run); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "run_id", run.ID, "error", err)
		if ferr := s.repo.Fail(ctx, run.ID, 0, err.Error()); ferr != nil {
			slog.ErrorContext(ctx, "failed to mark run failed", "run_id", run.ID, "error", ferr)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "ingest run queued", "run_id", run.ID, "path", run.Path, "id_strategy", run.IDStrategy)
	return run, nil
}

// Retry requeues a failed run.
func (s *Service) Retry(ctx context.Context, id string) (*Run, error) {
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusFailed {
		return nil, fmt.Errorf("%w: run %s is %s, only failed runs can be retried", apperr.ErrInvalidRequest, id, run.Status)
	}

	if err := s.repo.Requeue(ctx, id); err != nil {
		return nil, err
	}
	run.Status = StatusQueued
	run.Error = ""

	if err := s.publish(ctx, run); err != nil {
		if ferr := s.repo.Fail(ctx, id, run.Chunks, err.Error()); ferr != nil {
			slog.ErrorContext(ctx, "failed to mark run failed", "run_id", id, "error", ferr)
		}
		return nil, err
	}
	return run, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountFailed(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, StatusFailed)
}

func (s *Service) publish(ctx context.Context, run *Run) error {
	body, err := json.Marshal(worker.IngestTaskPayload{
		RunID:         run.ID,
		Path:          run.Path,
		IDStrategy:    run.IDStrategy,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.pub.Publish(config.TopicIngestTask, body) }()

	select {
	case err := <-done:
		return err
	case <-time.After(publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load reads the documents at path after checking it against the ingest root
// again, so queued tasks cannot reach outside it either.
func (s *Service) Load(path string) ([]pipeline.Document, error) {
	resolved, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return pipeline.Load(resolved)
}

// resolve maps path onto the ingest root, following symlinks. Relative paths
// are taken from the root. The result must exist and stay inside the root.
func (s *Service) resolve(path string) (string, error) {
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("%w: ingest root %q: %w", apperr.ErrInvalidConfiguration, s.root, err)
	}
	root, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("%w: ingest root %q: %w", apperr.ErrInvalidConfiguration, s.root, err)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if !within(root, path) && !within(absRoot, path) {
		return "", fmt.Errorf("%w: path %s is outside the ingest root", apperr.ErrInvalidRequest, path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("%w: path %s cannot be read", apperr.ErrInvalidRequest, path)
	}
	if !within(root, resolved) {
		return "", fmt.Errorf("%w: path %s is outside the ingest root", apperr.ErrInvalidRequest, path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: path %s cannot be read", apperr.ErrInvalidRequest, path)
	}
	if !info.IsDir() && !pipeline.Supported(resolved) {
		return "", fmt.Errorf("%w: unsupported file type for %s", apperr.ErrInvalidRequest, path)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
