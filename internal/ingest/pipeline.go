// Package ingest turns bill documents into indexed chunk records.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/text"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	Chunking    text.Options
	BatchSize   int
	Concurrency int
	IDs         IDStrategy
}

func DefaultOptions() Options {
	return Options{
		Chunking:    text.DefaultOptions(),
		BatchSize:   DefaultBatchSize,
		Concurrency: DefaultConcurrency,
		IDs:         RandomIDs,
	}
}

// Report summarises a completed run.
type Report struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Skipped   int `json:"skipped"` // blank windows dropped before embedding
}

// RunError is returned when a run aborts. Committed counts the chunks that
// reached the index before the failure.
type RunError struct {
	Committed int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ingestion aborted after %d chunks: %v", e.Committed, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

type Pipeline struct {
	embedder Embedder
	store    index.Writer
	opts     Options
}

func NewPipeline(embedder Embedder, store index.Writer, opts Options) (*Pipeline, error) {
	if err := opts.Chunking.Validate(); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.IDs == "" {
		opts.IDs = RandomIDs
	}
	return &Pipeline{embedder: embedder, store: store, opts: opts}, nil
}

// Run chunks, embeds and upserts every document. Records reach the index in
// document order and, within a document, in chunk order.
func (p *Pipeline) Run(ctx context.Context, docs []Document) (Report, error) {
	var report Report
	batch := make([]index.Record, 0, p.opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := p.store.Upsert(ctx, batch)
		report.Chunks += n
		if err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, doc := range docs {
		records, skipped, err := p.prepare(ctx, doc)
		if err != nil {
			return report, &RunError{Committed: report.Chunks, Err: fmt.Errorf("document %s: %w", doc.ID, err)}
		}
		report.Documents++
		report.Skipped += skipped

		for _, r := range records {
			batch = append(batch, r)
			if len(batch) < p.opts.BatchSize {
				continue
			}
			if err := flush(); err != nil {
				return report, &RunError{Committed: report.Chunks, Err: err}
			}
		}
		slog.DebugContext(ctx, "document prepared", "document_id", doc.ID, "chunks", len(records), "skipped", skipped)
	}

	if err := flush(); err != nil {
		return report, &RunError{Committed: report.Chunks, Err: err}
	}

	slog.InfoContext(ctx, "ingestion complete", "documents", report.Documents, "chunks", report.Chunks, "skipped", report.Skipped)
	return report, nil
}

// prepare chunks one document and embeds its non-blank chunks with bounded
// parallelism. Each record keeps the chunker's ordinal as its chunk index.
func (p *Pipeline) prepare(ctx context.Context, doc Document) ([]index.Record, int, error) {
	chunks, err := text.ChunkWith(doc.FullText, p.opts.Chunking)
	if err != nil {
		return nil, 0, err
	}

	slots := make([]*index.Record, len(chunks))
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, chunk := range chunks {
		if text.IsBlank(chunk) {
			skipped++
			continue
		}
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, chunk)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			slots[i] = &index.Record{
				ID:   p.opts.IDs.ChunkID(doc.ID, i, chunk),
				Text: chunk,
				Metadata: index.Metadata{
					DocumentID: doc.ID,
					Title:      doc.Title,
					ChunkIndex: i,
				},
				Embedding: vec,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, skipped, err
	}

	records := make([]index.Record, 0, len(chunks)-skipped)
	for _, r := range slots {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, skipped, nil
}
