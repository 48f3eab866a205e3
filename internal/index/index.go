// Package index defines the contract every vector store adapter satisfies.
//
// Distances are ascending: a smaller distance is a closer match. Adapters
// whose native metric is a similarity convert it with 1 - similarity before
// returning.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

type Metadata struct {
	DocumentID string `json:"bill_id"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
}

// Record is one chunk ready to be persisted.
type Record struct {
	ID        string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// Match is a record returned by a nearest-neighbour query.
type Match struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}

type Writer interface {
	// Upsert persists records, replacing any with the same ID, and returns
	// how many were persisted.
	Upsert(ctx context.Context, records []Record) (int, error)
}

type Searcher interface {
	// Query returns at most k matches nearest to embedding, closest first.
	// An empty index yields an empty slice.
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)
}

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Store interface {
	Writer
	Searcher
	Counter
}

// BatchError reports an upsert in which some records were not persisted.
type BatchError struct {
	Persisted int
	Failed    map[string]string // record id -> reason
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > 3 {
		ids = append(ids[:3], "...")
	}
	return fmt.Sprintf("%d records persisted, %d failed (%s)", e.Persisted, len(e.Failed), strings.Join(ids, ", "))
}

func (e *BatchError) Unwrap() error { return apperr.ErrIndexUnavailable }

// Rank orders matches by distance, breaking ties by document, chunk index and
// id so equal distances always come back in the same order.
func Rank(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Metadata.DocumentID != b.Metadata.DocumentID {
			return a.Metadata.DocumentID < b.Metadata.DocumentID
		}
		if a.Metadata.ChunkIndex != b.Metadata.ChunkIndex {
			return a.Metadata.ChunkIndex < b.Metadata.ChunkIndex
		}
		return a.ID < b.ID
	})
}

// ValidateK rejects non-positive result counts.
func ValidateK(k int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", apperr.ErrInvalidRequest, k)
	}
	return nil
}
