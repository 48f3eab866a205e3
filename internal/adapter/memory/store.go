// Package memory is an in-process index used for local runs and tests.
package memory

import (
	"context"
	"math"
	"sync"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]index.Record
}

func NewStore() *Store {
	return &Store{records: make(map[string]index.Record)}
}

func (s *Store) Upsert(ctx context.Context, records []index.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		s.records[r.ID] = r
	}
	return len(records), nil
}

func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]index.Match, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matches := make([]index.Match, 0, len(s.records))
	for _, r := range s.records {
		matches = append(matches, index.Match{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Distance: 1 - cosine(embedding, r.Embedding),
		})
	}
	s.mu.RUnlock()

	index.Rank(matches)
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]index.Record)
}

// cosine returns 0 for mismatched or zero-length vectors.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
