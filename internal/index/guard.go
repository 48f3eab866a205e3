package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DimensionGuard wraps a Store and rejects vectors whose length differs from
// the index dimension. With a zero dimension the guard adopts the length of
// the first vector it sees.
type DimensionGuard struct {
	next Store

	mu  sync.RWMutex
	dim int
}

func NewDimensionGuard(next Store, dim int) *DimensionGuard {
	return &DimensionGuard{next: next, dim: dim}
}

func (g *DimensionGuard) Dimension() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dim
}

func (g *DimensionGuard) check(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: %w: empty embedding", apperr.ErrInvalidConfiguration, ErrDimensionMismatch)
	}

	g.mu.RLock()
	dim := g.dim
	g.mu.RUnlock()

	if dim == 0 {
		g.mu.Lock()
		if g.dim == 0 {
			g.dim = len(vec)
		}
		dim = g.dim
		g.mu.Unlock()
	}

	if len(vec) != dim {
		return fmt.Errorf("%w: %w: got %d, index uses %d", apperr.ErrInvalidConfiguration, ErrDimensionMismatch, len(vec), dim)
	}
	return nil
}

func (g *DimensionGuard) Upsert(ctx context.Context, records []Record) (int, error) {
	for _, r := range records {
		if err := g.check(r.Embedding); err != nil {
			return 0, fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	return g.next.Upsert(ctx, records)
}

func (g *DimensionGuard) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if err := ValidateK(k); err != nil {
		return nil, err
	}
	if err := g.check(embedding); err != nil {
		return nil, err
	}
	return g.next.Query(ctx, embedding, k)
}

func (g *DimensionGuard) Count(ctx context.Context) (int, error) {
	return g.next.Count(ctx)
}
