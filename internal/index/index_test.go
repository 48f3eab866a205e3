package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) Upsert(ctx context.Context, records []index.Record) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Query(ctx context.Context, embedding []float32, k int) ([]index.Match, error) {
	args := m.Called(ctx, embedding, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.Match), args.Error(1)
}

func (m *MockStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestRank(t *testing.T) {
	matches := []index.Match{
		{ID: "c", Distance: 0.5, Metadata: index.Metadata{DocumentID: "bill_2", ChunkIndex: 0}},
		{ID: "b", Distance: 0.1, Metadata: index.Metadata{DocumentID: "bill_9", ChunkIndex: 3}},
		{ID: "a2", Distance: 0.5, Metadata: index.Metadata{DocumentID: "bill_1", ChunkIndex: 2}},
		{ID: "a1", Distance: 0.5, Metadata: index.Metadata{DocumentID: "bill_1", ChunkIndex: 1}},
	}

	index.Rank(matches)

	var ids []string
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"b", "a1", "a2", "c"}, ids)
}

func TestValidateK(t *testing.T) {
	assert.NoError(t, index.ValidateK(1))
	assert.ErrorIs(t, index.ValidateK(0), apperr.ErrInvalidRequest)
	assert.ErrorIs(t, index.ValidateK(-3), apperr.ErrInvalidRequest)
}

func TestBatchError(t *testing.T) {
	err := &index.BatchError{Persisted: 2, Failed: map[string]string{"x": "timeout"}}
	assert.ErrorIs(t, err, apperr.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "2 records persisted, 1 failed (x)")
}

func TestDimensionGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("Adopts First Dimension", func(t *testing.T) {
		store := new(MockStore)
		guard := index.NewDimensionGuard(store, 0)

		first := []index.Record{{ID: "1", Embedding: []float32{1, 0, 0}}}
		store.On("Upsert", ctx, first).Return(1, nil)

		n, err := guard.Upsert(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 3, guard.Dimension())

		_, err = guard.Upsert(ctx, []index.Record{{ID: "2", Embedding: []float32{1, 0}}})
		assert.ErrorIs(t, err, index.ErrDimensionMismatch)
		assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
		store.AssertNumberOfCalls(t, "Upsert", 1)
	})

	t.Run("Rejects Mismatched Query", func(t *testing.T) {
		store := new(MockStore)
		guard := index.NewDimensionGuard(store, 2)

		_, err := guard.Query(ctx, []float32{1, 2, 3}, 5)
		assert.ErrorIs(t, err, index.ErrDimensionMismatch)
		store.AssertNotCalled(t, "Query")
	})

	t.Run("Rejects Empty Vector", func(t *testing.T) {
		guard := index.NewDimensionGuard(new(MockStore), 0)
		_, err := guard.Query(ctx, nil, 5)
		assert.ErrorIs(t, err, index.ErrDimensionMismatch)
		assert.Equal(t, 0, guard.Dimension())
	})

	t.Run("Rejects Non Positive K", func(t *testing.T) {
		store := new(MockStore)
		guard := index.NewDimensionGuard(store, 2)
		_, err := guard.Query(ctx, []float32{1, 2}, 0)
		assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	})

	t.Run("Delegates Matching Query", func(t *testing.T) {
		store := new(MockStore)
		guard := index.NewDimensionGuard(store, 2)
		want := []index.Match{{ID: "1", Distance: 0.1}}
		store.On("Query", ctx, []float32{1, 2}, 5).Return(want, nil)
		store.On("Count", ctx).Return(7, nil)

		got, err := guard.Query(ctx, []float32{1, 2}, 5)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		n, err := guard.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})
}
