package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
)

func record(id, doc string, chunk int, vec ...float32) index.Record {
	return index.Record{
		ID:        id,
		Text:      "text " + id,
		Metadata:  index.Metadata{DocumentID: doc, Title: "Title " + doc, ChunkIndex: chunk},
		Embedding: vec,
	}
}

func TestStore_QueryOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	n, err := s.Upsert(ctx, []index.Record{
		record("far", "bill_1", 0, 0, 1),
		record("near", "bill_2", 0, 1, 0),
		record("mid", "bill_3", 0, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := s.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "mid", matches[1].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	assert.Equal(t, "Title bill_2", matches[0].Metadata.Title)
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Upsert(ctx, []index.Record{record("a", "bill_1", 0, 1, 0)})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, []index.Record{record("a", "bill_1", 0, 0, 1)})
	require.NoError(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := s.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
}

func TestStore_KLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.Upsert(ctx, []index.Record{
		record("a", "bill_1", 0, 1, 0),
		record("b", "bill_1", 1, 0, 1),
	})

	matches, err := s.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestStore_EmptyIndex(t *testing.T) {
	matches, err := NewStore().Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestStore_InvalidK(t *testing.T) {
	_, err := NewStore().Query(context.Background(), []float32{1}, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestStore_TiesAreDeterministic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.Upsert(ctx, []index.Record{
		record("z", "bill_2", 0, 1, 0),
		record("y", "bill_1", 1, 1, 0),
		record("x", "bill_1", 0, 1, 0),
	})

	for i := 0; i < 5; i++ {
		matches, err := s.Query(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, "x", matches[0].ID)
		assert.Equal(t, "y", matches[1].ID)
		assert.Equal(t, "z", matches[2].ID)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.Upsert(ctx, []index.Record{record("a", "bill_1", 0, 1)})
	s.Clear()
	n, _ := s.Count(ctx)
	assert.Zero(t, n)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, cosine([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}
