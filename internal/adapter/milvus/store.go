// Package milvus stores bill chunks in a Milvus collection.
package milvus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	milvusindex "github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
)

const DefaultCollection = "bill_chunks"

// Field names for the chunk collection
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldBillID     = "bill_id"
	FieldTitle      = "title"
	FieldChunkIndex = "chunk_index"
	FieldEmbedding  = "embedding"
)

var outputFields = []string{FieldText, FieldBillID, FieldTitle, FieldChunkIndex}

type Store struct {
	client     *milvusclient.Client
	collection string

	mu    sync.Mutex
	ready bool
}

func Connect(ctx context.Context, address, collection string) (*Store, error) {
	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: address})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("connect milvus %s: %w", address, err))
	}
	return NewStore(client, collection), nil
}

func NewStore(client *milvusclient.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Schema describes the chunk collection for vectors of length dim.
func Schema(collection string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    "Chunks of legislative bills",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "255"},
			},
			{
				Name:       FieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:       FieldBillID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "255"},
			},
			{
				Name:       FieldTitle,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "1024"},
			},
			{
				Name:     FieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       FieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
		},
	}
}

// EnsureCollection creates, indexes and loads the collection if needed.
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx, dim)
}

func (s *Store) ensureLocked(ctx context.Context, dim int) error {
	if s.ready {
		return nil
	}

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("check collection %s: %w", s.collection, err))
	}

	if !exists {
		if dim <= 0 {
			return fmt.Errorf("%w: collection %s needs a vector dimension", apperr.ErrInvalidConfiguration, s.collection)
		}
		createOpt := milvusclient.NewCreateCollectionOption(s.collection, Schema(s.collection, dim))
		if err := s.client.CreateCollection(ctx, createOpt); err != nil {
			return apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("create collection %s: %w", s.collection, err))
		}

		idx := milvusindex.NewHNSWIndex(entity.COSINE, 16, 200)
		task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, FieldEmbedding, idx))
		if err != nil {
			return apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("create index on %s: %w", FieldEmbedding, err))
		}
		if err := task.Await(ctx); err != nil {
			return apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("await index on %s: %w", FieldEmbedding, err))
		}
		slog.InfoContext(ctx, "milvus collection created", "collection", s.collection, "dim", dim)
	}

	load, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("load collection %s: %w", s.collection, err))
	}
	if err := load.Await(ctx); err != nil {
		return apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("await load %s: %w", s.collection, err))
	}

	s.ready = true
	return nil
}

// Columns splits records into the column-oriented insert Milvus expects.
func Columns(collection string, records []index.Record) milvusclient.UpsertOption {
	n := len(records)
	ids := make([]string, 0, n)
	texts := make([]string, 0, n)
	bills := make([]string, 0, n)
	titles := make([]string, 0, n)
	chunks := make([]int64, 0, n)
	vectors := make([][]float32, 0, n)
	dim := 0

	for _, r := range records {
		ids = append(ids, r.ID)
		texts = append(texts, r.Text)
		bills = append(bills, r.Metadata.DocumentID)
		titles = append(titles, r.Metadata.Title)
		chunks = append(chunks, int64(r.Metadata.ChunkIndex))
		vectors = append(vectors, r.Embedding)
		dim = len(r.Embedding)
	}

	return milvusclient.NewColumnBasedInsertOption(collection).
		WithVarcharColumn(FieldID, ids).
		WithVarcharColumn(FieldText, texts).
		WithVarcharColumn(FieldBillID, bills).
		WithVarcharColumn(FieldTitle, titles).
		WithInt64Column(FieldChunkIndex, chunks).
		WithFloatVectorColumn(FieldEmbedding, dim, vectors)
}

func (s *Store) Upsert(ctx context.Context, records []index.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	err := s.ensureLocked(ctx, len(records[0].Embedding))
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	res, err := s.client.Upsert(ctx, Columns(s.collection, records))
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("upsert into %s: %w", s.collection, err))
	}
	return int(res.UpsertCount), nil
}

// exists reports whether the collection is there to be searched, loading it
// on first use.
func (s *Store) exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return true, nil
	}
	ok, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return false, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("check collection %s: %w", s.collection, err))
	}
	if !ok {
		return false, nil
	}
	return true, s.ensureLocked(ctx, 0)
}

func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]index.Match, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}

	ok, err := s.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []index.Match{}, nil
	}

	opt := milvusclient.NewSearchOption(s.collection, k, []entity.Vector{entity.FloatVector(embedding)}).
		WithANNSField(FieldEmbedding).
		WithOutputFields(outputFields...)

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("search %s: %w", s.collection, err))
	}
	if len(results) == 0 {
		return []index.Match{}, nil
	}

	rs := results[0]
	lookup := func(name string) column.Column { return rs.GetColumn(name) }
	matches, err := MatchesFrom(rs.ResultCount, rs.IDs, rs.Scores, lookup)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexUnavailable, err)
	}
	return matches, nil
}

// MatchesFrom converts one search result set into ranked matches. Milvus
// reports cosine similarity, turned here into 1 - similarity.
func MatchesFrom(count int, ids column.Column, scores []float32, lookup func(string) column.Column) ([]index.Match, error) {
	texts, bills, titles, chunks := lookup(FieldText), lookup(FieldBillID), lookup(FieldTitle), lookup(FieldChunkIndex)
	if ids == nil || texts == nil || bills == nil || titles == nil || chunks == nil {
		return nil, fmt.Errorf("search result is missing output fields")
	}

	matches := make([]index.Match, 0, count)
	for i := 0; i < count; i++ {
		var m index.Match
		var err error
		if m.ID, err = ids.GetAsString(i); err != nil {
			return nil, fmt.Errorf("row %d id: %w", i, err)
		}
		if m.Text, err = texts.GetAsString(i); err != nil {
			return nil, fmt.Errorf("row %d text: %w", i, err)
		}
		if m.Metadata.DocumentID, err = bills.GetAsString(i); err != nil {
			return nil, fmt.Errorf("row %d bill_id: %w", i, err)
		}
		if m.Metadata.Title, err = titles.GetAsString(i); err != nil {
			return nil, fmt.Errorf("row %d title: %w", i, err)
		}
		chunk, err := chunks.GetAsInt64(i)
		if err != nil {
			return nil, fmt.Errorf("row %d chunk_index: %w", i, err)
		}
		m.Metadata.ChunkIndex = int(chunk)
		if i < len(scores) {
			m.Distance = 1 - scores[i]
		}
		matches = append(matches, m)
	}

	index.Rank(matches)
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}

	rs, err := s.client.Query(ctx, milvusclient.NewQueryOption(s.collection).WithOutputFields("count(*)"))
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("count %s: %w", s.collection, err))
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("read count: %w", err))
	}
	return int(n), nil
}
