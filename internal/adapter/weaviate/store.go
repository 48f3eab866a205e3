package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/vector"
)

// chunkNamespace seeds the object UUIDs derived from chunk ids, so writing
// the same chunk id twice replaces the object.
var chunkNamespace = uuid.MustParse("6f1c2b7e-0d4a-4c55-9a53-3d0e8b2f9a10")

type Store struct {
	client    *weaviate.Client
	className string
}

func NewStore(client *weaviate.Client, className string) *Store {
	if className == "" {
		className = vector.DefaultClassName
	}
	return &Store{client: client, className: className}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateSchema(s.client), s.className)
}

// ObjectID maps a chunk id onto the UUID Weaviate stores it under.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String())
}

func (s *Store) Upsert(ctx context.Context, records []index.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, 0, len(records))
	byObject := make(map[strfmt.UUID]string, len(records))
	for _, r := range records {
		id := ObjectID(r.ID)
		byObject[id] = r.ID
		objects = append(objects, &models.Object{
			Class: s.className,
			ID:    id,
			Properties: map[string]interface{}{
				vector.PropContent:    r.Text,
				vector.PropChunkID:    r.ID,
				vector.PropBillID:     r.Metadata.DocumentID,
				vector.PropTitle:      r.Metadata.Title,
				vector.PropChunkIndex: r.Metadata.ChunkIndex,
			},
			Vector: r.Embedding,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("batch upsert: %w", err))
	}

	failed := make(map[string]string)
	for _, item := range resp {
		if item.Result == nil || item.Result.Errors == nil {
			continue
		}
		var msgs []string
		for _, e := range item.Result.Errors.Error {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) == 0 {
			continue
		}
		chunkID, ok := byObject[item.ID]
		if !ok {
			chunkID = item.ID.String()
		}
		failed[chunkID] = strings.Join(msgs, "; ")
	}

	persisted := len(records) - len(failed)
	if len(failed) > 0 {
		return persisted, &index.BatchError{Persisted: persisted, Failed: failed}
	}
	return persisted, nil
}

func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]index.Match, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(embedding)

	fields := []graphql.Field{
		{Name: vector.PropContent},
		{Name: vector.PropChunkID},
		{Name: vector.PropBillID},
		{Name: vector.PropTitle},
		{Name: vector.PropChunkIndex},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("near vector query: %w", err))
	}
	if len(res.Errors) > 0 {
		return nil, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("graphql error: %s", res.Errors[0].Message))
	}

	matches := []index.Match{}
	data, _ := res.Data["Get"].(map[string]interface{})
	rows, _ := data[s.className].([]interface{})
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		m := index.Match{
			ID:   stringProp(props, vector.PropChunkID),
			Text: stringProp(props, vector.PropContent),
			Metadata: index.Metadata{
				DocumentID: stringProp(props, vector.PropBillID),
				Title:      stringProp(props, vector.PropTitle),
			},
		}
		if idx, ok := props[vector.PropChunkIndex].(float64); ok {
			m.Metadata.ChunkIndex = int(idx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				m.Distance = float32(d)
			}
		}
		matches = append(matches, m)
	}

	index.Rank(matches)
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("aggregate: %w", err))
	}
	if len(res.Errors) > 0 {
		return 0, apperr.Wrap(apperr.ErrIndexUnavailable, fmt.Errorf("graphql error: %s", res.Errors[0].Message))
	}

	data, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := data[s.className].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func stringProp(props map[string]interface{}, name string) string {
	v, _ := props[name].(string)
	return v
}
