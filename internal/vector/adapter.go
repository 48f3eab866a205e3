package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateSchema satisfies SchemaClient against a live Weaviate client.
type WeaviateSchema struct {
	client *weaviate.Client
}

func NewWeaviateSchema(client *weaviate.Client) *WeaviateSchema {
	return &WeaviateSchema{client: client}
}

func (s *WeaviateSchema) ClassExists(ctx context.Context, className string) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (s *WeaviateSchema) CreateClass(ctx context.Context, class *models.Class) error {
	return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (s *WeaviateSchema) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return s.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (s *WeaviateSchema) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return s.client.Schema().PropertyCreator().
		WithClassName(className).
		WithProperty(property).
		Do(ctx)
}
