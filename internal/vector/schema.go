package vector

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

const DefaultClassName = "BillChunk"

// Property names shared by the schema and the store.
const (
	PropContent    = "content"
	PropChunkID    = "chunkId"
	PropBillID     = "billId"
	PropTitle      = "title"
	PropChunkIndex = "chunkIndex"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func properties() []*models.Property {
	return []*models.Property{
		{Name: PropContent, DataType: []string{"text"}},
		{Name: PropChunkID, DataType: []string{"text"}, Tokenization: "field"},
		{Name: PropBillID, DataType: []string{"text"}, Tokenization: "field"},
		{Name: PropTitle, DataType: []string{"text"}},
		{Name: PropChunkIndex, DataType: []string{"int"}},
	}
}

// EnsureSchema creates the chunk class, or adds any properties an older
// deployment of it lacks. Vectors are supplied by the caller.
func EnsureSchema(ctx context.Context, client SchemaClient, className string) error {
	if className == "" {
		className = DefaultClassName
	}

	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return fmt.Errorf("check class %s: %w", className, err)
	}

	props := properties()
	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A chunk of a legislative bill",
			Vectorizer:  "none",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
			Properties: props,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return fmt.Errorf("get class %s: %w", className, err)
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}

	for _, p := range props {
		if existing[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, className, p); err != nil {
			return fmt.Errorf("add property %s: %w", p.Name, err)
		}
	}

	return nil
}
