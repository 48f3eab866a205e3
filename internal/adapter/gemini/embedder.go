// Package gemini reaches Google's Gemini API for embeddings and answer
// generation.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

const (
	DefaultEmbeddingModel = "gemini-embedding-001"
	DefaultChatModel      = "gemini-2.0-flash"
)

// NewClient builds a genai client authenticated with apiKey. Extra options
// are applied after the key, which lets tests redirect the endpoint.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", apperr.ErrInvalidConfiguration)
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %w", apperr.ErrInvalidConfiguration, err)
	}
	return client, nil
}

type Embedder struct {
	model *genai.EmbeddingModel
	name  string
}

func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{model: client.EmbeddingModel(model), name: model}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrEmbeddingUnavailable, fmt.Errorf("%s: %w", e.name, err))
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty embedding", apperr.ErrEmbeddingUnavailable, e.name)
	}
	return res.Embedding.Values, nil
}
