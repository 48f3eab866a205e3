// Package openai reaches the OpenAI API for embeddings and answer generation.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
)

// NewClient builds an OpenAI client. The SDK retries by default; gateway
// calls here are single attempts so failures surface to the caller.
func NewClient(apiKey string, opts ...option.RequestOption) (openai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return openai.Client{}, fmt.Errorf("%w: openai api key not configured", apperr.ErrInvalidConfiguration)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return openai.NewClient(opts...), nil
}

type Embedder struct {
	client openai.Client
	model  string
}

func NewEmbedder(client openai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrEmbeddingUnavailable, fmt.Errorf("%s: %w", e.model, err))
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty embedding", apperr.ErrEmbeddingUnavailable, e.model)
	}

	vec := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

type Completer struct {
	client openai.Client
	model  string
}

func NewCompleter(client openai.Client, model string) *Completer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Completer{client: client, model: model}
}

func (c *Completer) Complete(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	res, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(temperature)),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAnswerGenerationFailed, fmt.Errorf("%s: %w", c.model, err))
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", apperr.ErrAnswerGenerationFailed, c.model)
	}
	return res.Choices[0].Message.Content, nil
}
