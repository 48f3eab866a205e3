package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

type Completer struct {
	client *genai.Client
	name   string
}

func NewCompleter(client *genai.Client, model string) *Completer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Completer{client: client, name: model}
}

// Complete sends prompt under the given system instruction and returns the
// concatenated text of the first candidate.
func (c *Completer) Complete(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	model := c.client.GenerativeModel(c.name)
	model.SetTemperature(temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAnswerGenerationFailed, fmt.Errorf("%s: %w", c.name, err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: %s returned no candidates", apperr.ErrAnswerGenerationFailed, c.name)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}
