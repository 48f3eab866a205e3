package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
)

const (
	DefaultTopK        = 5
	DefaultTemperature = 0.2
	// MaxTopK bounds how many chunks one question may pull into a prompt.
	MaxTopK            = 50
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, system, prompt string, temperature float32) (string, error)
}

type AskRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

type Source struct {
	BillID     string  `json:"bill_id"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type Options struct {
	DefaultTopK int
	Temperature float32
}

type Service struct {
	embedder  Embedder
	store     index.Searcher
	completer Completer
	logger    *QueryLogger
	opts      Options
}

func NewService(e Embedder, s index.Searcher, c Completer, l *QueryLogger, opts Options) *Service {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	return &Service{embedder: e, store: s, completer: c, logger: l, opts: opts}
}

func (s *Service) DefaultTopK() int { return s.opts.DefaultTopK }

// Search embeds the question and returns the k nearest chunks, closest first.
func (s *Service) Search(ctx context.Context, question string, k int) ([]index.Match, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", apperr.ErrInvalidRequest)
	}
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	if k > MaxTopK {
		return nil, fmt.Errorf("%w: k must be at most %d, got %d", apperr.ErrInvalidRequest, MaxTopK, k)
	}

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrEmbeddingUnavailable, err)
	}

	matches, err := s.store.Query(ctx, vec, k)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexUnavailable, err)
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Ask retrieves context for the question and has the completer answer from
// it. An empty index still reaches the completer, whose instructions call
// for the fallback answer.
func (s *Service) Ask(ctx context.Context, req AskRequest) (resp *AskResponse, err error) {
	start := time.Now()
	k := s.opts.DefaultTopK
	if req.TopK != nil {
		k = *req.TopK
	}

	defer func() {
		if s.logger == nil {
			return
		}
		entry := QueryLogEntry{
			Question:      req.Question,
			TopK:          k,
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		}
		if resp != nil {
			entry.NumResults = len(resp.Sources)
		}
		if err != nil {
			entry.Error = err.Error()
		}
		s.logger.Log(entry)
	}()

	matches, err := s.Search(ctx, req.Question, k)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(req.Question, matches)
	answer, err := s.completer.Complete(ctx, SystemInstruction, prompt, s.opts.Temperature)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrAnswerGenerationFailed, err)
	}

	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, Source{
			BillID:     m.Metadata.DocumentID,
			Title:      m.Metadata.Title,
			ChunkIndex: m.Metadata.ChunkIndex,
			Score:      m.Distance,
		})
	}

	slog.DebugContext(ctx, "question answered", "top_k", k, "sources", len(sources))
	return &AskResponse{Answer: answer, Sources: sources}, nil
}
