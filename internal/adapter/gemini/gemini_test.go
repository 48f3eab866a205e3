package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/adapter/gemini"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

// fakeGemini answers embedContent and generateContent calls; everything
// else is a 500.
func fakeGemini(t *testing.T, embedding []float32, answer string, status int) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"boom","status":"INVALID_ARGUMENT"}}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":embedContent"):
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"embedding": map[string]interface{}{"values": embedding},
			})
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "systemInstruction")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"candidates": []interface{}{
					map[string]interface{}{
						"content": map[string]interface{}{
							"role":  "model",
							"parts": []interface{}{map[string]interface{}{"text": answer}},
						},
					},
				},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := gemini.NewClient(context.Background(), " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
	assert.ErrorContains(t, err, "gemini api key not configured")
}

func TestEmbedder_Embed(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		url := fakeGemini(t, []float32{0.1, 0.2, 0.3}, "", http.StatusOK)
		client, err := gemini.NewClient(ctx, "test-key", option.WithEndpoint(url))
		require.NoError(t, err)
		defer client.Close()

		vec, err := gemini.NewEmbedder(client, "").Embed(ctx, "clean water act")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("Empty Vector", func(t *testing.T) {
		url := fakeGemini(t, []float32{}, "", http.StatusOK)
		client, err := gemini.NewClient(ctx, "test-key", option.WithEndpoint(url))
		require.NoError(t, err)
		defer client.Close()

		vec, err := gemini.NewEmbedder(client, "").Embed(ctx, "hello")
		assert.ErrorIs(t, err, apperr.ErrEmbeddingUnavailable)
		assert.Nil(t, vec)
	})

	t.Run("Server Error", func(t *testing.T) {
		url := fakeGemini(t, nil, "", http.StatusBadRequest)
		client, err := gemini.NewClient(ctx, "test-key", option.WithEndpoint(url))
		require.NoError(t, err)
		defer client.Close()

		_, err = gemini.NewEmbedder(client, "").Embed(ctx, "hello")
		assert.ErrorIs(t, err, apperr.ErrEmbeddingUnavailable)
	})
}

func TestCompleter_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		url := fakeGemini(t, nil, "Bill 3 funds water treatment.", http.StatusOK)
		client, err := gemini.NewClient(ctx, "test-key", option.WithEndpoint(url))
		require.NoError(t, err)
		defer client.Close()

		answer, err := gemini.NewCompleter(client, "").Complete(ctx, "system", "prompt", 0.2)
		require.NoError(t, err)
		assert.Equal(t, "Bill 3 funds water treatment.", answer)
	})

	t.Run("Server Error", func(t *testing.T) {
		url := fakeGemini(t, nil, "", http.StatusBadRequest)
		client, err := gemini.NewClient(ctx, "test-key", option.WithEndpoint(url))
		require.NoError(t, err)
		defer client.Close()

		answer, err := gemini.NewCompleter(client, "").Complete(ctx, "system", "prompt", 0.2)
		assert.ErrorIs(t, err, apperr.ErrAnswerGenerationFailed)
		assert.Empty(t, answer)
	})
}
