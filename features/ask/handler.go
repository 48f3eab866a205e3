// Package ask serves question answering over the bill index.
package ask

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/retrieval"
)

type Asker interface {
	Ask(ctx context.Context, req retrieval.AskRequest) (*retrieval.AskResponse, error)
}

type Handler struct {
	asker   Asker
	timeout time.Duration
}

func NewHandler(a Asker, timeout time.Duration) *Handler {
	return &Handler{asker: a, timeout: timeout}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req retrieval.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON", http.StatusBadRequest)
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.asker.Ask(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "ask failed", "error", err)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
