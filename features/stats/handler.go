package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
)

type RunCounter interface {
	Count(ctx context.Context) (int, error)
	CountFailed(ctx context.Context) (int, error)
}

type Handler struct {
	runs  RunCounter
	index index.Counter
}

func NewHandler(runs RunCounter, idx index.Counter) *Handler {
	return &Handler{runs: runs, index: idx}
}

type StatsResponse struct {
	Chunks     int `json:"chunks"`
	Runs       int `json:"runs"`
	FailedRuns int `json:"failed_runs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slog.InfoContext(ctx, "getting stats")

	chunks, err := h.index.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		err = apperr.Wrap(apperr.ErrIndexUnavailable, err)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, "failed to count chunks", status)
		return
	}

	runs, err := h.runs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count runs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count runs", http.StatusInternalServerError)
		return
	}

	failed, err := h.runs.CountFailed(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed runs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed runs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Chunks:     chunks,
		Runs:       runs,
		FailedRuns: failed,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
