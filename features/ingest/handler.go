package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type SubmitRequest struct {
	Path       string `json:"path"`
	IDStrategy string `json:"id_strategy,omitempty"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON", http.StatusBadRequest)
		return
	}

	run, err := h.service.Submit(ctx, req.Path, req.IDStrategy)
	if err != nil {
		slog.ErrorContext(ctx, "failed to submit ingest run", "path", req.Path, "error", err)
		h.writeAppError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{"data": run})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.service.List(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list ingest runs", "error", err)
		h.writeAppError(ctx, w, err)
		return
	}
	if runs == nil {
		runs = []Run{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": runs,
		"meta": map[string]int{"count": len(runs)},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	run, err := h.service.Get(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get ingest run", "id", id, "error", err)
		h.writeAppError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": run})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying ingest run", "id", id)

	run, err := h.service.Retry(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retry ingest run", "id", id, "error", err)
		h.writeAppError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{"data": run})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeAppError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := apperr.HTTPStatus(err)
	h.writeError(ctx, w, code, err.Error(), status)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	h.writeJSON(ctx, w, status, resp)
}
