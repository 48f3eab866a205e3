// Package apperr holds the error kinds shared by the ingestion and retrieval
// pipelines. Callers wrap a cause with a kind and test with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrEmbeddingUnavailable   = errors.New("embedding unavailable")
	ErrIndexUnavailable       = errors.New("index unavailable")
	ErrAnswerGenerationFailed = errors.New("answer generation failed")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrNotFound               = errors.New("not found")
)

var kinds = []error{
	ErrInvalidRequest,
	ErrNotFound,
	ErrInvalidConfiguration,
	ErrEmbeddingUnavailable,
	ErrIndexUnavailable,
	ErrAnswerGenerationFailed,
}

// Wrap tags err with kind. An error that already carries a known kind is
// returned as is, so the kind closest to the failure wins.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind returns the first known kind carried by err, or nil.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// HTTPStatus maps err to a response status and the error code used in the
// JSON error envelope.
func HTTPStatus(err error) (int, string) {
	switch Kind(err) {
	case ErrInvalidRequest:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case ErrNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case ErrInvalidConfiguration:
		return http.StatusInternalServerError, "INVALID_CONFIGURATION"
	case ErrEmbeddingUnavailable:
		return http.StatusServiceUnavailable, "EMBEDDING_UNAVAILABLE"
	case ErrIndexUnavailable:
		return http.StatusServiceUnavailable, "INDEX_UNAVAILABLE"
	case ErrAnswerGenerationFailed:
		return http.StatusBadGateway, "ANSWER_GENERATION_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
