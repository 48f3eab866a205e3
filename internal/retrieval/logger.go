package retrieval

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QueryLogEntry is one audit line written per answered (or failed) question.
type QueryLogEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	Question      string        `json:"question"`
	TopK          int           `json:"top_k"`
	NumResults    int           `json:"num_results"`
	Duration      time.Duration `json:"duration_ns"`
	LatencyMs     int64         `json:"latency_ms"`
	CorrelationID string        `json:"correlation_id"`
	Error         string        `json:"error,omitempty"`
}

type QueryLogger struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{writer: w}
}

// NewFileQueryLogger appends entries to path, creating its directory.
func NewFileQueryLogger(path string) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, err
	}
	return &QueryLogger{writer: f, closer: f}, nil
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	entry.Timestamp = time.Now().UTC()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "error", err)
	}
}

func (l *QueryLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
