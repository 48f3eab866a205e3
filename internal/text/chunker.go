package text

import (
	"fmt"
	"strings"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

const (
	DefaultMaxChars = 1000
	DefaultOverlap  = 200
)

// Options controls window size and the number of characters shared by
// consecutive windows.
type Options struct {
	MaxChars int
	Overlap  int
}

func DefaultOptions() Options {
	return Options{MaxChars: DefaultMaxChars, Overlap: DefaultOverlap}
}

// Validate rejects parameters for which the window start would not advance.
func (o Options) Validate() error {
	if o.MaxChars <= 0 {
		return fmt.Errorf("%w: max_chars must be positive, got %d", apperr.ErrInvalidConfiguration, o.MaxChars)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", apperr.ErrInvalidConfiguration, o.Overlap)
	}
	if o.Overlap >= o.MaxChars {
		return fmt.Errorf("%w: overlap (%d) must be less than max_chars (%d)", apperr.ErrInvalidConfiguration, o.Overlap, o.MaxChars)
	}
	return nil
}

// Chunk splits text into windows of at most maxChars characters. Each window
// starts maxChars-overlap characters after the previous one, so neighbours
// share overlap characters. The last window may be shorter. Lengths are
// counted in runes, not bytes.
//
// Windows are returned as produced, blank ones included; see IsBlank.
func Chunk(text string, maxChars, overlap int) ([]string, error) {
	opts := Options{MaxChars: maxChars, Overlap: overlap}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := maxChars - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// ChunkWith is Chunk using opts.
func ChunkWith(text string, opts Options) ([]string, error) {
	return Chunk(text, opts.MaxChars, opts.Overlap)
}

// IsBlank reports whether a chunk has no non-whitespace content. Blank chunks
// carry no retrievable signal and are never embedded.
func IsBlank(chunk string) bool {
	return strings.TrimSpace(chunk) == ""
}
