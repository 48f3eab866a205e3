package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

// IDStrategy decides how chunk ids are suffixed.
type IDStrategy string

const (
	// RandomIDs appends 8 random hex characters; re-ingesting adds new records.
	RandomIDs IDStrategy = "random"
	// DeterministicIDs appends a content hash so re-ingesting overwrites.
	DeterministicIDs IDStrategy = "deterministic"
)

func ParseIDStrategy(s string) (IDStrategy, error) {
	switch IDStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RandomIDs:
		return RandomIDs, nil
	case DeterministicIDs:
		return DeterministicIDs, nil
	}
	return "", fmt.Errorf("%w: unknown id strategy %q", apperr.ErrInvalidConfiguration, s)
}

// ChunkID builds "{document}_{chunk}_{suffix}".
func (s IDStrategy) ChunkID(documentID string, chunkIndex int, text string) string {
	prefix := documentID + "_" + strconv.Itoa(chunkIndex) + "_"
	if s == DeterministicIDs {
		h := sha256.New()
		h.Write([]byte(documentID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(chunkIndex)))
		h.Write([]byte{0})
		h.Write([]byte(text))
		return prefix + hex.EncodeToString(h.Sum(nil))[:16]
	}
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:])[:8]
}
