package retrieval

import (
	"fmt"
	"strings"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
)

const (
	SystemInstruction = "You are a knowledge assistant for US bills."
	FallbackAnswer    = "I don't know based on the provided documents."
	ContextDelimiter  = "\n\n---\n\n"
)

// ContextBlock renders one retrieved chunk as "[title, chunk N]\ntext".
func ContextBlock(m index.Match) string {
	return fmt.Sprintf("[%s, chunk %d]\n%s", m.Metadata.Title, m.Metadata.ChunkIndex, m.Text)
}

// BuildPrompt lays out the retrieved chunks in rank order followed by the
// question. With no matches the context section is left empty.
func BuildPrompt(question string, matches []index.Match) string {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, ContextBlock(m))
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about US legislative bills.\n\n")
	b.WriteString("Use ONLY the information in the CONTEXT below. If the answer is not clearly\n")
	fmt.Fprintf(&b, "contained in the context, say %q\n\n", FallbackAnswer)
	b.WriteString("CONTEXT:\n")
	b.WriteString(strings.Join(blocks, ContextDelimiter))
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer in clear, concise English.")
	return b.String()
}
