package memory

import "strings"

// Default chunking parameters, in approximate tokens (1 token ≈ 4 chars).
const (
	DefaultChunkTokens  = 400
	DefaultChunkOverlap = 80
)

// ChunkText splits text into line-aligned chunks. The budget is
// tokens*4 characters; a line is never split across chunks, so a single
// line longer than the budget becomes its own chunk. Consecutive chunks
// overlap by up to overlap*4 characters of trailing lines, but each
// chunk always starts strictly after the previous one. Empty input
// yields no chunks.
func ChunkText(text string, tokens, overlap int) []Chunk {
	if text == "" {
		return nil
	}
	if tokens < 1 {
		tokens = DefaultChunkTokens
	}
	if overlap < 0 {
		overlap = 0
	}
	budget := tokens * 4
	overlapBudget := overlap * 4

	lines := strings.Split(text, "\n")
	var chunks []Chunk

	start := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) {
			lineLen := len(lines[end]) + 1
			if end > start && size+lineLen > budget {
				break
			}
			size += lineLen
			end++
		}

		chunks = append(chunks, Chunk{
			Text:      strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
		})
		if end >= len(lines) {
			break
		}

		// Back the next start up into the tail of this chunk, bounded
		// by the overlap budget and by forward progress.
		next := end
		carried := 0
		for next > start+1 {
			lineLen := len(lines[next-1]) + 1
			if carried+lineLen > overlapBudget {
				break
			}
			carried += lineLen
			next--
		}
		start = next
	}
	return chunks
}
