package memory

import (
	"strings"
	"testing"
)

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", 400, 80); len(got) != 0 {
		t.Errorf("empty input should produce no chunks, got %d", len(got))
	}
}

func TestChunkTextSingleChunk(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	chunks := ChunkText(text, 400, 80)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Text != text || c.StartLine != 1 || c.EndLine != 3 {
		t.Errorf("chunk = %+v", c)
	}
}

func TestChunkTextBudgetSplitsOnLines(t *testing.T) {
	// Ten 10-char lines, 5-token budget = 20 chars: one line per chunk.
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = strings.Repeat("x", 10)
	}
	chunks := ChunkText(strings.Join(lines, "\n"), 5, 0)
	if len(chunks) != 10 {
		t.Fatalf("got %d chunks, want 10", len(chunks))
	}
	for i, c := range chunks {
		if c.StartLine != i+1 || c.EndLine != i+1 {
			t.Errorf("chunk %d lines = [%d,%d], want [%d,%d]", i, c.StartLine, c.EndLine, i+1, i+1)
		}
	}
}

func TestChunkTextOverlapBacksUpOneLine(t *testing.T) {
	// 24-char budget fits two 10-char lines; 12-char overlap budget
	// carries exactly one trailing line into the next chunk.
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = strings.Repeat("y", 10)
	}
	chunks := ChunkText(strings.Join(lines, "\n"), 6, 3)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.StartLine <= prev.StartLine {
			t.Fatalf("chunk %d start %d does not advance past %d", i, cur.StartLine, prev.StartLine)
		}
		if cur.StartLine != prev.EndLine {
			t.Errorf("chunk %d should overlap one line: start %d, prev end %d", i, cur.StartLine, prev.EndLine)
		}
	}
	if last := chunks[len(chunks)-1]; last.EndLine != 10 {
		t.Errorf("final chunk ends at %d, want 10", last.EndLine)
	}
}

func TestChunkTextOversizedLineIsItsOwnChunk(t *testing.T) {
	text := "short\n" + strings.Repeat("z", 200) + "\nshort again"
	chunks := ChunkText(text, 10, 0) // 40-char budget
	for _, c := range chunks {
		if strings.Contains(c.Text, "zzz") && strings.Contains(c.Text, "short") {
			t.Errorf("oversized line shares a chunk: %+v", c)
		}
	}
	joined := strings.Join([]string{chunks[0].Text, chunks[1].Text, chunks[2].Text}, "\n")
	if joined != text {
		t.Errorf("chunks do not reassemble the input")
	}
}

func TestChunkTextCoversEveryLine(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(strings.Repeat("w", 3+i%17))
		sb.WriteByte('\n')
	}
	text := strings.TrimSuffix(sb.String(), "\n")
	lines := strings.Split(text, "\n")

	for _, p := range []struct{ tokens, overlap int }{{4, 0}, {10, 2}, {25, 10}, {400, 80}} {
		chunks := ChunkText(text, p.tokens, p.overlap)
		covered := make([]bool, len(lines))
		for _, c := range chunks {
			if c.StartLine < 1 || c.EndLine > len(lines) || c.StartLine > c.EndLine {
				t.Fatalf("tokens=%d: bad range [%d,%d]", p.tokens, c.StartLine, c.EndLine)
			}
			if want := strings.Join(lines[c.StartLine-1:c.EndLine], "\n"); c.Text != want {
				t.Fatalf("tokens=%d: chunk text does not match its line range", p.tokens)
			}
			for i := c.StartLine - 1; i < c.EndLine; i++ {
				covered[i] = true
			}
		}
		for i, ok := range covered {
			if !ok {
				t.Errorf("tokens=%d: line %d not covered by any chunk", p.tokens, i+1)
			}
		}
	}
}
