package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// SearchOptions tunes the hybrid merge. Weights need not sum to 1.
type SearchOptions struct {
	VectorWeight  float64
	KeywordWeight float64
	MinScore      float64
	MaxResults    int
}

// candidateK is how many hits each leg fetches before merging.
const candidateK = 20

// HybridSearch embeds the query once, fetches vector and keyword top-K,
// normalizes both score spaces to [0,1], and merges by chunk id with the
// configured weights. Results below MinScore are dropped; the rest come
// back sorted by score descending.
func HybridSearch(ctx context.Context, store Store, embedder Embedder, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	k := candidateK
	if opts.MaxResults > k {
		k = opts.MaxResults
	}

	embeddings, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors, want 1", len(embeddings))
	}

	vectorHits, err := store.SearchVector(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	keywordHits, err := store.SearchKeyword(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	type merged struct {
		hit    SearchResult
		vScore float64
		kScore float64
	}
	table := make(map[string]*merged)

	for _, h := range vectorHits {
		v := 1 - h.Distance
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		table[h.ID] = &merged{
			vScore: v,
			hit:    SearchResult{Path: h.Path, Snippet: h.Text, StartLine: h.StartLine, EndLine: h.EndLine},
		}
	}

	// BM25 ranks come back negative (more negative = better); normalize
	// so the best hit scores exactly 1.0.
	var maxAbs float64
	for _, h := range keywordHits {
		if abs := math.Abs(h.Rank); abs > maxAbs {
			maxAbs = abs
		}
	}
	for _, h := range keywordHits {
		var score float64
		if maxAbs > 0 {
			score = math.Abs(h.Rank) / maxAbs
		}
		if m, ok := table[h.ID]; ok {
			m.kScore = score
		} else {
			table[h.ID] = &merged{
				kScore: score,
				hit:    SearchResult{Path: h.Path, Snippet: h.Text, StartLine: h.StartLine, EndLine: h.EndLine},
			}
		}
	}

	var out []SearchResult
	for _, m := range table {
		m.hit.Score = opts.VectorWeight*m.vScore + opts.KeywordWeight*m.kScore
		if m.hit.Score < opts.MinScore {
			continue
		}
		out = append(out, m.hit)
	}

	// Chunk-id tie-break keeps ordering reproducible across runs.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].StartLine < out[j].StartLine
	})
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}
