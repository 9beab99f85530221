package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, offline feature-hashing embedder.
// Each lowercased token is hashed into one of Dim buckets and the
// resulting counts are L2-normalized. It is no substitute for a learned
// model, but it gives the vector leg usable signal when no embedding
// provider is configured, and it never needs the network.
type HashEmbedder struct {
	Dim int
}

const defaultHashDim = 256

func (e HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = defaultHashDim
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(tok, ".,;:!?'\"()[]{}")))
			vec[h.Sum32()%uint32(dim)]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= inv
			}
		}
		out[i] = vec
	}
	return out, nil
}
