// Package memory maintains the hybrid vector+keyword index over the
// workspace memory documents. Files are chunked, embedded, and stored in
// an embedded SQLite database with an FTS5 full-text index; queries merge
// cosine-similarity and BM25 results into one ranked list.
package memory

import "context"

// Chunk is a slice of a source file. Line numbers are 1-indexed and
// endLine is inclusive.
type Chunk struct {
	Text      string
	StartLine int
	EndLine   int
}

// StoredChunk is a chunk as persisted in the store, keyed by
// "<path>:<index>".
type StoredChunk struct {
	ID        string
	Path      string
	Text      string
	Embedding []float32
	StartLine int
	EndLine   int
}

// FileRecord tracks the last-synced state of one indexed file.
type FileRecord struct {
	Path        string
	ContentHash string
	ModTime     int64
	Size        int64
}

// VectorHit is one vector-search result. Distance is cosine distance in
// [0, 2]; smaller is better.
type VectorHit struct {
	ID        string
	Path      string
	Text      string
	StartLine int
	EndLine   int
	Distance  float64
}

// KeywordHit is one full-text result. Rank is the BM25 rank as reported
// by the index; more negative is better.
type KeywordHit struct {
	ID        string
	Path      string
	Text      string
	StartLine int
	EndLine   int
	Rank      float64
}

// SearchResult is one merged hybrid-search hit. Score is the weighted
// combination of the normalized vector and keyword scores.
type SearchResult struct {
	Path      string  `json:"path"`
	Snippet   string  `json:"snippet"`
	StartLine int     `json:"startLine"`
	EndLine   int     `json:"endLine"`
	Score     float64 `json:"score"`
}

// Store is the persistence contract for chunks and file records. Raw
// distances and ranks never leave the hybrid searcher un-normalized.
type Store interface {
	UpsertChunk(ctx context.Context, c StoredChunk) error
	DeleteChunksForFile(ctx context.Context, path string) error
	SearchVector(ctx context.Context, embedding []float32, k int) ([]VectorHit, error)
	SearchKeyword(ctx context.Context, query string, k int) ([]KeywordHit, error)

	GetFileHash(ctx context.Context, path string) (string, bool, error)
	SetFileHash(ctx context.Context, rec FileRecord) error
	DeleteFileHash(ctx context.Context, path string) error
	TrackedFilePaths(ctx context.Context) ([]string, error)

	Close() error
}

// Embedder turns texts into dense vectors. Implementations batch: one
// call embeds all inputs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
