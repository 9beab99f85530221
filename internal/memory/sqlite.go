package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Full-text
// search goes through an FTS5 shadow table; vector search scans the chunk
// embeddings in process, which is plenty for a personal memory corpus.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		path       TEXT NOT NULL,
		text       TEXT NOT NULL,
		embedding  TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path)`,
	`CREATE TABLE IF NOT EXISTS files (
		path         TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		mtime        INTEGER NOT NULL,
		size         INTEGER NOT NULL
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(chunk_id UNINDEXED, content)`,
}

// OpenSQLite opens (creating if needed) the store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The pure-Go driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	for _, ddl := range sqliteDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertChunk replaces the chunk row and its full-text shadow row by id.
func (s *SQLiteStore) UpsertChunk(ctx context.Context, c StoredChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, path, text, embedding, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Path, c.Text, serializeEmbedding(c.Embedding), c.StartLine, c.EndLine,
	)
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear fts row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)`, c.ID, c.Text); err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return tx.Commit()
}

// DeleteChunksForFile removes every chunk (and fts row) for a path.
func (s *SQLiteStore) DeleteChunksForFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE path = ?)`, path); err != nil {
		return fmt.Errorf("delete fts rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return tx.Commit()
}

// SearchVector returns the k nearest chunks by cosine distance. The scan
// is in-process: embeddings are deserialized and compared one by one.
func (s *SQLiteStore) SearchVector(ctx context.Context, embedding []float32, k int) ([]VectorHit, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, text, embedding, start_line, end_line FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		var emb string
		if err := rows.Scan(&h.ID, &h.Path, &h.Text, &emb, &h.StartLine, &h.EndLine); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, err := deserializeEmbedding(emb)
		if err != nil {
			slog.Warn("memory.bad_embedding", "chunk", h.ID, "error", err)
			continue
		}
		h.Distance = 1 - float64(cosineSimilarity(embedding, vec))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SearchKeyword returns the top-k chunks by BM25 rank. The raw query is
// reduced to quoted terms joined with OR so punctuation in user text
// cannot break the FTS5 query grammar.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, query string, k int) ([]KeywordHit, error) {
	match := ftsQuery(query)
	if match == "" || k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.path, c.text, c.start_line, c.end_line, f.rank
		 FROM chunks_fts f
		 JOIN chunks c ON c.id = f.chunk_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY f.rank
		 LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.ID, &h.Path, &h.Text, &h.StartLine, &h.EndLine, &h.Rank); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// GetFileHash returns the stored content hash for a path.
func (s *SQLiteStore) GetFileHash(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get file hash: %w", err)
	}
	return hash, true, nil
}

func (s *SQLiteStore) SetFileHash(ctx context.Context, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (path, content_hash, mtime, size) VALUES (?, ?, ?, ?)`,
		rec.Path, rec.ContentHash, rec.ModTime, rec.Size)
	if err != nil {
		return fmt.Errorf("set file hash: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFileHash(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete file hash: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TrackedFilePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ftsQuery turns free text into an FTS5 match expression: each
// alphanumeric term quoted, joined with OR.
func ftsQuery(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r >= 0x80)
	})
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
