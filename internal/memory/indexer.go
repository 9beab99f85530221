package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Indexer keeps the store in sync with a set of files on disk. It is the
// only writer to the store; sync runs from one place at a time.
type Indexer struct {
	store    Store
	embedder Embedder

	chunkTokens  int
	chunkOverlap int

	mu    sync.Mutex
	dirty atomic.Bool
}

// NewIndexer builds an indexer. Non-positive chunk parameters fall back
// to the defaults.
func NewIndexer(store Store, embedder Embedder, chunkTokens, chunkOverlap int) *Indexer {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Indexer{
		store:        store,
		embedder:     embedder,
		chunkTokens:  chunkTokens,
		chunkOverlap: chunkOverlap,
	}
}

// MarkDirty flags the index as stale; the next SyncIfDirty does a full
// sync. Safe to call from the filesystem watcher goroutine.
func (ix *Indexer) MarkDirty() { ix.dirty.Store(true) }

// IsDirty reports whether a re-sync is pending.
func (ix *Indexer) IsDirty() bool { return ix.dirty.Load() }

// SyncIfDirty runs SyncFiles only when the dirty flag is set, clearing
// it first so changes landing mid-sync flag the next pass.
func (ix *Indexer) SyncIfDirty(ctx context.Context, paths []string) error {
	if !ix.dirty.CompareAndSwap(true, false) {
		return nil
	}
	return ix.SyncFiles(ctx, paths)
}

// SyncFiles reconciles the store against paths: files no longer listed
// are dropped, files with an unchanged content hash are skipped, and
// the rest are re-chunked, re-embedded in one batch per file, and
// upserted.
func (ix *Indexer) SyncFiles(ctx context.Context, paths []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}

	tracked, err := ix.store.TrackedFilePaths(ctx)
	if err != nil {
		return fmt.Errorf("list tracked files: %w", err)
	}
	for _, p := range tracked {
		if wanted[p] {
			continue
		}
		if err := ix.store.DeleteChunksForFile(ctx, p); err != nil {
			slog.Warn("memory.drop_failed", "path", p, "error", err)
			continue
		}
		if err := ix.store.DeleteFileHash(ctx, p); err != nil {
			slog.Warn("memory.drop_failed", "path", p, "error", err)
			continue
		}
		slog.Info("memory.file_dropped", "path", p)
	}

	// A failure on one file must not starve the rest of the corpus.
	for _, p := range paths {
		if err := ix.syncOne(ctx, p); err != nil {
			slog.Warn("memory.file_sync_failed", "path", p, "error", err)
		}
	}
	return nil
}

func (ix *Indexer) syncOne(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		// Unreadable files are skipped, not fatal: the file may have
		// been removed between listing and reading.
		slog.Warn("memory.read_failed", "path", path, "error", err)
		return nil
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	stored, ok, err := ix.store.GetFileHash(ctx, path)
	if err != nil {
		return fmt.Errorf("get hash for %s: %w", path, err)
	}
	if ok && stored == hash {
		return nil
	}

	if err := ix.store.DeleteChunksForFile(ctx, path); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", path, err)
	}

	chunks := ChunkText(string(data), ix.chunkTokens, ix.chunkOverlap)
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		embeddings, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %s: %w", path, err)
		}
		if len(embeddings) != len(chunks) {
			return fmt.Errorf("embed %s: got %d vectors for %d chunks", path, len(embeddings), len(chunks))
		}
		for i, c := range chunks {
			sc := StoredChunk{
				ID:        fmt.Sprintf("%s:%d", path, i),
				Path:      path,
				Text:      c.Text,
				Embedding: embeddings[i],
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
			}
			if err := ix.store.UpsertChunk(ctx, sc); err != nil {
				return fmt.Errorf("upsert chunk %s: %w", sc.ID, err)
			}
		}
	}

	rec := FileRecord{Path: path, ContentHash: hash, Size: int64(len(data))}
	if info, err := os.Stat(path); err == nil {
		rec.ModTime = info.ModTime().Unix()
	}
	if err := ix.store.SetFileHash(ctx, rec); err != nil {
		return fmt.Errorf("record hash for %s: %w", path, err)
	}
	slog.Info("memory.file_indexed", "path", path, "chunks", len(chunks))
	return nil
}
