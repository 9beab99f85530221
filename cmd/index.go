package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/halcyonhq/aide/internal/memory"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Run a one-shot sync of the memory index",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				slog.Error("index.config_failed", "error", err)
				os.Exit(1)
			}

			store, err := memory.OpenSQLite(filepath.Join(cfg.Security.DataDir, "memory.db"))
			if err != nil {
				slog.Error("index.memory_open_failed", "error", err)
				os.Exit(1)
			}
			defer store.Close()

			indexer := memory.NewIndexer(store, memory.HashEmbedder{}, cfg.Memory.Search.ChunkTokens, cfg.Memory.Search.ChunkOverlap)
			paths := markdownFiles(cfg.Security.Workspace)
			if err := indexer.SyncFiles(context.Background(), paths); err != nil {
				slog.Error("index.sync_failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("indexed %d files\n", len(paths))
		},
	}
}
