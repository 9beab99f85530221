package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyonhq/aide/internal/memory"
)

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query...]",
		Short: "Query the memory index (hybrid vector + keyword)",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				slog.Error("search.config_failed", "error", err)
				os.Exit(1)
			}

			store, err := memory.OpenSQLite(filepath.Join(cfg.Security.DataDir, "memory.db"))
			if err != nil {
				slog.Error("search.memory_open_failed", "error", err)
				os.Exit(1)
			}
			defer store.Close()

			sc := cfg.Memory.Search
			results, err := memory.HybridSearch(context.Background(), store, memory.HashEmbedder{}, strings.Join(args, " "), memory.SearchOptions{
				VectorWeight:  sc.VectorWeight,
				KeywordWeight: sc.KeywordWeight,
				MinScore:      sc.MinScore,
				MaxResults:    sc.MaxResults,
			})
			if err != nil {
				slog.Error("search.failed", "error", err)
				os.Exit(1)
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return
			}
			for _, r := range results {
				fmt.Printf("%.3f  %s:%d-%d\n%s\n\n", r.Score, r.Path, r.StartLine, r.EndLine, indent(r.Snippet))
			}
		},
	}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
