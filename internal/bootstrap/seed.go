// Package bootstrap seeds a fresh workspace with its template files and
// directory layout. Seeding never overwrites: a file the user (or the
// agent) has touched is theirs.
package bootstrap

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed templates/*.md
var templateFS embed.FS

// Workspace template files, seeded in this order.
const (
	AgentsFile    = "AGENTS.md"
	SoulFile      = "SOUL.md"
	UserFile      = "USER.md"
	MemoryFile    = "MEMORY.md"
	HeartbeatFile = "HEARTBEAT.md"
)

var templateFiles = []string{
	AgentsFile,
	SoulFile,
	UserFile,
	MemoryFile,
	HeartbeatFile,
}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureWorkspace seeds the template files and directory layout into the
// workspace and data directories. Existing files are left untouched.
// Returns the names of the files that were created.
func EnsureWorkspace(workspaceDir, dataDir string) ([]string, error) {
	for _, dir := range []string{
		workspaceDir,
		filepath.Join(workspaceDir, "daily"),
		filepath.Join(workspaceDir, ".claude", "skills"),
		dataDir,
		filepath.Join(dataDir, "sessions"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	var created []string
	for _, name := range templateFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap.seed_failed", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
			slog.Info("bootstrap.file_seeded", "file", name)
		}
	}
	return created, nil
}

// seedTemplate writes one template if it does not exist yet. O_EXCL makes
// the existence check and the create a single atomic step.
func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}
