package security

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Op distinguishes read from write access for path policy checks.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// PathPolicy names the directories a tool may touch.
type PathPolicy struct {
	WorkspaceDir        string
	AdditionalReadDirs  []string
	AdditionalWriteDirs []string
	Op                  Op
}

// PathResult is the outcome of validating one path.
type PathResult struct {
	Valid        bool
	ResolvedPath string
	Reason       string
}

// ValidatePath resolves and normalizes path, then admits or denies it
// against the policy. Write access requires the path to fall inside the
// workspace or an additional write dir; read access additionally allows
// the additional read dirs. The workspace directory itself is always valid.
func ValidatePath(path string, policy PathPolicy) PathResult {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return PathResult{Valid: false, Reason: "empty path"}
	}
	if strings.ContainsRune(trimmed, 0) {
		return PathResult{Valid: false, Reason: "path contains null byte"}
	}

	expanded := expandHome(trimmed)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(policy.WorkspaceDir, expanded)
	}
	cleaned := filepath.Clean(expanded)

	resolved := canonicalize(cleaned)

	allowed := []string{policy.WorkspaceDir}
	allowed = append(allowed, policy.AdditionalWriteDirs...)
	if policy.Op == OpRead {
		allowed = append(allowed, policy.AdditionalReadDirs...)
	}

	for _, dir := range allowed {
		if dir == "" {
			continue
		}
		if isPathInside(resolved, canonicalize(filepath.Clean(dir))) {
			return PathResult{Valid: true, ResolvedPath: resolved}
		}
	}

	slog.Warn("security.path_escape", "path", path, "resolved", resolved, "op", string(policy.Op))
	return PathResult{Valid: false, ResolvedPath: resolved, Reason: "path outside allowed directories"}
}

// canonicalize resolves symlinks when the path exists; otherwise it
// canonicalizes the deepest existing ancestor and reattaches the rest,
// so a symlinked parent can't smuggle a not-yet-created file outside.
func canonicalize(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}

	current := path
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent

		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, component := range tail {
				result = filepath.Join(result, component)
			}
			return result
		}
	}
	return filepath.Clean(path)
}

// isPathInside checks whether child is inside or equal to parent.
// The separator-terminated prefix comparison prevents prefix attacks
// where /data/pa-evil would match /data/pa.
func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
