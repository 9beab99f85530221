package agent

import "github.com/halcyonhq/aide/internal/config"

// MCPServer describes one tool server the executor may attach.
type MCPServer struct {
	Name    string
	Command string
	Args    []string
}

// Options is the immutable per-turn options bag handed to the executor.
// Resume is the only field the runner fills in per call. HookCommand is
// a shell command the agent CLI invokes before every tool call; it
// receives the tool name and input on stdin and can deny the call.
type Options struct {
	WorkspaceDir       string
	MemoryContext      string
	MCPServers         []MCPServer
	MaxHistoryMessages int
	HookCommand        string
	Resume             string
}

// BuildOptions assembles the options bag from config plus the loaded
// memory documents and the pre-tool-use hook command.
func BuildOptions(cfg *config.Config, workspaceDir, memoryContent string, mcpServers []MCPServer, hookCommand string) Options {
	return Options{
		WorkspaceDir:       workspaceDir,
		MemoryContext:      memoryContent,
		MCPServers:         mcpServers,
		MaxHistoryMessages: cfg.Session.MaxHistoryMessages,
		HookCommand:        hookCommand,
	}
}
