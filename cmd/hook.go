package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyonhq/aide/internal/config"
	"github.com/halcyonhq/aide/internal/security"
)

func hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "hook",
		Short:  "PreToolUse gate invoked by the agent CLI (not for interactive use)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runHook(os.Stdin, os.Stdout, cfg.Security)
		},
	}
}

// hookInput is the tool-call envelope the agent CLI pipes to PreToolUse
// hooks on stdin.
type hookInput struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}

// hookOutput is the decision envelope the CLI expects back on stdout. An
// allow is signaled by empty output; a deny carries the reason, which
// the CLI surfaces to the agent as a tool-denied result.
type hookOutput struct {
	HookSpecificOutput struct {
		HookEventName            string `json:"hookEventName"`
		PermissionDecision       string `json:"permissionDecision"`
		PermissionDecisionReason string `json:"permissionDecisionReason"`
	} `json:"hookSpecificOutput"`
}

// runHook reads one tool call from in, gates it against the security
// policy, and writes a deny decision to out when blocked.
func runHook(in io.Reader, out io.Writer, sec config.SecurityConfig) error {
	var call hookInput
	if err := json.NewDecoder(in).Decode(&call); err != nil {
		return fmt.Errorf("decode hook input: %w", err)
	}

	decision := security.Gate(call.ToolName, call.ToolInput, sec)
	if decision.Allow {
		return nil
	}

	var reply hookOutput
	reply.HookSpecificOutput.HookEventName = "PreToolUse"
	reply.HookSpecificOutput.PermissionDecision = "deny"
	reply.HookSpecificOutput.PermissionDecisionReason = decision.Reason
	if err := json.NewEncoder(out).Encode(reply); err != nil {
		return fmt.Errorf("encode hook output: %w", err)
	}
	return nil
}
