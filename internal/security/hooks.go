package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyonhq/aide/internal/config"
)

// HookDecision is the outcome of a PreToolUse gate. Allow means the tool
// call proceeds unchanged; a block carries a reason surfaced to the agent
// as a tool-denied result, never as an error.
type HookDecision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

func allow() HookDecision {
	return HookDecision{Allow: true}
}

func block(format string, args ...any) HookDecision {
	return HookDecision{Allow: false, Reason: fmt.Sprintf(format, args...)}
}

var sudoRe = regexp.MustCompile(`\bsudo\b`)

// BashGate validates a shell command before execution. Commands must be on
// the allowlist; rm and kill (and anything else in the extra-validation
// list) get argument-level checks; every path the command can write is
// validated against the workspace policy.
func BashGate(command string, sec config.SecurityConfig) HookDecision {
	if strings.TrimSpace(command) == "" {
		return allow()
	}
	if sudoRe.MatchString(command) {
		return block("sudo is not permitted")
	}

	names, err := ExtractCommands(command)
	if err != nil {
		// Fail safe: a string we cannot tokenize is a string we cannot vet.
		return block("could not parse command: %v", err)
	}

	allowed := make(map[string]bool, len(sec.AllowedCommands))
	for _, c := range sec.AllowedCommands {
		allowed[c] = true
	}
	extra := make(map[string]bool, len(sec.CommandsNeedingExtraValidation))
	for _, c := range sec.CommandsNeedingExtraValidation {
		extra[c] = true
	}

	for _, name := range names {
		if name == "sudo" {
			return block("sudo is not permitted")
		}
		if !allowed[name] {
			return block("command %q is not in the allowed list", name)
		}
	}

	// Argument-level validation runs per pipeline segment so flags from one
	// command cannot mask another's.
	if len(extra) > 0 {
		for _, seg := range commandSegments(command) {
			segNames, _ := ExtractCommands(seg)
			for _, name := range segNames {
				if !extra[name] {
					continue
				}
				var verr error
				switch name {
				case "rm":
					verr = ValidateRmCommand(seg)
				case "kill":
					verr = ValidateKillCommand(seg)
				}
				if verr != nil {
					return block("%v", verr)
				}
			}
		}
	}

	policy := PathPolicy{
		WorkspaceDir:        sec.Workspace,
		AdditionalWriteDirs: sec.AdditionalWriteDirs,
		Op:                  OpWrite,
	}
	for _, p := range ExtractFilePaths(command) {
		if res := ValidatePath(p, policy); !res.Valid {
			return block("path %q: %s", p, res.Reason)
		}
	}

	return allow()
}

// Gate routes a tool call to the matching validator: Bash commands go
// through the command gate, file tools through the path gate. Tools
// with no side effects on the host pass.
func Gate(toolName string, input map[string]any, sec config.SecurityConfig) HookDecision {
	if toolName == "Bash" {
		command, _ := input["command"].(string)
		return BashGate(command, sec)
	}
	return FileGate(toolName, input, sec)
}

// commandSegments returns the top-level pipeline segments of a command.
func commandSegments(command string) []string {
	segments, substitutions, err := splitShellString(command)
	if err != nil {
		return []string{command}
	}
	for _, sub := range substitutions {
		segments = append(segments, commandSegments(sub)...)
	}
	return segments
}

// fileToolPaths maps file tools to the input field carrying the path,
// the access kind, and whether the field may be absent.
var fileToolPaths = map[string]struct {
	field    string
	op       Op
	optional bool
}{
	"Read":  {"file_path", OpRead, false},
	"Glob":  {"path", OpRead, true},
	"Grep":  {"path", OpRead, true},
	"Write": {"file_path", OpWrite, false},
	"Edit":  {"file_path", OpWrite, false},
}

// FileGate validates the path argument of a file tool. A missing optional
// path means "current directory" and passes. Reads additionally allow the
// extra read dirs and the data dir (transcripts, cron store).
func FileGate(toolName string, input map[string]any, sec config.SecurityConfig) HookDecision {
	spec, ok := fileToolPaths[toolName]
	if !ok {
		return allow()
	}

	raw, present := input[spec.field]
	path, _ := raw.(string)
	if path == "" {
		if spec.optional || !present {
			return allow()
		}
		return block("%s requires %s", toolName, spec.field)
	}

	policy := PathPolicy{
		WorkspaceDir:        sec.Workspace,
		AdditionalWriteDirs: sec.AdditionalWriteDirs,
		Op:                  spec.op,
	}
	if spec.op == OpRead {
		policy.AdditionalReadDirs = append(policy.AdditionalReadDirs, sec.AdditionalReadDirs...)
		policy.AdditionalReadDirs = append(policy.AdditionalReadDirs, sec.AdditionalWriteDirs...)
		if sec.DataDir != "" {
			policy.AdditionalReadDirs = append(policy.AdditionalReadDirs, sec.DataDir)
		}
	}

	if res := ValidatePath(path, policy); !res.Valid {
		return block("path %q: %s", path, res.Reason)
	}
	return allow()
}
