package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// shellKeywords are skipped when looking for the command word in a segment.
var shellKeywords = map[string]bool{
	"if": true, "then": true, "else": true, "elif": true, "fi": true,
	"for": true, "select": true, "do": true, "done": true,
	"while": true, "until": true, "case": true, "esac": true, "in": true,
	"function": true, "!": true, "{": true, "}": true,
}

var assignmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// ExtractCommands returns the command names (basenames) invoked by a shell
// string, walking pipes, sequencers, command substitutions (with nesting),
// backticks, and leading variable assignments. sudo is reported as a command
// in its own right so callers can forbid it. Malformed input (an unclosed
// quote) returns an error so the caller can fail safe.
func ExtractCommands(s string) ([]string, error) {
	var names []string
	if err := extractCommandsInto(s, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func extractCommandsInto(s string, names *[]string) error {
	segments, substitutions, err := splitShellString(s)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		appendCommandNames(seg, names)
	}
	for _, sub := range substitutions {
		if err := extractCommandsInto(sub, names); err != nil {
			return err
		}
	}
	return nil
}

// appendCommandNames finds the command word(s) of one pipeline segment.
func appendCommandNames(segment string, names *[]string) {
	fields := strings.Fields(segment)
	for len(fields) > 0 {
		word := fields[0]
		switch {
		case assignmentRe.MatchString(word):
			fields = fields[1:] // VAR=val prefix
		case shellKeywords[word]:
			fields = fields[1:]
		case word == "sudo":
			*names = append(*names, "sudo")
			fields = fields[1:]
		default:
			// A segment opening with redirection syntax has no command word.
			if word[0] == '<' || word[0] == '>' || strings.HasPrefix(word, "2>") || strings.HasPrefix(word, "&>") {
				return
			}
			name := filepath.Base(strings.Trim(word, `"'`))
			if name != "" && name != "." {
				*names = append(*names, name)
			}
			return
		}
	}
}

// splitShellString splits s on top-level | ; && || & boundaries, returning
// pipeline segments plus the bodies of $(…) and backtick substitutions.
// Quoted text is kept intact; an unclosed quote is an error.
func splitShellString(s string) (segments, substitutions []string, err error) {
	var current strings.Builder
	flush := func() {
		if seg := strings.TrimSpace(current.String()); seg != "" {
			segments = append(segments, seg)
		}
		current.Reset()
	}

	i := 0
	n := len(s)
	for i < n {
		c := s[i]
		switch c {
		case '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, nil, fmt.Errorf("unclosed single quote")
			}
			current.WriteString(s[i : i+end+2])
			i += end + 2
		case '"':
			end := i + 1
			for end < n && s[end] != '"' {
				if s[end] == '\\' && end+1 < n {
					end++
				}
				end++
			}
			if end >= n {
				return nil, nil, fmt.Errorf("unclosed double quote")
			}
			current.WriteString(s[i : end+1])
			i = end + 1
		case '`':
			end := strings.IndexByte(s[i+1:], '`')
			if end < 0 {
				return nil, nil, fmt.Errorf("unclosed backtick")
			}
			substitutions = append(substitutions, s[i+1:i+1+end])
			current.WriteByte(' ')
			i += end + 2
		case '$':
			if i+1 < n && s[i+1] == '(' {
				body, consumed, serr := scanSubstitution(s[i+2:])
				if serr != nil {
					return nil, nil, serr
				}
				substitutions = append(substitutions, body)
				current.WriteByte(' ')
				i += 2 + consumed
			} else {
				current.WriteByte(c)
				i++
			}
		case '|', ';', '&':
			flush()
			// consume the full operator (||, &&)
			if i+1 < n && s[i+1] == c {
				i++
			}
			i++
		default:
			current.WriteByte(c)
			i++
		}
	}
	flush()
	return segments, substitutions, nil
}

// scanSubstitution reads a $(…) body starting just after the opening paren,
// tracking nesting and quotes. Returns the body and bytes consumed
// including the closing paren.
func scanSubstitution(s string) (body string, consumed int, err error) {
	depth := 1
	i := 0
	for i < len(s) {
		switch s[i] {
		case '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return "", 0, fmt.Errorf("unclosed single quote in substitution")
			}
			i += end + 2
		case '(':
			depth++
			i++
		case ')':
			depth--
			if depth == 0 {
				return s[:i], i + 1, nil
			}
			i++
		default:
			i++
		}
	}
	return "", 0, fmt.Errorf("unclosed command substitution")
}

// fileMutatingCommands take filesystem paths as plain operands.
var fileMutatingCommands = map[string]bool{
	"cp": true, "mv": true, "rm": true, "rmdir": true,
	"mkdir": true, "chmod": true, "touch": true, "ln": true, "tee": true,
}

var redirectionRe = regexp.MustCompile(`(?:^|[^>\d])(\d?>>?|&>)\s*([^\s;|&]+)`)

// ExtractFilePaths returns the paths a shell string may mutate: operands of
// file-mutating commands, output-flag targets of curl/wget/unzip, and
// redirection targets.
func ExtractFilePaths(s string) []string {
	var paths []string
	segments, substitutions, err := splitShellString(s)
	if err != nil {
		return nil
	}
	for _, sub := range substitutions {
		paths = append(paths, ExtractFilePaths(sub)...)
	}

	for _, seg := range segments {
		// Redirection targets (> >> 2> &>).
		for _, m := range redirectionRe.FindAllStringSubmatch(seg, -1) {
			paths = append(paths, strings.Trim(m[2], `"'`))
		}

		fields := strings.Fields(stripRedirections(seg))
		// Skip assignments/keywords to find the command word.
		for len(fields) > 0 && (assignmentRe.MatchString(fields[0]) || shellKeywords[fields[0]] || fields[0] == "sudo") {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		cmd := filepath.Base(fields[0])
		args := fields[1:]

		switch {
		case fileMutatingCommands[cmd]:
			skippedMode := false
			for _, a := range args {
				if strings.HasPrefix(a, "-") {
					continue
				}
				// chmod's first operand is the mode, not a path.
				if cmd == "chmod" && !skippedMode {
					skippedMode = true
					continue
				}
				paths = append(paths, strings.Trim(a, `"'`))
			}
		case cmd == "curl":
			paths = append(paths, flagValues(args, "-o", "--output")...)
		case cmd == "wget":
			paths = append(paths, flagValues(args, "-O", "--output-document")...)
		case cmd == "unzip":
			paths = append(paths, flagValues(args, "-d")...)
		}
	}
	return paths
}

func stripRedirections(seg string) string {
	return redirectionRe.ReplaceAllStringFunc(seg, func(m string) string {
		// The pattern may consume one ordinary byte before the operator.
		c := m[0]
		if c == '>' || c == '&' || (c >= '0' && c <= '9') {
			return " "
		}
		return string(c) + " "
	})
}

// flagValues returns the arguments following any of the given flags,
// supporting both "--flag value" and "--flag=value" forms.
func flagValues(args []string, flags ...string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		for _, f := range flags {
			if args[i] == f && i+1 < len(args) {
				out = append(out, strings.Trim(args[i+1], `"'`))
			} else if strings.HasPrefix(args[i], f+"=") {
				out = append(out, strings.Trim(args[i][len(f)+1:], `"'`))
			}
		}
	}
	return out
}

// dangerousRmTargets is the fixed deny list for rm. Matching is exact
// against the raw operand.
var dangerousRmTargets = map[string]bool{
	"/": true, "/*": true, "*": true, ".": true, "..": true,
	"../*": true, ".*": true, "~": true, "~/": true, "~/*": true,
	"/etc": true, "/usr": true, "/home": true, "/var": true,
	"/bin": true, "/sbin": true, "/lib": true, "/boot": true,
	"/dev": true, "/proc": true, "/sys": true, "/opt": true, "/root": true,
}

var recursiveFlagRe = regexp.MustCompile(`^-[a-zA-Z]*[rR]|^--recursive$`)

// ValidateRmCommand rejects rm invocations that would destroy critical
// paths: no target, a target on the fixed dangerous list, recursive with a
// wildcard target, or recursive removal of a hidden-file glob.
func ValidateRmCommand(s string) error {
	fields := strings.Fields(s)
	// Drop everything up to and including the rm word.
	for len(fields) > 0 && filepath.Base(fields[0]) != "rm" {
		fields = fields[1:]
	}
	if len(fields) > 0 {
		fields = fields[1:]
	}

	recursive := false
	var targets []string
	for _, a := range fields {
		if strings.HasPrefix(a, "-") {
			if recursiveFlagRe.MatchString(a) {
				recursive = true
			}
			continue
		}
		targets = append(targets, strings.Trim(a, `"'`))
	}

	if len(targets) == 0 {
		return fmt.Errorf("rm without a target is not allowed")
	}
	for _, t := range targets {
		if dangerousRmTargets[t] {
			return fmt.Errorf("rm target %q is a protected path", t)
		}
		if recursive && strings.ContainsAny(t, "*?") {
			return fmt.Errorf("recursive rm with wildcard target %q is not allowed", t)
		}
		if recursive && strings.HasPrefix(filepath.Base(t), ".") && strings.Contains(t, "*") {
			return fmt.Errorf("recursive rm of hidden-file glob %q is not allowed", t)
		}
	}
	return nil
}

// ValidateKillCommand rejects kill invocations against PID 1, negative PIDs
// (process groups), and low system PIDs. "kill -l" is always allowed;
// signal flags (-9, -TERM, -s SIG) are accepted.
func ValidateKillCommand(s string) error {
	fields := strings.Fields(s)
	for len(fields) > 0 && filepath.Base(fields[0]) != "kill" {
		fields = fields[1:]
	}
	if len(fields) > 0 {
		fields = fields[1:]
	}

	var pids []string
	sawSignal := false
	operandsOnly := false
	for i := 0; i < len(fields); i++ {
		a := fields[i]
		if operandsOnly {
			pids = append(pids, a)
			continue
		}
		switch {
		case a == "--":
			operandsOnly = true
		case a == "-l" || a == "--list":
			return nil
		case a == "-s":
			i++ // signal name follows
			sawSignal = true
		case strings.HasPrefix(a, "--"):
			// long option, no PID
		case strings.HasPrefix(a, "-"):
			// The first -9 / -TERM / -SIGKILL is the signal flag. A second
			// -<number> is how kill addresses a process group.
			if n, err := strconv.Atoi(a); err == nil && sawSignal {
				return fmt.Errorf("negative PID %d targets a process group", n)
			}
			sawSignal = true
		default:
			pids = append(pids, a)
		}
	}

	if len(pids) == 0 {
		return fmt.Errorf("kill without a PID is not allowed")
	}
	for _, p := range pids {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue // %1 jobspec etc.
		}
		if n == 1 {
			return fmt.Errorf("refusing to kill PID 1")
		}
		if n < 0 {
			return fmt.Errorf("negative PID %d targets a process group", n)
		}
		if n < 100 {
			return fmt.Errorf("refusing to kill system PID %d (below 100)", n)
		}
	}
	return nil
}
