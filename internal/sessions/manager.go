package sessions

import (
	"fmt"
)

// toolResultLimit caps tool_result content fed back into history.
const toolResultLimit = 500

const truncationSuffix = "... [truncated]"

// CompactResult reports the outcome of a compaction pass.
type CompactResult struct {
	Compacted      bool
	MessagesBefore int
	MessagesAfter  int
}

// LoadHistory loads the transcript for a key, drops compaction markers,
// sanitizes oversized tool results, and returns the last maxMessages
// entries. maxMessages <= 0 means unlimited.
func (s *Store) LoadHistory(key string, maxMessages int) ([]Message, error) {
	lines, err := s.LoadTranscript(key)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	for _, line := range lines {
		if line.Message == nil {
			continue
		}
		msgs = append(msgs, sanitizeMessage(*line.Message))
	}

	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	return msgs, nil
}

// sanitizeMessage truncates tool_result content past the limit so a huge
// tool dump can't dominate the context fed to the agent.
func sanitizeMessage(m Message) Message {
	if m.Role == RoleToolResult && len(m.Content) > toolResultLimit {
		m.Content = m.Content[:toolResultLimit] + truncationSuffix
	}
	return m
}

// SaveInteraction appends all messages of one completed turn.
func (s *Store) SaveInteraction(key string, msgs []Message) error {
	return s.AppendMessages(key, msgs)
}

// CompactIfNeeded trims the transcript to the last threshold messages when
// the non-compaction message count exceeds it, appending a compaction
// marker and rewriting atomically (previous file preserved as .bak).
func (s *Store) CompactIfNeeded(key string, threshold int, now func() string) (CompactResult, error) {
	if threshold <= 0 {
		return CompactResult{}, fmt.Errorf("compaction threshold must be positive, got %d", threshold)
	}

	lines, err := s.LoadTranscript(key)
	if err != nil {
		return CompactResult{}, err
	}

	var msgLines []Line
	for _, line := range lines {
		if line.Message != nil {
			msgLines = append(msgLines, line)
		}
	}

	n := len(msgLines)
	if n <= threshold {
		return CompactResult{Compacted: false, MessagesBefore: n, MessagesAfter: n}, nil
	}

	kept := msgLines[n-threshold:]
	out := make([]Line, 0, len(kept)+1)
	out = append(out, kept...)
	out = append(out, Line{Compaction: &CompactionEntry{
		Type:           "compaction",
		Timestamp:      now(),
		MessagesBefore: n,
		MessagesAfter:  threshold,
	}})

	if err := s.RewriteTranscript(key, out); err != nil {
		return CompactResult{}, err
	}
	return CompactResult{Compacted: true, MessagesBefore: n, MessagesAfter: threshold}, nil
}
