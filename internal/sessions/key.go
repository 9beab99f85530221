// Package sessions — session keys, JSONL transcripts, and compaction.
//
// Session keys have the form
//
//	{source}--{sourceId}[--{threadId}]
//
// joined with the literal separator "--". The first segment is the source
// tag (an adapter name, "heartbeat", or "cron"); the source must not itself
// contain "--".
//
// Examples:
//
//	telegram--386246614
//	telegram--386246614--99
//	heartbeat--main
package sessions

import "strings"

// Separator joins session key parts.
const Separator = "--"

// Key builds a session key from its parts, skipping empty ones.
func Key(source, sourceID, threadID string) string {
	parts := []string{source}
	if sourceID != "" {
		parts = append(parts, sourceID)
	}
	if threadID != "" {
		parts = append(parts, threadID)
	}
	return strings.Join(parts, Separator)
}

// SourceOf returns the source tag of a session key (its first segment).
func SourceOf(key string) string {
	if i := strings.Index(key, Separator); i >= 0 {
		return key[:i]
	}
	return key
}
