package heartbeat

import (
	"fmt"
	"strings"
	"time"
)

// OKSentinel is the exact reply the agent gives when a heartbeat found
// nothing to do; the dispatch core suppresses its delivery.
const OKSentinel = "HEARTBEAT_OK"

// ResolvePrompt builds the heartbeat prompt from the drained events.
// Exec completions outrank cron fires outrank the standard check-in, so
// the agent always hears about finished background work first.
func ResolvePrompt(events []SystemEvent, now time.Time) string {
	if texts := eventTexts(events, EventExec); len(texts) > 0 {
		return fmt.Sprintf(
			"A background command completed. Review the output and follow up if needed:\n\n%s",
			strings.Join(texts, "\n\n"))
	}
	if texts := eventTexts(events, EventCron); len(texts) > 0 {
		return fmt.Sprintf(
			"A scheduled reminder fired:\n\n%s",
			strings.Join(texts, "\n\n"))
	}
	return fmt.Sprintf(
		"Heartbeat check at %s. Read HEARTBEAT.md in the workspace and follow it strictly. "+
			"If there is nothing that needs attention, reply exactly %s.",
		now.Format(time.RFC3339), OKSentinel)
}

func eventTexts(events []SystemEvent, eventType string) []string {
	var texts []string
	for _, e := range events {
		if e.Type == eventType {
			texts = append(texts, e.Text)
		}
	}
	return texts
}

// IsHeartbeatOK reports whether a reply is the no-op sentinel.
func IsHeartbeatOK(text string) bool {
	return strings.TrimSpace(text) == OKSentinel
}
