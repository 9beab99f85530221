// Package cron persists scheduled jobs as a single JSON file and fires
// them through one re-armable timer. Job payloads are plain text prompts
// that the gateway enqueues as synthetic messages.
package cron

// Schedule kinds.
const (
	KindCron     = "cron"     // crontab expression, evaluated in UTC
	KindOneshot  = "oneshot"  // a single ISO-8601 instant
	KindInterval = "interval" // fixed period in milliseconds
)

// Schedule is a tagged union over the three schedule kinds; only the
// field matching Kind is meaningful.
type Schedule struct {
	Kind    string `json:"type"`
	Expr    string `json:"expression,omitempty"`
	ISO     string `json:"iso,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
}

// Payload is what a fired job delivers to the agent.
type Payload struct {
	Text string `json:"text"`
}

// Job is one scheduled entry.
type Job struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Schedule    Schedule `json:"schedule"`
	Payload     Payload  `json:"payload"`
	Enabled     bool     `json:"enabled"`
	CreatedAt   string   `json:"createdAt"`
	LastFiredAt string   `json:"lastFiredAt,omitempty"`
}
