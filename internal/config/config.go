package config

// Config is the root configuration for the aide daemon.
type Config struct {
	Security  SecurityConfig  `json:"security"`
	Gateway   GatewayConfig   `json:"gateway"`
	Session   SessionConfig   `json:"session"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Memory    MemoryConfig    `json:"memory"`
}

// SecurityConfig defines the sandbox policy and filesystem roots.
type SecurityConfig struct {
	Workspace                     string   `json:"workspace"`
	DataDir                       string   `json:"dataDir"`
	AllowedCommands               []string `json:"allowedCommands"`
	CommandsNeedingExtraValidation []string `json:"commandsNeedingExtraValidation"`
	AdditionalReadDirs            []string `json:"additionalReadDirs,omitempty"`
	AdditionalWriteDirs           []string `json:"additionalWriteDirs,omitempty"`
}

// GatewayConfig controls the dispatch queue and processing updates.
type GatewayConfig struct {
	MaxQueueSize               int `json:"maxQueueSize"`
	ProcessingUpdateIntervalMs int `json:"processingUpdateIntervalMs"`
}

// SessionConfig controls history loading and transcript compaction.
type SessionConfig struct {
	MaxHistoryMessages  int  `json:"maxHistoryMessages"`
	CompactionEnabled   bool `json:"compactionEnabled"`
	CompactionThreshold int  `json:"compactionThreshold"`
}

// HeartbeatConfig controls the periodic heartbeat scheduler.
type HeartbeatConfig struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"intervalMinutes"`
	ActiveHours     string `json:"activeHours"` // "8-21": start inclusive, end exclusive, local time
	DeliverTo       string `json:"deliverTo"`   // "last" or a registered adapter name
}

// MemoryConfig configures the memory index and hybrid search.
type MemoryConfig struct {
	Search SearchConfig `json:"search"`
}

// SearchConfig holds hybrid search tunables and chunking defaults.
type SearchConfig struct {
	VectorWeight  float64 `json:"vectorWeight"`
	KeywordWeight float64 `json:"keywordWeight"`
	MinScore      float64 `json:"minScore"`
	MaxResults    int     `json:"maxResults"`
	ChunkTokens   int     `json:"chunkTokens"`
	ChunkOverlap  int     `json:"chunkOverlap"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			Workspace: "~/.aide/workspace",
			DataDir:   "~/.aide/data",
			AllowedCommands: []string{
				"ls", "cat", "head", "tail", "grep", "rg", "find", "wc",
				"echo", "pwd", "date", "which", "file", "stat", "du", "df",
				"mkdir", "touch", "cp", "mv", "rm", "ln", "chmod", "tee",
				"git", "go", "make", "python3", "node", "npm",
				"curl", "wget", "tar", "gzip", "unzip", "sed", "awk",
				"sort", "uniq", "cut", "tr", "diff", "kill", "ps", "sleep",
			},
			CommandsNeedingExtraValidation: []string{"rm", "kill"},
		},
		Gateway: GatewayConfig{
			MaxQueueSize:               10,
			ProcessingUpdateIntervalMs: 3000,
		},
		Session: SessionConfig{
			MaxHistoryMessages:  50,
			CompactionEnabled:   true,
			CompactionThreshold: 100,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalMinutes: 30,
			ActiveHours:     "8-22",
			DeliverTo:       "last",
		},
		Memory: MemoryConfig{
			Search: SearchConfig{
				VectorWeight:  0.7,
				KeywordWeight: 0.3,
				MinScore:      0.3,
				MaxResults:    5,
				ChunkTokens:   400,
				ChunkOverlap:  80,
			},
		},
	}
}
