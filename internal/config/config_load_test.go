package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.MaxQueueSize != 10 {
		t.Errorf("MaxQueueSize = %d, want 10", cfg.Gateway.MaxQueueSize)
	}
	if cfg.Heartbeat.IntervalMinutes != 30 {
		t.Errorf("IntervalMinutes = %d, want 30", cfg.Heartbeat.IntervalMinutes)
	}
	if !filepath.IsAbs(cfg.Security.Workspace) {
		t.Errorf("Workspace %q not absolute", cfg.Security.Workspace)
	}
	if !filepath.IsAbs(cfg.Security.DataDir) {
		t.Errorf("DataDir %q not absolute", cfg.Security.DataDir)
	}
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	// json5: unquoted keys and trailing commas are fine.
	content := `{heartbeat: {intervalMinutes: 15}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Heartbeat.IntervalMinutes != 15 {
		t.Errorf("IntervalMinutes = %d, want 15", cfg.Heartbeat.IntervalMinutes)
	}
	if cfg.Gateway.MaxQueueSize != 10 {
		t.Errorf("MaxQueueSize = %d, want default 10", cfg.Gateway.MaxQueueSize)
	}
	if cfg.Session.MaxHistoryMessages != 50 {
		t.Errorf("MaxHistoryMessages = %d, want default 50", cfg.Session.MaxHistoryMessages)
	}
	if len(cfg.Security.AllowedCommands) == 0 {
		t.Error("AllowedCommands lost its defaults")
	}
}

func TestLoadCamelCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		gateway: {maxQueueSize: 25, processingUpdateIntervalMs: 500},
		session: {maxHistoryMessages: 12},
		heartbeat: {activeHours: "7-19", deliverTo: "terminal"},
		security: {dataDir: "/tmp/aide-data"},
		memory: {search: {minScore: 0.5, chunkTokens: 200}},
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.MaxQueueSize != 25 || cfg.Gateway.ProcessingUpdateIntervalMs != 500 {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Session.MaxHistoryMessages != 12 {
		t.Errorf("maxHistoryMessages = %d", cfg.Session.MaxHistoryMessages)
	}
	if cfg.Heartbeat.ActiveHours != "7-19" || cfg.Heartbeat.DeliverTo != "terminal" {
		t.Errorf("heartbeat = %+v", cfg.Heartbeat)
	}
	if cfg.Security.DataDir != "/tmp/aide-data" {
		t.Errorf("dataDir = %q", cfg.Security.DataDir)
	}
	if cfg.Memory.Search.MinScore != 0.5 || cfg.Memory.Search.ChunkTokens != 200 {
		t.Errorf("search = %+v", cfg.Memory.Search)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in, want string
	}{
		{"~/workspace", home + "/workspace"},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseActiveHours(t *testing.T) {
	tests := []struct {
		in         string
		start, end int
		wantErr    bool
	}{
		{"8-21", 8, 21, false},
		{"0-24", 0, 24, false},
		{" 9 - 17 ", 9, 17, false},
		{"8", 0, 0, true},
		{"a-b", 0, 0, true},
		{"8-25", 0, 0, true},
		{"-1-5", 0, 0, true},
	}
	for _, tt := range tests {
		start, end, err := ParseActiveHours(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseActiveHours(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && (start != tt.start || end != tt.end) {
			t.Errorf("ParseActiveHours(%q) = %d,%d want %d,%d", tt.in, start, end, tt.start, tt.end)
		}
	}
}

func TestValidateDeliverTo(t *testing.T) {
	cfg := Default()
	cfg.Heartbeat.DeliverTo = "last"
	if err := cfg.Validate([]string{"cli"}); err != nil {
		t.Errorf("deliver_to=last should validate: %v", err)
	}

	cfg.Heartbeat.DeliverTo = "cli"
	if err := cfg.Validate([]string{"cli"}); err != nil {
		t.Errorf("deliver_to=cli with cli registered should validate: %v", err)
	}

	cfg.Heartbeat.DeliverTo = "telegram"
	err := cfg.Validate([]string{"cli"})
	if err == nil {
		t.Fatal("unknown deliver_to should fail validation")
	}
	if !strings.Contains(err.Error(), "telegram") {
		t.Errorf("error should name the bad adapter: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIDE_HEARTBEAT_INTERVAL_MINUTES", "5")
	t.Setenv("AIDE_HEARTBEAT_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Heartbeat.IntervalMinutes != 5 {
		t.Errorf("IntervalMinutes = %d, want 5 from env", cfg.Heartbeat.IntervalMinutes)
	}
	if cfg.Heartbeat.Enabled {
		t.Error("Enabled should be false from env")
	}
}
