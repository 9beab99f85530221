package cron

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	if jobs := s.Load(); len(jobs) != 0 {
		t.Errorf("missing file should load empty, got %v", jobs)
	}
}

func TestStoreLoadCorruptOrNonArray(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	for _, content := range []string{"not json", `{"kind":"object"}`, `42`} {
		if err := os.WriteFile(s.Path(), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		if jobs := s.Load(); len(jobs) != 0 {
			t.Errorf("content %q should load empty, got %v", content, jobs)
		}
	}
}

func TestStoreSaveRoundTripAndModes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewStore(dir)

	jobs := []Job{{
		ID:       "j1",
		Label:    "standup reminder",
		Schedule: Schedule{Kind: KindCron, Expr: "0 9 * * 1-5"},
		Payload:  Payload{Text: "remind me about standup"},
		Enabled:  true,
	}}
	if err := s.Save(jobs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := s.Load()
	if len(got) != 1 || got[0].ID != "j1" || got[0].Schedule.Expr != "0 9 * * 1-5" {
		t.Errorf("round trip = %+v", got)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("no .tmp should remain after save")
	}

	if runtime.GOOS != "windows" {
		if info, err := os.Stat(s.Path()); err != nil || info.Mode().Perm() != 0600 {
			t.Errorf("jobs file mode = %v, want 0600", info.Mode().Perm())
		}
		if info, err := os.Stat(dir); err != nil || info.Mode().Perm() != 0700 {
			t.Errorf("data dir mode = %v, want 0700", info.Mode().Perm())
		}
	}
}

func TestStoreFileUsesDocumentedKeys(t *testing.T) {
	s := NewStore(t.TempDir())
	jobs := []Job{{
		ID:       "j1",
		Label:    "daily digest",
		Schedule: Schedule{Kind: KindCron, Expr: "0 9 * * *"},
		Payload:  Payload{Text: "summarize the day"},
		Enabled:  true,
	}}
	if err := s.Save(jobs); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded[0]["label"] != "daily digest" {
		t.Errorf("label key missing: %v", decoded[0])
	}
	schedule, _ := decoded[0]["schedule"].(map[string]any)
	if schedule["type"] != "cron" || schedule["expression"] != "0 9 * * *" {
		t.Errorf("schedule keys = %v, want type/expression", schedule)
	}
	for _, stale := range []string{"kind", "expr", "name"} {
		if _, ok := schedule[stale]; ok {
			t.Errorf("stale schedule key %q present", stale)
		}
		if _, ok := decoded[0][stale]; ok {
			t.Errorf("stale job key %q present", stale)
		}
	}
}

func TestStoreMutateErrorDoesNotPersist(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Save([]Job{{ID: "keep"}}); err != nil {
		t.Fatal(err)
	}
	err := s.Mutate(func(jobs []Job) ([]Job, error) {
		return nil, os.ErrInvalid
	})
	if err == nil {
		t.Fatal("Mutate should surface the callback error")
	}
	if jobs := s.Load(); len(jobs) != 1 || jobs[0].ID != "keep" {
		t.Errorf("failed mutate must not change the file: %v", jobs)
	}
}
