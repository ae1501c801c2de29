package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filmstats/pkg/models"
	"filmstats/pkg/orchestrate"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"2d6h", 54 * time.Hour, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInterval(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseInterval(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := FormatInterval(tt.input)
			if got != tt.expected {
				t.Errorf("FormatInterval(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStateManager(t *testing.T) {
	tmpDir := t.TempDir()

	sm := NewStateManager(tmpDir)

	if err := sm.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Never run, so a run is due
	if !sm.ShouldRun(time.Hour) {
		t.Error("ShouldRun() should return true before the first run")
	}
	if _, ok := sm.LastRun(); ok {
		t.Error("LastRun() should report no run before the first run")
	}

	sm.UpdateRunState(RunState{
		LastRunSuccess:     true,
		DirectorsSucceeded: 3,
		FilmsExtracted:     42,
	})

	if sm.ShouldRun(time.Hour) {
		t.Error("ShouldRun() should return false immediately after a run")
	}

	run, ok := sm.LastRun()
	if !ok {
		t.Fatal("LastRun() should report a run after UpdateRunState()")
	}
	if !run.LastRunSuccess {
		t.Error("LastRunSuccess should be true")
	}
	if run.FilmsExtracted != 42 {
		t.Errorf("FilmsExtracted = %d, want 42", run.FilmsExtracted)
	}
	if run.LastRunTime.IsZero() {
		t.Error("UpdateRunState() should stamp LastRunTime")
	}

	if err := sm.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	statePath := filepath.Join(tmpDir, stateFileName)
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		t.Error("State file should exist after Save()")
	}

	// A fresh manager sees the persisted run
	sm2 := NewStateManager(tmpDir)
	if err := sm2.Load(); err != nil {
		t.Fatalf("Load() from saved state failed: %v", err)
	}

	run2, ok := sm2.LastRun()
	if !ok {
		t.Fatal("LastRun() should report a run after Load()")
	}
	if run2.DirectorsSucceeded != 3 {
		t.Errorf("Loaded DirectorsSucceeded = %d, want 3", run2.DirectorsSucceeded)
	}
	if sm2.ShouldRun(time.Hour) {
		t.Error("ShouldRun() should respect the persisted run time")
	}
}

func TestStateManagerNextRunTime(t *testing.T) {
	tmpDir := t.TempDir()
	sm := NewStateManager(tmpDir)
	_ = sm.Load()

	interval := time.Hour

	// Never run: due now
	nextRun := sm.NextRunTime(interval)
	if time.Since(nextRun) > time.Second {
		t.Error("NextRunTime() before the first run should be approximately now")
	}

	sm.UpdateRunState(RunState{LastRunSuccess: true})
	run, _ := sm.LastRun()

	expectedNextRun := run.LastRunTime.Add(interval)
	actualNextRun := sm.NextRunTime(interval)

	if actualNextRun.Sub(expectedNextRun) > time.Millisecond {
		t.Errorf("NextRunTime() = %v, want %v", actualNextRun, expectedNextRun)
	}
}

func TestSummarizeRun(t *testing.T) {
	results := []orchestrate.DirectorResult{
		{Director: models.Director{Name: "A"}, FilmsExtracted: 10},
		{Director: models.Director{Name: "B"}, FilmsExtracted: 5},
		{Director: models.Director{Name: "C"}, Err: errors.New("listing unavailable")},
	}

	run := summarizeRun(results, nil)
	if !run.LastRunSuccess {
		t.Error("run without a pipeline error should be marked successful")
	}
	if run.DirectorsSucceeded != 2 {
		t.Errorf("DirectorsSucceeded = %d, want 2", run.DirectorsSucceeded)
	}
	if run.DirectorsFailed != 1 {
		t.Errorf("DirectorsFailed = %d, want 1", run.DirectorsFailed)
	}
	if run.FilmsExtracted != 15 {
		t.Errorf("FilmsExtracted = %d, want 15", run.FilmsExtracted)
	}

	run = summarizeRun(nil, errors.New("roster missing"))
	if run.LastRunSuccess {
		t.Error("pipeline error should mark the run failed")
	}
	if run.ErrorMessage != "roster missing" {
		t.Errorf("ErrorMessage = %q, want 'roster missing'", run.ErrorMessage)
	}
}
