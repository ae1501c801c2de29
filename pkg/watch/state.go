package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFileName = "watch_state.json"

// RunState contains the outcome of the last completed statistics run.
type RunState struct {
	LastRunTime        time.Time `json:"last_run_time"`
	LastRunSuccess     bool      `json:"last_run_success"`
	DirectorsSucceeded int       `json:"directors_succeeded"`
	DirectorsFailed    int       `json:"directors_failed"`
	FilmsExtracted     int       `json:"films_extracted"`
	ErrorMessage       string    `json:"error_message,omitempty"`
}

// watchState is the on-disk layout of the scheduler state.
type watchState struct {
	Run       *RunState `json:"run,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     watchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
	}
}

// Load loads the state from disk
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No state file yet, start fresh
			m.state = watchState{}
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// LastRun returns the last recorded run, if any.
func (m *StateManager) LastRun() (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.Run == nil {
		return RunState{}, false
	}
	return *m.state.Run, true
}

// UpdateRunState records the outcome of a run that just finished.
func (m *StateManager) UpdateRunState(run RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.LastRunTime = time.Now()
	m.state.Run = &run
}

// ShouldRun checks whether enough time has passed since the last run.
func (m *StateManager) ShouldRun(interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.Run == nil {
		// Never run before, should run now
		return true
	}

	return time.Since(m.state.Run.LastRunTime) >= interval
}

// NextRunTime returns when the next run is due.
func (m *StateManager) NextRunTime(interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.Run == nil {
		return time.Now()
	}

	return m.state.Run.LastRunTime.Add(interval)
}
