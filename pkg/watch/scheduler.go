// Package watch reruns the statistics pipeline on a fixed interval and
// persists the last run outcome between process restarts.
package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"filmstats/pkg/orchestrate"
)

// Scheduler manages periodic statistics runs over one pipeline.
type Scheduler struct {
	pipeline     *orchestrate.Pipeline
	interval     time.Duration
	log          *logrus.Entry
	stateManager *StateManager

	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new watch scheduler. State is persisted under
// stateDir so restarts do not trigger an immediate rerun.
func NewScheduler(pipeline *orchestrate.Pipeline, stateDir string, interval time.Duration, log *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		pipeline:     pipeline,
		interval:     interval,
		log:          log,
		stateManager: NewStateManager(stateDir),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the watch scheduler and blocks until stopped
func (s *Scheduler) Run() error {
	// Load existing state
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode with interval %s", FormatInterval(s.interval))
	s.logSchedule()

	// Run immediately if the interval has already elapsed
	s.runIfDue()

	// Start the ticker for periodic checks
	ticker := time.NewTicker(s.calculateTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.runIfDue()
		}
	}
}

// Stop stops the watch scheduler
func (s *Scheduler) Stop() {
	s.log.Info("Stopping watch scheduler...")
	s.cancel()
}

// runIfDue starts a statistics run when the interval has elapsed. A run
// still in flight is never doubled up; the next tick retries.
func (s *Scheduler) runIfDue() {
	if !s.stateManager.ShouldRun(s.interval) {
		s.logNextRun()
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Previous run still in progress, skipping this cycle")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		results, err := s.pipeline.Execute(s.ctx)
		s.stateManager.UpdateRunState(summarizeRun(results, err))

		if saveErr := s.stateManager.Save(); saveErr != nil {
			s.log.Errorf("Failed to save watch state: %v", saveErr)
		}

		s.logNextRun()
	}()
}

// summarizeRun condenses pipeline results into the persisted run record.
func summarizeRun(results []orchestrate.DirectorResult, err error) RunState {
	run := RunState{LastRunSuccess: err == nil}
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	for _, r := range results {
		if r.Err != nil {
			run.DirectorsFailed++
			continue
		}
		run.DirectorsSucceeded++
		run.FilmsExtracted += r.FilmsExtracted
	}
	return run
}

// calculateTickInterval returns how often to check whether a run is due
func (s *Scheduler) calculateTickInterval() time.Duration {
	// Check at least every minute, or every 1/10th of the interval
	checkInterval := s.interval / 10
	if checkInterval < time.Minute {
		checkInterval = time.Minute
	}
	if checkInterval > 10*time.Minute {
		checkInterval = 10 * time.Minute
	}
	return checkInterval
}

// logSchedule logs the last known run and when the next one is due.
func (s *Scheduler) logSchedule() {
	last, exists := s.stateManager.LastRun()
	if !exists {
		s.log.Info("No previous run recorded, running immediately")
		return
	}

	status := "success"
	if !last.LastRunSuccess {
		status = "failed"
	}
	s.log.Infof("Last run %s (%s, %d directors succeeded, %d films), next run %s",
		last.LastRunTime.Format(time.RFC3339),
		status,
		last.DirectorsSucceeded,
		last.FilmsExtracted,
		s.stateManager.NextRunTime(s.interval).Format(time.RFC3339))
}

// logNextRun logs when the next run will occur
func (s *Scheduler) logNextRun() {
	next := s.stateManager.NextRunTime(s.interval)
	until := time.Until(next)
	if until < 0 {
		until = 0
	}
	s.log.Infof("Next run in %v (at %s)", until.Round(time.Second), next.Format("15:04:05"))
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	// Try standard parsing first
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	// Check for day suffix
	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
