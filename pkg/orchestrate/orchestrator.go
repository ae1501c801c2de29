// Package orchestrate drives the per-director fan-out and owns the wiring of
// a full pipeline run.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"filmstats/pkg/extract"
	"filmstats/pkg/metrics"
	"filmstats/pkg/models"
	"filmstats/pkg/stats"
	"filmstats/pkg/utils"
)

// DirectorResult contains the terminal outcome of one director task.
type DirectorResult struct {
	Director       models.Director
	Stats          *models.DirectorStatistics // nil when the director produced no statistics
	FilmsFound     int                        // Films discovered on the listing page
	FilmsExtracted int                        // Films that yielded a record
	Duration       time.Duration
	Err            error
}

// Orchestrator fans one task per director out over a bounded pool and merges
// the statistics records into the output table. A director's failure is
// recorded and never disturbs its siblings; the run always reaches a
// terminal outcome for every director on the roster.
type Orchestrator struct {
	filmographies   *extract.FilmographyExtractor
	directorWorkers int64
	metrics         *metrics.Metrics
	log             *logrus.Entry

	completed atomic.Int64

	results   []DirectorResult
	resultsMu sync.Mutex
}

// NewOrchestrator creates an Orchestrator limiting concurrent director tasks
// to directorWorkers.
func NewOrchestrator(filmographies *extract.FilmographyExtractor, directorWorkers int, m *metrics.Metrics, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		filmographies:   filmographies,
		directorWorkers: int64(directorWorkers),
		metrics:         m,
		log:             log,
	}
}

// Run processes every director on the roster and returns the merged output
// table together with the per-director results. It returns only after every
// director task has reached a terminal outcome.
func (o *Orchestrator) Run(ctx context.Context, roster []models.Director) (models.OutputTable, []DirectorResult) {
	runID := uuid.NewString()[:8]
	runLog := o.log.WithField("run_id", runID)
	total := len(roster)
	startTime := time.Now()

	runLog.Infof("Starting statistics run for %d directors", total)

	o.completed.Store(0)
	o.resultsMu.Lock()
	o.results = make([]DirectorResult, 0, total)
	o.resultsMu.Unlock()

	sem := semaphore.NewWeighted(o.directorWorkers)
	var wg sync.WaitGroup

	for i := 0; i < len(roster); i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context died while throttled: directors not yet started still
			// get a terminal result so the run accounts for all of them.
			runLog.Warnf("Run interrupted, %d directors not started: %v", len(roster)-i, err)
			for _, remaining := range roster[i:] {
				o.record(runLog, total, DirectorResult{Director: remaining, Err: err})
			}
			break
		}

		wg.Add(1)
		go func(director models.Director) {
			defer wg.Done()
			defer sem.Release(1)
			o.metrics.DirectorStarted()
			defer o.metrics.DirectorFinished()
			o.record(runLog, total, o.processDirector(ctx, runLog, director))
		}(roster[i])
	}
	wg.Wait()

	table := make(models.OutputTable)
	for _, result := range o.results {
		if result.Stats != nil {
			table[result.Director.Name] = result.Stats
		}
	}

	o.logSummary(runLog, time.Since(startTime))
	return table, o.results
}

// processDirector runs the filmography extraction and aggregation for one
// director. A panic anywhere below is contained here and reported as this
// director's failure.
func (o *Orchestrator) processDirector(ctx context.Context, runLog *logrus.Entry, director models.Director) (result DirectorResult) {
	startTime := time.Now()
	result = DirectorResult{Director: director}
	taskLog := runLog.WithField("director", director.Name)

	defer func() {
		if r := recover(); r != nil {
			taskLog.Errorf("PANIC during director processing: %v\nStack:\n%s", r, debug.Stack())
			result.Stats = nil
			result.Err = fmt.Errorf("panic processing director %s: %v", director.Name, r)
		}
		result.Duration = time.Since(startTime)
	}()

	table, found, err := o.filmographies.ExtractFilmography(ctx, director)
	result.FilmsFound = found
	if err != nil {
		result.Err = err
		return result
	}
	result.FilmsExtracted = len(table)

	statsRecord := stats.Summarize(table)
	if statsRecord == nil {
		result.Err = utils.WrapErrorf(utils.ErrEmptyFilmography, "nothing to summarize for %s", director.Name)
		return result
	}

	result.Stats = statsRecord
	return result
}

// record stores a terminal result and emits the progress line.
func (o *Orchestrator) record(runLog *logrus.Entry, total int, result DirectorResult) {
	index := o.completed.Add(1)

	outcome := "success"
	if result.Err != nil {
		outcome = "failed"
		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			outcome = "cancelled"
		}
	}
	o.metrics.IncDirector(outcome)

	if result.Err != nil {
		runLog.Warnf("Processed director %d of %d: %s (no statistics: %v)", index, total, result.Director.Name, result.Err)
	} else {
		runLog.Infof("Processed director %d of %d: %s", index, total, result.Director.Name)
	}

	o.resultsMu.Lock()
	o.results = append(o.results, result)
	o.resultsMu.Unlock()
}

// logSummary logs an end-of-run summary of all director results.
func (o *Orchestrator) logSummary(runLog *logrus.Entry, totalDuration time.Duration) {
	runLog.Info("============================================")
	runLog.Infof("Statistics run completed in %v", totalDuration)
	runLog.Info("Director Results:")

	totalFilms := 0
	successCount := 0
	failCount := 0

	for _, r := range o.results {
		status := "SUCCESS"
		if r.Err != nil {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		totalFilms += r.FilmsExtracted

		runLog.Infof("  %s: %s - %d of %d films in %v", r.Director.Name, status, r.FilmsExtracted, r.FilmsFound, r.Duration)
		if r.Err != nil {
			runLog.Infof("    Error: %v", r.Err)
		}
	}

	runLog.Info("--------------------------------------------")
	runLog.Infof("Total: %d directors (%d success, %d failed), %d films extracted",
		len(o.results), successCount, failCount, totalFilms)
	runLog.Info("============================================")
}
