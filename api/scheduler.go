/*
scheduler.go - Periodic segmentation refresh

PURPOSE:
  Re-runs the pipeline from the configured export while the API server is
  up, so the served segmentation follows new exports without a separate
  batch job.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Skips the run when the export has not changed since the last
    successful run (file modification time)
  - At most one run at a time; RunNow fails fast with ErrRunInProgress
  - Every run is recorded in pipeline_runs by the pipeline itself

CONFIGURATION:
  - CheckInterval: How often to check (RFM_REFRESH_INTERVAL, 0 disables)
  - Input: Export path (RFM_INPUT)

USAGE:
  scheduler := NewRefreshScheduler(p, cfg.Pipeline.Input, cfg.Pipeline.RefreshInterval, logger)
  scheduler.Start(ctx)
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRun endpoint (manual refresh)
  - pipeline/pipeline.go: The phases being run
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/retail-rfm/pipeline"
	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/source"
)

var (
	// ErrRunInProgress is returned when a refresh is requested during a run.
	ErrRunInProgress = errors.New("pipeline run already in progress")

	errInputUnchanged = errors.New("input unchanged since last run")
)

// RefreshScheduler re-runs the pipeline on an interval.
type RefreshScheduler struct {
	Pipeline      *pipeline.Pipeline
	Input         string
	CheckInterval time.Duration
	Enabled       bool
	Logger        logrus.FieldLogger

	running sync.Mutex // held for the duration of a run
	lastMod time.Time  // guarded by running

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a scheduler. A zero interval leaves it disabled;
// RunNow still works.
func NewRefreshScheduler(p *pipeline.Pipeline, input string, interval time.Duration, logger logrus.FieldLogger) *RefreshScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RefreshScheduler{
		Pipeline:      p,
		Input:         input,
		CheckInterval: interval,
		Enabled:       interval > 0,
		Logger:        logger.WithField("component", "scheduler"),
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start(ctx context.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(ctx)

	rs.Logger.WithField("interval", rs.CheckInterval.String()).Info("started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("stopped")
	}
}

func (rs *RefreshScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess(ctx)
		case <-rs.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (rs *RefreshScheduler) checkAndProcess(ctx context.Context) {
	run, err := rs.refresh(ctx, true)
	switch {
	case errors.Is(err, errInputUnchanged):
		rs.Logger.Debug("input unchanged, skipping")
	case errors.Is(err, ErrRunInProgress):
		rs.Logger.Info("run in progress, skipping")
	case err != nil:
		rs.Logger.WithError(err).WithField("run_id", run.ID).Error("scheduled refresh failed")
	default:
		rs.Logger.WithField("run_id", run.ID).Info("scheduled refresh completed")
	}
}

// RunNow reads the export and runs the pipeline regardless of changes.
func (rs *RefreshScheduler) RunNow(ctx context.Context) (retail.Run, error) {
	return rs.refresh(ctx, false)
}

func (rs *RefreshScheduler) refresh(ctx context.Context, onlyIfChanged bool) (retail.Run, error) {
	if !rs.running.TryLock() {
		return retail.Run{}, ErrRunInProgress
	}
	defer rs.running.Unlock()

	info, err := os.Stat(rs.Input)
	if err != nil {
		return retail.Run{}, fmt.Errorf("stat %s: %w", rs.Input, err)
	}
	if onlyIfChanged && !info.ModTime().After(rs.lastMod) {
		return retail.Run{}, errInputUnchanged
	}

	raw, err := source.ReadFile(rs.Input, source.Options{Strict: rs.Pipeline.Strict})
	if err != nil {
		return retail.Run{}, err
	}

	res, err := rs.Pipeline.Run(ctx, pipeline.Input{Source: rs.Input, Rows: raw.Rows, ParseErrors: raw.Errors})
	if err != nil {
		return res.Run, err
	}
	rs.lastMod = info.ModTime()
	return res.Run, nil
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *RefreshScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
