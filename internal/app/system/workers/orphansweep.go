// internal/app/system/workers/orphansweep.go
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper removes saved rows whose opportunity is gone.
type Sweeper interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// OrphanSweep runs a Sweeper on a cron schedule. Runs never overlap.
type OrphanSweep struct {
	sweeper Sweeper
	log     *zap.Logger
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	mu      sync.Mutex
}

// NewOrphanSweep creates the worker. spec is a standard 5-field cron
// expression or a descriptor such as "@every 1h". timeout bounds one run.
func NewOrphanSweep(sweeper Sweeper, logger *zap.Logger, spec string, timeout time.Duration) *OrphanSweep {
	return &OrphanSweep{
		sweeper: sweeper,
		log:     logger,
		spec:    spec,
		timeout: timeout,
	}
}

// Start registers the schedule and starts the cron runner.
func (w *OrphanSweep) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.spec, w.RunOnce); err != nil {
		return fmt.Errorf("orphan sweep schedule %q: %w", w.spec, err)
	}

	w.mu.Lock()
	w.cron = c
	w.mu.Unlock()

	c.Start()
	w.log.Info("orphan sweep worker started", zap.String("schedule", w.spec))
	return nil
}

// Stop waits for a running sweep to finish. It is safe to call when Start
// was never called or failed.
func (w *OrphanSweep) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	w.log.Info("orphan sweep worker stopped")
}

// RunOnce performs a single sweep.
func (w *OrphanSweep) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	count, err := w.sweeper.DeleteOrphans(ctx)
	if err != nil {
		w.log.Error("orphan sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("orphan sweep removed saved rows",
			zap.Int64("count", count),
			zap.Duration("took", time.Since(start)))
	}
}
