// Package worker runs the goroutines that drain a scan's unit queue,
// driving one (page, scanner) unit at a time against the scanner registry.
// The pool's worker count enforces the scan's total concurrency bound;
// each worker additionally acquires a per-scanner semaphore before
// dispatch, enforcing the per-scanner concurrency bound without needing a
// second pool.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/scan/circuitbreaker"
	"github.com/pyneda/sukyan/pkg/scan/control"
	"github.com/pyneda/sukyan/pkg/scan/queue"
	"github.com/pyneda/sukyan/pkg/scanners"
)

// OutcomeFunc receives a finished unit's outcome. The orchestrator uses it
// to append to the scan session and publish UNIT_COMPLETED.
type OutcomeFunc func(model.ScannerOutcome)

// Config configures one Worker.
type Config struct {
	ID             string
	Queue          *queue.UnitQueue
	Registry       *scanners.Registry
	Control        *control.ScanControl
	PerScannerSem  map[model.ScannerID]chan struct{}
	CircuitBreaker circuitbreaker.CircuitBreaker
	UnitTimeout    time.Duration
	Credentials    *model.Credentials
	OnStart        func(model.ScanUnit)
	OnOutcome      OutcomeFunc
	PollInterval   time.Duration
}

// Worker claims units from a shared queue and drives them until the
// queue is drained or the scan is cancelled.
type Worker struct {
	cfg Config
}

// New builds a Worker from cfg, applying defaults for zero-valued fields.
func New(cfg Config) *Worker {
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 90 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.CircuitBreaker == nil {
		cfg.CircuitBreaker = circuitbreaker.NewNoOpCircuitBreaker()
	}
	return &Worker{cfg: cfg}
}

// Run drains the queue until it is empty and every unit has reached a
// terminal status, or ctx is done. It returns when there is no more work
// this worker can currently perform.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !w.cfg.Control.Checkpoint() {
			return
		}

		unit, ok := w.cfg.Queue.Claim(ctx)
		if !ok {
			if w.cfg.Queue.IsDrained() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}

		w.runUnit(ctx, unit)
	}
}

func (w *Worker) runUnit(ctx context.Context, unit model.ScanUnit) {
	sem := w.cfg.PerScannerSem[unit.Scanner]
	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			w.cfg.Queue.Requeue(unit)
			return
		}
	}

	driver, err := w.cfg.Registry.Get(unit.Scanner)
	if err != nil {
		outcome := model.ScannerOutcome{
			Unit:      unit,
			Status:    model.OutcomeFailed,
			Failure:   model.FailureProcessError,
			Error:     err.Error(),
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
		}
		w.cfg.Queue.Complete(unit, outcome.Status)
		if w.cfg.OnOutcome != nil {
			w.cfg.OnOutcome(outcome)
		}
		return
	}

	if w.cfg.OnStart != nil {
		w.cfg.OnStart(unit)
	}

	host := unit.PageURL
	outcome := driver.Drive(ctx, unit, w.cfg.UnitTimeout, w.cfg.Credentials)

	if outcome.Status == model.OutcomeSucceeded {
		w.cfg.CircuitBreaker.RecordSuccess(unit.ScanID, host)
	} else {
		action := w.cfg.CircuitBreaker.RecordFailure(unit.ScanID, host, string(outcome.Failure))
		if action == circuitbreaker.ActionWarn {
			log.Warn().Str("scan_id", unit.ScanID).Str("scanner", string(unit.Scanner)).
				Msg("Repeated scanner failures crossed the warning threshold")
		}
	}

	w.cfg.Queue.Complete(unit, outcome.Status)
	if w.cfg.OnOutcome != nil {
		w.cfg.OnOutcome(outcome)
	}
}
