// Package orchestrator manages the full scan lifecycle: given a page
// selection and a set of scanners, it builds the unit queue, drives a
// worker pool against it honoring the dual concurrency bound, tracks
// progress, and aggregates results once every unit reaches a terminal
// state. A single unit's failure never cancels the scan: the queue and
// worker pool keep draining regardless of individual outcomes.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/normalize"
	"github.com/pyneda/sukyan/pkg/scan/circuitbreaker"
	"github.com/pyneda/sukyan/pkg/scan/control"
	"github.com/pyneda/sukyan/pkg/scan/queue"
	"github.com/pyneda/sukyan/pkg/scan/worker"
	"github.com/pyneda/sukyan/pkg/scanners"
)

// EventPublisher publishes scan lifecycle events. pkg/eventbus.Bus
// satisfies this; tests can substitute a recording stub.
type EventPublisher interface {
	Publish(id string, eventType model.EventType, data interface{})
}

// closer optionally closes a topic's event stream once a scan reaches a
// terminal state. It is checked via type assertion rather than folded into
// EventPublisher, keeping the publish-only interface narrow for stubs that
// have no notion of closing (e.g. recording test doubles).
type closer interface {
	Close(id string)
}

// Config configures one scan run.
type Config struct {
	// MaxTotalConcurrency bounds the number of units dispatched at once
	// across every scanner.
	MaxTotalConcurrency int
	// MaxPerScannerConcurrency additionally bounds how many units of the
	// same scanner may run at once.
	MaxPerScannerConcurrency int
	// PerScannerConcurrency overrides MaxPerScannerConcurrency for
	// individual scanners, e.g. WAVE's external API quota.
	PerScannerConcurrency map[model.ScannerID]int
	// UnitTimeout bounds a single (page, scanner) unit's run time.
	UnitTimeout time.Duration
	// AuthFailureWarnThreshold is how many consecutive auth/quota
	// failures on a scan trigger a warning log entry.
	AuthFailureWarnThreshold int
}

// DefaultConfig returns the built-in concurrency and timeout bounds.
func DefaultConfig() Config {
	return Config{
		MaxTotalConcurrency:      4,
		MaxPerScannerConcurrency: 2,
		PerScannerConcurrency:    map[model.ScannerID]int{model.ScannerWave: 1},
		UnitTimeout:              60 * time.Second,
		AuthFailureWarnThreshold: 3,
	}
}

// Orchestrator drives scan sessions to completion. It holds the shared
// scanner registry, control registry and event bus used across every scan
// this process runs.
type Orchestrator struct {
	cfg        Config
	registry   *scanners.Registry
	controlReg *control.Registry
	bus        EventPublisher
}

// New builds an Orchestrator sharing registry, controlReg and bus across
// every scan it runs.
func New(cfg Config, registry *scanners.Registry, controlReg *control.Registry, bus EventPublisher) *Orchestrator {
	if cfg.MaxTotalConcurrency <= 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{cfg: cfg, registry: registry, controlReg: controlReg, bus: bus}
}

// RunRequest bundles everything one scan run needs beyond what the
// Orchestrator already holds.
type RunRequest struct {
	ScanID      string
	Selection   model.PageSelection
	Scanners    []model.ScannerID
	Credentials *model.Credentials
}

// Run dispatches every (page, scanner) unit for req, blocks until the scan
// completes, is cancelled, or every unit reaches a terminal state, and
// returns the final aggregated result together with the raw outcomes.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) ([]model.ScannerOutcome, model.AggregatedResult, error) {
	scanLog := log.With().Str("scan_id", req.ScanID).Logger()

	scannerIDs := req.Scanners
	if len(scannerIDs) == 0 {
		scannerIDs = []model.ScannerID{model.ScannerAxe, model.ScannerPa11y, model.ScannerWave, model.ScannerLighthouse}
	}

	ctrl := o.controlReg.Register(req.ScanID, control.StateRunning)
	cb := circuitbreaker.NewAuthCircuitBreaker(o.cfg.AuthFailureWarnThreshold)
	defer cb.Reset(req.ScanID)

	units := buildUnits(req.ScanID, req.Selection.Pages, scannerIDs)
	if len(units) == 0 {
		return nil, model.AggregatedResult{ScanID: req.ScanID, GeneratedAt: time.Now()}, fmt.Errorf("no units to dispatch: empty page selection")
	}

	q := queue.New()
	q.Enqueue(units)

	var mu sync.Mutex
	outcomes := make([]model.ScannerOutcome, 0, len(units))
	progress := model.UnitProgress{Total: len(units), Pending: len(units)}

	o.bus.Publish(req.ScanID, model.EventScanStateChanged, map[string]string{"state": string(model.ScanStateRunning)})

	pool := worker.NewPool(worker.PoolConfig{
		ScanID:               req.ScanID,
		WorkerCount:          o.cfg.MaxTotalConcurrency,
		MaxPerScannerWorkers: o.cfg.MaxPerScannerConcurrency,
		PerScannerLimits:     o.cfg.PerScannerConcurrency,
		Queue:                q,
		Registry:             o.registry,
		Control:              ctrl,
		CircuitBreaker:       cb,
		UnitTimeout:          o.cfg.UnitTimeout,
		Credentials:          req.Credentials,
		OnStart: func(unit model.ScanUnit) {
			mu.Lock()
			progress.Pending--
			progress.Running++
			mu.Unlock()
			o.bus.Publish(req.ScanID, model.EventUnitStarted, unit)
		},
		OnOutcome: func(outcome model.ScannerOutcome) {
			mu.Lock()
			progress.Running--
			if outcome.Status == model.OutcomeSucceeded {
				progress.Succeeded++
			} else {
				progress.Failed++
			}
			outcomes = append(outcomes, outcome)
			snapshot := progress
			mu.Unlock()

			o.bus.Publish(req.ScanID, model.EventUnitCompleted, outcome)
			o.bus.Publish(req.ScanID, model.EventScanProgress, snapshot)
		},
	})

	pool.Run(ctx)

	result := normalize.Aggregate(req.ScanID, outcomes)
	result.GeneratedAt = time.Now()

	finalState := model.ScanStateCompleted
	failureKind := model.ScanFailureNone
	switch {
	case ctrl.IsCancelled():
		finalState = model.ScanStateCancelled
		failureKind = model.ScanFailureCancelled
	case allScannersFailed(outcomes):
		finalState = model.ScanStateFailed
		failureKind = model.ScanFailureAllScannersFailed
	}

	o.bus.Publish(req.ScanID, model.EventScanStateChanged, map[string]string{"state": string(finalState)})
	if finalState == model.ScanStateCompleted {
		o.bus.Publish(req.ScanID, model.EventScanCompleted, result)
	} else {
		o.bus.Publish(req.ScanID, model.EventScanFailed, map[string]interface{}{"kind": string(failureKind), "result": result})
	}
	if c, ok := o.bus.(closer); ok {
		c.Close(req.ScanID)
	}

	scanLog.Info().
		Int("units", len(units)).
		Float64("score", result.Score).
		Int("confidence", result.Confidence).
		Str("final_state", string(finalState)).
		Str("failure_kind", string(failureKind)).
		Msg("Scan run finished")

	var err error
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return outcomes, result, err
}

// allScannersFailed reports whether every unit failed or timed out, the
// ALL_SCANNERS_FAILED condition that fails the whole scan rather than
// just producing a zero-finding result.
func allScannersFailed(outcomes []model.ScannerOutcome) bool {
	if len(outcomes) == 0 {
		return true
	}
	for _, o := range outcomes {
		if o.Status == model.OutcomeSucceeded {
			return false
		}
	}
	return true
}

func buildUnits(scanID string, pages []model.DiscoveredPage, scannerIDs []model.ScannerID) []model.ScanUnit {
	units := make([]model.ScanUnit, 0, len(pages)*len(scannerIDs))
	for _, p := range pages {
		for _, s := range scannerIDs {
			units = append(units, model.ScanUnit{ScanID: scanID, PageURL: p.URL, Scanner: s})
		}
	}
	return units
}
