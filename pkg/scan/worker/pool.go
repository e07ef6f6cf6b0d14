package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/scan/circuitbreaker"
	"github.com/pyneda/sukyan/pkg/scan/control"
	"github.com/pyneda/sukyan/pkg/scan/queue"
	"github.com/pyneda/sukyan/pkg/scanners"
)

// Pool runs WorkerCount workers against a shared queue for the lifetime of
// one scan. The worker count is the scan's total concurrency bound; each
// per-scanner semaphore inside PerScannerSem is the per-scanner bound.
type Pool struct {
	cfg     PoolConfig
	workers []*Worker
	wg      sync.WaitGroup
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	ScanID               string
	WorkerCount          int
	MaxPerScannerWorkers int
	// PerScannerLimits overrides MaxPerScannerWorkers for specific
	// scanners (e.g. WAVE, metered by an external API quota).
	PerScannerLimits map[model.ScannerID]int
	Queue            *queue.UnitQueue
	Registry         *scanners.Registry
	Control          *control.ScanControl
	CircuitBreaker   circuitbreaker.CircuitBreaker
	UnitTimeout      time.Duration
	Credentials      *model.Credentials
	OnStart          func(model.ScanUnit)
	OnOutcome        OutcomeFunc
}

// NewPool builds a Pool, constructing the per-scanner semaphore map shared
// by every worker.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 5
	}
	if cfg.MaxPerScannerWorkers < 1 {
		cfg.MaxPerScannerWorkers = cfg.WorkerCount
	}

	sem := make(map[model.ScannerID]chan struct{})
	for _, id := range []model.ScannerID{model.ScannerAxe, model.ScannerPa11y, model.ScannerWave, model.ScannerLighthouse} {
		limit := cfg.MaxPerScannerWorkers
		if override, ok := cfg.PerScannerLimits[id]; ok && override > 0 {
			limit = override
		}
		sem[id] = make(chan struct{}, limit)
	}

	p := &Pool{cfg: cfg}
	p.workers = make([]*Worker, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		p.workers[i] = New(Config{
			ID:             fmt.Sprintf("%s-worker-%d", cfg.ScanID, i),
			Queue:          cfg.Queue,
			Registry:       cfg.Registry,
			Control:        cfg.Control,
			PerScannerSem:  sem,
			CircuitBreaker: cfg.CircuitBreaker,
			UnitTimeout:    cfg.UnitTimeout,
			Credentials:    cfg.Credentials,
			OnStart:        cfg.OnStart,
			OnOutcome:      cfg.OnOutcome,
		})
	}
	return p
}

// Run starts every worker and blocks until all of them return, which
// happens once the queue is drained or ctx is done.
func (p *Pool) Run(ctx context.Context) {
	log.Info().
		Str("scan_id", p.cfg.ScanID).
		Int("worker_count", len(p.workers)).
		Msg("Starting scan worker pool")

	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		w := w
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
	p.wg.Wait()

	log.Info().Str("scan_id", p.cfg.ScanID).Msg("Scan worker pool drained")
}

// WorkerCount returns the number of workers in the pool.
func (p *Pool) WorkerCount() int {
	return len(p.workers)
}
