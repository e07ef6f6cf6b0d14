// Package queue provides the in-memory unit queue the orchestrator's
// dispatch loop pulls (page, scanner) units from. Unlike the teacher's
// database-backed job queue, there is no persistence or multi-node claim
// protocol here: the orchestrator owns one queue per scan, entirely in
// memory, because a scan session lives and dies with the orchestrator
// process that runs it.
package queue

import (
	"context"
	"sync"

	"github.com/pyneda/sukyan/pkg/model"
)

// Stats summarizes a queue's unit counts by terminal status.
type Stats struct {
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Total     int
}

// UnitQueue holds the pending and in-flight units for one scan.
// Safe for concurrent use.
type UnitQueue struct {
	mu      sync.Mutex
	pending []model.ScanUnit
	running map[model.ScanUnit]struct{}
	done    map[model.ScanUnit]model.OutcomeStatus
	total   int
}

// New builds an empty UnitQueue.
func New() *UnitQueue {
	return &UnitQueue{
		running: make(map[model.ScanUnit]struct{}),
		done:    make(map[model.ScanUnit]model.OutcomeStatus),
	}
}

// Enqueue adds units to the pending queue.
func (q *UnitQueue) Enqueue(units []model.ScanUnit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, units...)
	q.total += len(units)
}

// Claim pops the next pending unit and marks it running. Returns false if
// the queue is empty.
func (q *UnitQueue) Claim(_ context.Context) (model.ScanUnit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return model.ScanUnit{}, false
	}
	unit := q.pending[0]
	q.pending = q.pending[1:]
	q.running[unit] = struct{}{}
	return unit, true
}

// Complete marks a claimed unit finished with the given terminal status.
func (q *UnitQueue) Complete(unit model.ScanUnit, status model.OutcomeStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, unit)
	q.done[unit] = status
}

// Requeue returns a claimed unit to the front of the pending queue,
// without counting it as done. Used when a unit cannot be dispatched
// because no driver slot is free yet.
func (q *UnitQueue) Requeue(unit model.ScanUnit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, unit)
	q.pending = append([]model.ScanUnit{unit}, q.pending...)
}

// Stats reports the current counts across pending, running and done units.
func (q *UnitQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{
		Pending: len(q.pending),
		Running: len(q.running),
		Total:   q.total,
	}
	for _, status := range q.done {
		switch status {
		case model.OutcomeSucceeded:
			stats.Succeeded++
		default:
			stats.Failed++
		}
	}
	return stats
}

// IsDrained reports whether every enqueued unit has reached a terminal
// status and none remain pending or running.
func (q *UnitQueue) IsDrained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && len(q.running) == 0
}
