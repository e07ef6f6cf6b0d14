package control

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry manages in-memory ScanControl instances, giving any component
// (the API's pause/resume/cancel handlers, the orchestrator) a single
// place to look up or create the control for a scan ID.
type Registry struct {
	mu       sync.RWMutex
	controls map[string]*ScanControl
}

// NewRegistry creates a new, empty control registry.
func NewRegistry() *Registry {
	return &Registry{controls: make(map[string]*ScanControl)}
}

// Register creates and registers a new ScanControl for a scan, or returns
// the existing one if already present.
func (r *Registry) Register(scanID string, state State) *ScanControl {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctrl, exists := r.controls[scanID]; exists {
		return ctrl
	}

	ctrl := NewWithState(scanID, state)
	r.controls[scanID] = ctrl
	log.Debug().Str("scan_id", scanID).Str("state", state.String()).Msg("Registered scan control")
	return ctrl
}

// Get returns the ScanControl for a scan, or nil if not found.
func (r *Registry) Get(scanID string) *ScanControl {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controls[scanID]
}

// GetOrCreate returns the existing ScanControl or creates a new running one.
func (r *Registry) GetOrCreate(scanID string) *ScanControl {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctrl, exists := r.controls[scanID]; exists {
		return ctrl
	}

	ctrl := New(scanID)
	r.controls[scanID] = ctrl
	return ctrl
}

// Unregister removes a ScanControl from the registry.
func (r *Registry) Unregister(scanID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controls, scanID)
	log.Debug().Str("scan_id", scanID).Msg("Unregistered scan control")
}

// SetPaused sets a scan to paused state; a no-op if the scan is not tracked.
func (r *Registry) SetPaused(scanID string) {
	if ctrl := r.Get(scanID); ctrl != nil {
		ctrl.SetPaused()
		log.Info().Str("scan_id", scanID).Msg("Scan paused")
	}
}

// SetRunning sets a scan to running state; a no-op if the scan is not tracked.
func (r *Registry) SetRunning(scanID string) {
	if ctrl := r.Get(scanID); ctrl != nil {
		ctrl.SetRunning()
		log.Info().Str("scan_id", scanID).Msg("Scan resumed")
	}
}

// SetCancelled sets a scan to cancelled state; a no-op if the scan is not tracked.
func (r *Registry) SetCancelled(scanID string) {
	if ctrl := r.Get(scanID); ctrl != nil {
		ctrl.SetCancelled()
		log.Info().Str("scan_id", scanID).Msg("Scan cancelled")
	}
}

// Count returns the number of tracked scans.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controls)
}

// ListScanIDs returns all tracked scan IDs.
func (r *Registry) ListScanIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.controls))
	for id := range r.controls {
		ids = append(ids, id)
	}
	return ids
}

// StateMap returns a map of scan ID to state for all tracked scans.
func (r *Registry) StateMap() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]State, len(r.controls))
	for id, ctrl := range r.controls {
		states[id] = ctrl.State()
	}
	return states
}
