// Package store implements component C7: keyed in-memory state for scan
// and discovery sessions. Each session is written by at most one
// goroutine, its owning orchestrator or crawl runner; reads return a
// point-in-time copy so callers never observe a session mid-mutation.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
)

// Config bounds session retention and version history.
type Config struct {
	TerminalTTL      time.Duration
	ForceCancelTTL   time.Duration
	SweepInterval    time.Duration
	MaxVersionsPerScan int
}

// DefaultConfig returns the built-in retention policy: 24h for terminal
// sessions, 6h force-cancel for stuck pending sessions, a 5 minute sweep,
// 10 retained result versions per scan.
func DefaultConfig() Config {
	return Config{
		TerminalTTL:        24 * time.Hour,
		ForceCancelTTL:     6 * time.Hour,
		SweepInterval:      5 * time.Minute,
		MaxVersionsPerScan: 10,
	}
}

type scanEntry struct {
	mu       sync.Mutex
	session  model.ScanSession
	versions []model.AggregatedResult
}

type discoveryEntry struct {
	mu      sync.Mutex
	session model.DiscoverySession
}

// Closer closes a scan or discovery's event topic. pkg/eventbus.Bus (and
// the API's persistingBus wrapper around it) satisfy this; Store depends
// on this narrow interface rather than importing eventbus directly, since
// not every Store (e.g. in package tests) is wired to a bus.
type Closer interface {
	Close(id string)
}

// Store holds every in-flight and recently-terminal scan and discovery
// session for one process.
type Store struct {
	cfg Config

	scansMu sync.RWMutex
	scans   map[string]*scanEntry

	discoveriesMu sync.RWMutex
	discoveries   map[string]*discoveryEntry

	bus  Closer
	busMu sync.RWMutex

	stop chan struct{}
}

// New builds an empty Store and starts its TTL sweep goroutine.
func New(cfg Config) *Store {
	if cfg.SweepInterval <= 0 {
		cfg = DefaultConfig()
	}
	s := &Store{
		cfg:         cfg,
		scans:       make(map[string]*scanEntry),
		discoveries: make(map[string]*discoveryEntry),
		stop:        make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the TTL sweep goroutine.
func (s *Store) Close() {
	close(s.stop)
}

// SetBus wires bus so TTL eviction (sweepScans, sweepDiscoveries) can close
// an evicted session's event-stream topic. It is a post-construction
// setter rather than a New parameter because the bus and Store are
// constructed independently by every caller (the HTTP API, the CLI,
// package tests) and not every caller needs event-stream cleanup.
func (s *Store) SetBus(bus Closer) {
	s.busMu.Lock()
	defer s.busMu.Unlock()
	s.bus = bus
}

func (s *Store) closeTopic(id string) {
	s.busMu.RLock()
	bus := s.bus
	s.busMu.RUnlock()
	if bus != nil {
		bus.Close(id)
	}
}

// CreateScan registers a new pending scan session.
func (s *Store) CreateScan(scanID string, req model.ScanRequest) *model.ScanSession {
	s.scansMu.Lock()
	defer s.scansMu.Unlock()

	session := model.ScanSession{
		ScanID:    scanID,
		Request:   req,
		State:     model.ScanStatePending,
		CreatedAt: time.Now(),
		Version:   1,
	}
	s.scans[scanID] = &scanEntry{session: session}
	return &session
}

// UpdateScan applies mutate to scanID's session under its lock, used by
// the orchestrator goroutine that owns the scan to record state and
// progress transitions.
func (s *Store) UpdateScan(scanID string, mutate func(*model.ScanSession)) bool {
	s.scansMu.RLock()
	entry, ok := s.scans[scanID]
	s.scansMu.RUnlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	mutate(&entry.session)
	return true
}

// GetScan returns a snapshot copy of scanID's session, or false if absent.
func (s *Store) GetScan(scanID string) (model.ScanSession, bool) {
	s.scansMu.RLock()
	entry, ok := s.scans[scanID]
	s.scansMu.RUnlock()
	if !ok {
		return model.ScanSession{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session, true
}

// AppendResultVersion records a new AggregatedResult version for scanID,
// evicting the oldest version once MaxVersionsPerScan is exceeded.
func (s *Store) AppendResultVersion(scanID string, result model.AggregatedResult) {
	s.scansMu.RLock()
	entry, ok := s.scans[scanID]
	s.scansMu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.versions = append(entry.versions, result)
	cap := s.cfg.MaxVersionsPerScan
	if cap > 0 && len(entry.versions) > cap {
		entry.versions = entry.versions[len(entry.versions)-cap:]
	}
	entry.session.Result = &entry.versions[len(entry.versions)-1]
}

// ResultVersions returns every retained AggregatedResult version for
// scanID, oldest first.
func (s *Store) ResultVersions(scanID string) []model.AggregatedResult {
	s.scansMu.RLock()
	entry, ok := s.scans[scanID]
	s.scansMu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]model.AggregatedResult, len(entry.versions))
	copy(out, entry.versions)
	return out
}

// DeleteScan removes scanID's session immediately.
func (s *Store) DeleteScan(scanID string) {
	s.scansMu.Lock()
	defer s.scansMu.Unlock()
	delete(s.scans, scanID)
}

// CreateDiscovery registers a new running discovery session.
func (s *Store) CreateDiscovery(discoveryID, startURL string, maxPages, maxDepth int) *model.DiscoverySession {
	s.discoveriesMu.Lock()
	defer s.discoveriesMu.Unlock()

	session := model.DiscoverySession{
		DiscoveryID: discoveryID,
		StartURL:    startURL,
		MaxPages:    maxPages,
		MaxDepth:    maxDepth,
		State:       model.DiscoveryStateRunning,
		CreatedAt:   time.Now(),
	}
	s.discoveries[discoveryID] = &discoveryEntry{session: session}
	return &session
}

// UpdateDiscovery applies mutate to discoveryID's session under its lock.
func (s *Store) UpdateDiscovery(discoveryID string, mutate func(*model.DiscoverySession)) bool {
	s.discoveriesMu.RLock()
	entry, ok := s.discoveries[discoveryID]
	s.discoveriesMu.RUnlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	mutate(&entry.session)
	return true
}

// GetDiscovery returns a snapshot copy of discoveryID's session.
func (s *Store) GetDiscovery(discoveryID string) (model.DiscoverySession, bool) {
	s.discoveriesMu.RLock()
	entry, ok := s.discoveries[discoveryID]
	s.discoveriesMu.RUnlock()
	if !ok {
		return model.DiscoverySession{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session, true
}

// DeleteDiscovery removes discoveryID's session immediately.
func (s *Store) DeleteDiscovery(discoveryID string) {
	s.discoveriesMu.Lock()
	defer s.discoveriesMu.Unlock()
	delete(s.discoveries, discoveryID)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepScans()
			s.sweepDiscoveries()
		}
	}
}

func (s *Store) sweepScans() {
	now := time.Now()

	s.scansMu.Lock()
	defer s.scansMu.Unlock()

	for id, entry := range s.scans {
		entry.mu.Lock()
		state := entry.session.State
		endedAt := entry.session.EndedAt
		createdAt := entry.session.CreatedAt
		entry.mu.Unlock()

		if state.IsTerminal() {
			if !endedAt.IsZero() && now.Sub(endedAt) > s.cfg.TerminalTTL {
				delete(s.scans, id)
				s.closeTopic(id)
				log.Debug().Str("scan_id", id).Msg("Evicted terminal scan session past TTL")
			}
			continue
		}

		if now.Sub(createdAt) > s.cfg.ForceCancelTTL {
			entry.mu.Lock()
			entry.session.State = model.ScanStateCancelled
			entry.session.EndedAt = now
			entry.mu.Unlock()
			log.Warn().Str("scan_id", id).Msg("Force-cancelled scan session past pending TTL")
		}
	}
}

func (s *Store) sweepDiscoveries() {
	now := time.Now()

	s.discoveriesMu.Lock()
	defer s.discoveriesMu.Unlock()

	for id, entry := range s.discoveries {
		entry.mu.Lock()
		state := entry.session.State
		endedAt := entry.session.EndedAt
		createdAt := entry.session.CreatedAt
		entry.mu.Unlock()

		terminal := state == model.DiscoveryStateCompleted || state == model.DiscoveryStateFailed || state == model.DiscoveryStateCancelled
		if terminal {
			if !endedAt.IsZero() && now.Sub(endedAt) > s.cfg.TerminalTTL {
				delete(s.discoveries, id)
				s.closeTopic(id)
			}
			continue
		}

		if now.Sub(createdAt) > s.cfg.ForceCancelTTL {
			entry.mu.Lock()
			entry.session.State = model.DiscoveryStateCancelled
			entry.session.EndedAt = now
			entry.mu.Unlock()
			log.Warn().Str("discovery_id", id).Msg("Force-cancelled discovery session past pending TTL")
		}
	}
}
