// Package persist optionally mirrors a scan's events and final result to
// the filesystem, for operators who want an audit trail beyond the
// in-memory session store's TTL. It is gated by persist.enabled and never
// participates in the scan's correctness: a write failure here is logged
// and swallowed rather than surfaced to the scan.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/pyneda/sukyan/lib"
	"github.com/pyneda/sukyan/pkg/model"
)

// Writer appends scan events to an ndjson log and writes the final
// summary and per-scanner raw outcomes to JSON files, one directory per
// scan under its configured root directory.
type Writer struct {
	rootDir string

	mu   sync.Mutex
	logs map[string]*os.File
}

// New builds a Writer rooted at rootDir. rootDir is created lazily on
// first write, not at construction.
func New(rootDir string) *Writer {
	return &Writer{rootDir: rootDir, logs: make(map[string]*os.File)}
}

func (w *Writer) scanDir(scanID string) string {
	return filepath.Join(w.rootDir, scanID)
}

// AppendEvent appends evt as one ndjson line to scanID's events.log,
// opening the file on first use and keeping it open for the scan's
// lifetime.
func (w *Writer) AppendEvent(scanID string, evt model.ScanEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.logs[scanID]
	if !ok {
		dir := w.scanDir(scanID)
		if !lib.LocalFileExists(dir) {
			log.Debug().Str("scan_id", scanID).Str("dir", dir).Msg("Creating persistence directory")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to create persistence directory")
			return
		}
		var err error
		f, err = os.OpenFile(filepath.Join(dir, "events.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to open events log")
			return
		}
		w.logs[scanID] = f
	}

	line, err := json.Marshal(evt)
	if err != nil {
		log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to marshal event for persistence")
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to append event to persistence log")
	}
}

// WriteSummary writes result as scanID's summary.json, alongside a
// summary.yaml sibling for operators who'd rather grep YAML than JSON.
func (w *Writer) WriteSummary(scanID string, result model.AggregatedResult) error {
	dir := w.scanDir(scanID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "summary.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Debug().Str("scan_id", scanID).Str("path", path).Str("size", lib.BytesCountToHumanReadable(int64(len(data)))).Msg("Wrote scan summary")

	yamlData, err := yaml.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to marshal summary.yaml")
		return nil
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.yaml"), yamlData, 0o644); err != nil {
		log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to write summary.yaml")
	}
	return nil
}

// WriteRawOutcome writes one scanner's raw outcome to
// <scanID>/raw/<scanner>-<n>.json, where n disambiguates multiple pages
// scanned by the same scanner.
func (w *Writer) WriteRawOutcome(scanID string, n int, outcome model.ScannerOutcome) error {
	dir := filepath.Join(w.scanDir(scanID), "raw")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	name := filepath.Join(dir, string(outcome.Unit.Scanner)+"-"+strconv.Itoa(n)+".json")
	return os.WriteFile(name, data, 0o644)
}

// Close closes every open events.log file handle, used on shutdown.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, f := range w.logs {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Str("scan_id", id).Msg("Failed to close persistence log")
		}
	}
	w.logs = make(map[string]*os.File)
}
