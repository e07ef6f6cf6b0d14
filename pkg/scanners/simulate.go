package scanners

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/pyneda/sukyan/lib"
	"github.com/pyneda/sukyan/pkg/model"
)

// simulateCatalog is the fixed pool of rule codes a SimulateDriver draws
// from. Kept deliberately overlapping with the real rule table (see
// pkg/normalize) so simulated runs exercise the same normalization paths a
// live scan would.
var simulateCatalog = []string{
	"image-alt", "color-contrast", "label", "link-name", "heading-order",
	"aria-hidden-focus", "duplicate-id", "html-has-lang", "form-field-multiple-labels",
}

// SimulateDriver produces deterministic, offline scanner outcomes keyed by
// a hash of the page URL, so the same target always yields the same
// findings without reaching any real scanner binary or network service.
// Used in tests and demos where installing pa11y/axe/lighthouse or holding
// a WAVE API key is impractical.
type SimulateDriver struct {
	id model.ScannerID
}

// NewSimulateDriver returns a SimulateDriver that reports as scanner id.
func NewSimulateDriver(id model.ScannerID) *SimulateDriver {
	return &SimulateDriver{id: id}
}

func (d *SimulateDriver) ID() model.ScannerID { return d.id }

func (d *SimulateDriver) Drive(ctx context.Context, unit model.ScanUnit, timeout time.Duration, creds *model.Credentials) model.ScannerOutcome {
	started := time.Now()
	outcome := newOutcome(unit, started)

	seed := seedFromURL(unit.PageURL, string(d.id))

	// A small, deterministic slice of URLs simulate a hard failure so
	// orchestrator failure-handling paths can be exercised without a real
	// scanner misbehaving.
	if seed%13 == 0 {
		return finish(outcome, model.OutcomeFailed, model.FailureProcessError, nil, nil)
	}

	count := int(seed % 4)
	issues := make([]model.RawIssue, 0, count)
	for i := 0; i < count; i++ {
		rule := simulateCatalog[(seed+uint64(i))%uint64(len(simulateCatalog))]
		issues = append(issues, model.RawIssue{
			RuleCode: rule,
			Message:  "simulated finding for " + rule,
			Selector: "#simulated-element-" + string(rune('a'+i)),
			Context:  "<div>simulated context</div>",
		})
	}

	return finish(outcome, model.OutcomeSucceeded, model.FailureNone, nil, issues)
}

func seedFromURL(pageURL, scanner string) uint64 {
	h := lib.HashBytes([]byte(pageURL + "|" + scanner))
	decoded, err := hex.DecodeString(h[:16])
	if err != nil || len(decoded) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(decoded[:8])
}
