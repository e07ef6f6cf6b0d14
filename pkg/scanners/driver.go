// Package scanners implements the scanner driver contract (component C1):
// each driver knows how to run one accessibility scanner against one page
// and translate its native output into a model.ScannerOutcome.
package scanners

import (
	"context"
	"time"

	"github.com/pyneda/sukyan/pkg/model"
)

// Driver drives a single accessibility scanner against a single page.
type Driver interface {
	ID() model.ScannerID
	Drive(ctx context.Context, unit model.ScanUnit, timeout time.Duration, creds *model.Credentials) model.ScannerOutcome
}

func newOutcome(unit model.ScanUnit, started time.Time) model.ScannerOutcome {
	return model.ScannerOutcome{Unit: unit, StartedAt: started}
}

func finish(o model.ScannerOutcome, status model.OutcomeStatus, failure model.FailureKind, err error, issues []model.RawIssue) model.ScannerOutcome {
	o.Status = status
	o.Failure = failure
	if err != nil {
		o.Error = err.Error()
	}
	o.Issues = issues
	o.EndedAt = time.Now()
	return o
}
