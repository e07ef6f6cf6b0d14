package scanners

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyneda/sukyan/pkg/model"
)

func unit() model.ScanUnit {
	return model.ScanUnit{ScanID: "scan-1", PageURL: "http://a.test", Scanner: model.ScannerAxe}
}

// scriptDriver writes body as an executable shell script to a temp file and
// returns a SubprocessDriver that invokes it. Drive always appends the page
// URL and --json as args; these scripts ignore both.
func scriptDriver(t *testing.T, body string) *SubprocessDriver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanner.sh")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return NewSubprocessDriver(model.ScannerAxe, path)
}

func TestSubprocessDriver_ParsesJSONOutputOnSuccess(t *testing.T) {
	d := scriptDriver(t, `echo '[{"rule_code":"r1","message":"m","selector":"s","context":"c"}]'`)

	out := d.Drive(context.Background(), unit(), time.Second, nil)

	require.Equal(t, model.OutcomeSucceeded, out.Status)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "r1", out.Issues[0].RuleCode)
}

func TestSubprocessDriver_NonZeroExitIsProcessError(t *testing.T) {
	d := scriptDriver(t, `exit 1`)

	out := d.Drive(context.Background(), unit(), time.Second, nil)

	assert.Equal(t, model.OutcomeFailed, out.Status)
	assert.Equal(t, model.FailureProcessError, out.Failure)
}

func TestSubprocessDriver_BadJSONIsBadOutput(t *testing.T) {
	d := scriptDriver(t, `echo 'not json'`)

	out := d.Drive(context.Background(), unit(), time.Second, nil)

	assert.Equal(t, model.OutcomeFailed, out.Status)
	assert.Equal(t, model.FailureBadOutput, out.Failure)
}

func TestSubprocessDriver_GracefulTerminationEscalatesToKillPastGracePeriod(t *testing.T) {
	orig := subprocessTerminationGrace
	subprocessTerminationGrace = 50 * time.Millisecond
	defer func() { subprocessTerminationGrace = orig }()

	// Ignores SIGTERM, so Drive must escalate to SIGKILL after the grace
	// period elapses rather than hanging until the process exits on its own.
	d := scriptDriver(t, `trap '' TERM; sleep 5`)

	start := time.Now()
	out := d.Drive(context.Background(), unit(), 100*time.Millisecond, nil)
	elapsed := time.Since(start)

	assert.Equal(t, model.OutcomeTimedOut, out.Status)
	assert.Equal(t, model.FailureTimeout, out.Failure)
	assert.Less(t, elapsed, 5*time.Second, "expected SIGKILL to cut the sleep short instead of waiting it out")
}

func TestSubprocessDriver_ExitsPromptlyWhenItHandlesSIGTERM(t *testing.T) {
	orig := subprocessTerminationGrace
	subprocessTerminationGrace = 2 * time.Second
	defer func() { subprocessTerminationGrace = orig }()

	d := scriptDriver(t, `trap 'exit 0' TERM; sleep 5`)

	start := time.Now()
	out := d.Drive(context.Background(), unit(), 100*time.Millisecond, nil)
	elapsed := time.Since(start)

	assert.Equal(t, model.OutcomeTimedOut, out.Status)
	assert.Less(t, elapsed, subprocessTerminationGrace, "expected the SIGTERM handler to let the process exit well before the SIGKILL grace period")
}
