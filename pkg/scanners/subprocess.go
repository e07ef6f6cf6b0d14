package scanners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
)

// subprocessTerminationGrace is how long Drive waits after sending SIGTERM
// to a timed-out or cancelled scanner subprocess before escalating to
// SIGKILL, giving the scanner's own CLI a chance to flush partial output
// and exit cleanly instead of being killed mid-write. Variable rather than
// const so tests can shorten it.
var subprocessTerminationGrace = 2 * time.Second

// subprocessIssue is the shape every subprocess scanner's JSON output is
// normalized to before it reaches the driver layer. Real CLIs vary in their
// native schema (pa11y, axe-core CLI, lighthouse); an adapter per scanner
// would translate its actual JSON into this shape. Kept flat here since all
// three only need rule code, message, selector and context to drive the
// normalizer's rule-table lookup.
type subprocessIssue struct {
	RuleCode string `json:"rule_code"`
	Message  string `json:"message"`
	Selector string `json:"selector"`
	Context  string `json:"context"`
}

// SubprocessDriver drives a CLI-based scanner (pa11y, axe-core CLI,
// lighthouse) by invoking it as `binary <url> --json` and parsing its
// stdout as a JSON array of subprocessIssue.
type SubprocessDriver struct {
	id     model.ScannerID
	binary string
}

// NewSubprocessDriver returns a driver that invokes binary as a subprocess.
func NewSubprocessDriver(id model.ScannerID, binary string) *SubprocessDriver {
	return &SubprocessDriver{id: id, binary: binary}
}

func (d *SubprocessDriver) ID() model.ScannerID { return d.id }

func (d *SubprocessDriver) Drive(ctx context.Context, unit model.ScanUnit, timeout time.Duration, creds *model.Credentials) model.ScannerOutcome {
	started := time.Now()
	outcome := newOutcome(unit, started)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{unit.PageURL, "--json"}
	if creds != nil && creds.Username != "" {
		args = append(args, "--username", creds.Username, "--password", creds.Password)
	}

	// exec.CommandContext would SIGKILL the process the instant runCtx
	// expires, which can truncate a scanner's JSON mid-write. Drive instead
	// starts the process under a cancel-free context, and on runCtx.Done()
	// sends SIGTERM itself and gives the process a grace period to exit
	// before escalating to SIGKILL. The process runs in its own process
	// group so both signals also reach any children it started.
	cmd := exec.Command(d.binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return finish(outcome, model.OutcomeFailed, model.FailureProcessError, fmt.Errorf("starting %s: %w", d.binary, err), nil)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-runCtx.Done():
		err = terminateGracefully(cmd, waitErr)
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return finish(outcome, model.OutcomeTimedOut, model.FailureTimeout, fmt.Errorf("scanner timed out after %s", timeout), nil)
	}

	if stderr.Len() > 0 {
		log.Debug().Str("scanner", string(d.id)).Str("url", unit.PageURL).Str("stderr", stderr.String()).Msg("Scanner subprocess wrote to stderr")
	}

	if err != nil {
		return finish(outcome, model.OutcomeFailed, model.FailureProcessError, fmt.Errorf("%s exited: %w", d.binary, err), nil)
	}

	var parsed []subprocessIssue
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return finish(outcome, model.OutcomeFailed, model.FailureBadOutput, fmt.Errorf("parsing %s output: %w", d.binary, err), nil)
	}

	issues := make([]model.RawIssue, 0, len(parsed))
	for _, p := range parsed {
		issues = append(issues, model.RawIssue{
			RuleCode: p.RuleCode,
			Message:  p.Message,
			Selector: p.Selector,
			Context:  p.Context,
		})
	}

	return finish(outcome, model.OutcomeSucceeded, model.FailureNone, nil, issues)
}

// terminateGracefully signals cmd's process group with SIGTERM and waits up
// to subprocessTerminationGrace for cmd.Wait to return on waitErr before
// escalating to SIGKILL. It always returns whatever error cmd.Wait
// ultimately produced.
func terminateGracefully(cmd *exec.Cmd, waitErr chan error) error {
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)

	select {
	case err := <-waitErr:
		return err
	case <-time.After(subprocessTerminationGrace):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		return <-waitErr
	}
}
