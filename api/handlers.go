package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/pyneda/sukyan/lib"
	"github.com/pyneda/sukyan/pkg/crawl"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/scan/orchestrator"
	"github.com/pyneda/sukyan/pkg/scanners"
	"github.com/pyneda/sukyan/pkg/selector"
)

var validate = validator.New()

var knownScannerIDs = []string{
	string(model.ScannerAxe), string(model.ScannerPa11y),
	string(model.ScannerWave), string(model.ScannerLighthouse),
}

func depsFromCtx(c *fiber.Ctx) *Deps {
	return c.Locals("deps").(*Deps)
}

// submitScanResponse is the body returned by POST /scans.
type submitScanResponse struct {
	ScanID    string `json:"scan_id"`
	StreamURL string `json:"stream_url"`
}

// SubmitScan validates a ScanRequest, creates its session, and starts a
// dedicated goroutine to run it. It never blocks on the scan itself.
func SubmitScan(c *fiber.Ctx) error {
	deps := depsFromCtx(c)

	var req model.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.Scanners) == 0 {
		req.Scanners = defaultScanners()
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	for _, id := range req.Scanners {
		if !lib.SliceContains(knownScannerIDs, string(id)) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown scanner %q", id)})
		}
	}

	scanID := uuid.NewString()
	deps.Store.CreateScan(scanID, req)

	registry := deps.Registry
	if req.Simulate {
		registry = scanners.NewRegistry()
		for _, id := range req.Scanners {
			registry.Register(id, scanners.NewSimulateDriver(id))
		}
	}

	go runScan(deps, registry, scanID, req)

	return c.Status(fiber.StatusAccepted).JSON(submitScanResponse{
		ScanID:    scanID,
		StreamURL: fmt.Sprintf("/api/v1/scans/%s/stream", scanID),
	})
}

func defaultScanners() []model.ScannerID {
	ids := viper.GetStringSlice("scan.default_scanners")
	out := make([]model.ScannerID, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.ScannerID(id))
	}
	return out
}

// runScan drives one scan's full discover→select→scan pipeline and
// records its outcome in the session store. It is the "dedicated worker
// task" the submission endpoint starts.
func runScan(deps *Deps, registry *scanners.Registry, scanID string, req model.ScanRequest) {
	sessionTimeout := 30 * time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()

	deps.Store.UpdateScan(scanID, func(s *model.ScanSession) {
		s.State = model.ScanStateRunning
		s.StartedAt = time.Now()
	})

	pages, err := deps.DiscoveryRunner.Run(ctx, scanID, crawl.Config{
		StartURL: req.StartURL,
		MaxPages: req.MaxPages,
		MaxDepth: req.MaxDepth,
	})
	if err != nil && len(pages) == 0 {
		failScan(deps, scanID, model.ScanFailureDiscoveryEmpty)
		return
	}
	if len(pages) == 0 {
		failScan(deps, scanID, model.ScanFailureDiscoveryEmpty)
		return
	}

	selection := selector.Select(pages, req.Policy, selector.Config{
		MaxPages:     viper.GetInt("selector.max_pages_per_scan"),
		PerTypeQuota: viper.GetInt("selector.per_type_quota"),
	})
	deps.Store.UpdateScan(scanID, func(s *model.ScanSession) {
		s.Selection = selection
	})

	orch := deps.Orchestrator
	if req.Simulate {
		orch = orchestrator.New(orchestrator.DefaultConfig(), registry, deps.ControlRegistry, deps.Publisher)
	}

	outcomes, result, _ := orch.Run(ctx, orchestrator.RunRequest{
		ScanID:      scanID,
		Selection:   selection,
		Scanners:    req.Scanners,
		Credentials: req.Credentials,
	})

	deps.Store.UpdateScan(scanID, func(s *model.ScanSession) {
		s.Outcomes = outcomes
		s.Result = &result
		s.Progress = model.UnitProgress{Total: len(outcomes), Succeeded: countStatus(outcomes, model.OutcomeSucceeded), Failed: len(outcomes) - countStatus(outcomes, model.OutcomeSucceeded)}
		s.EndedAt = time.Now()
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			s.State = model.ScanStateFailed
			s.FailureKind = model.ScanFailureSessionTimeout
		case allFailed(outcomes):
			s.State = model.ScanStateFailed
			s.FailureKind = model.ScanFailureAllScannersFailed
		default:
			s.State = model.ScanStateCompleted
		}
	})
	deps.Store.AppendResultVersion(scanID, result)

	if deps.Persist != nil {
		for i, o := range outcomes {
			if err := deps.Persist.WriteRawOutcome(scanID, i, o); err != nil {
				log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to persist raw scanner outcome")
			}
		}
		if err := deps.Persist.WriteSummary(scanID, result); err != nil {
			log.Warn().Err(err).Str("scan_id", scanID).Msg("Failed to persist scan summary")
		}
	}
}

func countStatus(outcomes []model.ScannerOutcome, status model.OutcomeStatus) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func allFailed(outcomes []model.ScannerOutcome) bool {
	return countStatus(outcomes, model.OutcomeSucceeded) == 0
}

func failScan(deps *Deps, scanID string, kind model.ScanFailureKind) {
	deps.Store.UpdateScan(scanID, func(s *model.ScanSession) {
		s.State = model.ScanStateFailed
		s.FailureKind = kind
		s.EndedAt = time.Now()
	})
	deps.Bus.Publish(scanID, model.EventScanFailed, map[string]string{"kind": string(kind)})
}

// scanStatusResponse matches the status endpoint's documented shape.
type scanStatusResponse struct {
	State           model.ScanState       `json:"state"`
	ProgressPercent int                   `json:"progress_percent"`
	PagesTotal      int                   `json:"pages_total"`
	PagesCompleted  int                   `json:"pages_completed"`
	ErrorsFound     int                   `json:"errors_found"`
	WarningsFound   int                   `json:"warnings_found"`
	StartedAt       time.Time             `json:"started_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	FailureKind     model.ScanFailureKind `json:"failure_kind,omitempty"`
}

// GetScanStatus returns a point-in-time snapshot of a scan session.
func GetScanStatus(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	scanID := c.Params("id")

	session, ok := deps.Store.GetScan(scanID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scan not found"})
	}

	resp := scanStatusResponse{
		State:          session.State,
		PagesTotal:     len(session.Selection.Pages),
		PagesCompleted: session.Progress.Succeeded + session.Progress.Failed,
		ErrorsFound:    session.Progress.Failed,
		WarningsFound:  len(session.Warnings),
		StartedAt:      session.StartedAt,
		FailureKind:    session.FailureKind,
	}
	resp.ProgressPercent = progressPercent(session)
	if session.State.IsTerminal() && !session.EndedAt.IsZero() {
		ended := session.EndedAt
		resp.CompletedAt = &ended
	}

	return c.JSON(resp)
}

// progressPercent maps session state/progress onto a 0-100 percentage:
// 0 while pending, 15 + 75*(completed units / total units) once units
// exist, and 100 once completed. Sessions have no discovery, selection or
// normalizing state, so the 0-15 and 90-100 ranges are never reported in
// between: a running scan with no units yet reads 15, and a failed or
// cancelled scan keeps its unit-based value (0 if it had no units).
func progressPercent(s model.ScanSession) int {
	switch s.State {
	case model.ScanStatePending:
		return 0
	case model.ScanStateCompleted:
		return 100
	case model.ScanStateFailed, model.ScanStateCancelled:
		if s.Progress.Total == 0 {
			return 0
		}
	}
	if s.Progress.Total == 0 {
		return 15
	}
	completed := s.Progress.Succeeded + s.Progress.Failed
	return 15 + int(75*float64(completed)/float64(s.Progress.Total))
}

// GetScanResults returns the AggregatedResult for a completed scan, or
// 409 if the scan has not reached COMPLETED yet.
func GetScanResults(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	scanID := c.Params("id")

	session, ok := deps.Store.GetScan(scanID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scan not found"})
	}
	if session.State != model.ScanStateCompleted || session.Result == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "scan has not completed", "state": session.State})
	}
	return c.JSON(session.Result)
}

// StreamScanEvents streams scanID's event topic as Server-Sent Events.
func StreamScanEvents(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	scanID := c.Params("id")
	return streamTopic(c, deps, scanID)
}

// CancelScan requests cooperative cancellation of a running scan.
func CancelScan(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	deps.ControlRegistry.SetCancelled(c.Params("id"))
	return c.SendStatus(fiber.StatusAccepted)
}

// PauseScan pauses a running scan between units.
func PauseScan(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	deps.ControlRegistry.SetPaused(c.Params("id"))
	return c.SendStatus(fiber.StatusAccepted)
}

// ResumeScan resumes a paused scan.
func ResumeScan(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	deps.ControlRegistry.SetRunning(c.Params("id"))
	return c.SendStatus(fiber.StatusAccepted)
}

type submitDiscoveryRequest struct {
	StartURL string `json:"start_url" validate:"required,url"`
	MaxPages int    `json:"max_pages,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

type submitDiscoveryResponse struct {
	DiscoveryID string `json:"discovery_id"`
	StreamURL   string `json:"stream_url"`
}

// SubmitDiscovery starts a standalone crawl, mirroring the scan
// submission endpoint against DiscoverySession.
func SubmitDiscovery(c *fiber.Ctx) error {
	deps := depsFromCtx(c)

	var req submitDiscoveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	discoveryID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		_, _ = deps.DiscoveryRunner.Run(ctx, discoveryID, crawl.Config{
			StartURL: req.StartURL,
			MaxPages: req.MaxPages,
			MaxDepth: req.MaxDepth,
		})
	}()

	return c.Status(fiber.StatusAccepted).JSON(submitDiscoveryResponse{
		DiscoveryID: discoveryID,
		StreamURL:   fmt.Sprintf("/api/v1/discoveries/%s/stream", discoveryID),
	})
}

// GetDiscoveryStatus returns a point-in-time snapshot of a discovery session.
func GetDiscoveryStatus(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	session, ok := deps.Store.GetDiscovery(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discovery not found"})
	}
	return c.JSON(session)
}

// StreamDiscoveryEvents streams a discovery's event topic as SSE.
func StreamDiscoveryEvents(c *fiber.Ctx) error {
	deps := depsFromCtx(c)
	return streamTopic(c, deps, c.Params("id"))
}
