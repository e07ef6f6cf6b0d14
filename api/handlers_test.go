package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyneda/sukyan/pkg/discovery"
	"github.com/pyneda/sukyan/pkg/eventbus"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/scan/control"
	"github.com/pyneda/sukyan/pkg/scan/orchestrator"
	"github.com/pyneda/sukyan/pkg/scanners"
	"github.com/pyneda/sukyan/pkg/store"
)

func testDeps(t *testing.T) *Deps {
	t.Helper()
	bus := eventbus.New(eventbus.DefaultConfig())
	st := store.New(store.DefaultConfig())
	t.Cleanup(st.Close)
	controlReg := control.NewRegistry()
	reg := scanners.NewRegistry()
	orch := orchestrator.New(orchestrator.DefaultConfig(), reg, controlReg, bus)
	discoveryRunner := discovery.New(st, bus)

	return &Deps{
		Store:           st,
		Bus:             bus,
		Publisher:       bus,
		Orchestrator:    orch,
		DiscoveryRunner: discoveryRunner,
		ControlRegistry: controlReg,
		Registry:        reg,
	}
}

func testApp(deps *Deps) *fiber.App {
	app := fiber.New()
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals("deps", deps)
		return c.Next()
	})
	v1.Post("/scans", SubmitScan)
	v1.Get("/scans/:id", GetScanStatus)
	v1.Get("/scans/:id/results", GetScanResults)
	v1.Post("/scans/:id/cancel", CancelScan)
	v1.Post("/scans/:id/pause", PauseScan)
	v1.Post("/scans/:id/resume", ResumeScan)
	v1.Post("/discoveries", SubmitDiscovery)
	v1.Get("/discoveries/:id", GetDiscoveryStatus)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSubmitScan_InvalidBodyReturns400(t *testing.T) {
	app := testApp(testDeps(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitScan_MissingStartURLReturns400(t *testing.T) {
	app := testApp(testDeps(t))
	resp := doJSON(t, app, http.MethodPost, "/api/v1/scans", model.ScanRequest{
		Scanners: []model.ScannerID{model.ScannerAxe},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitScan_UnknownScannerReturns400(t *testing.T) {
	app := testApp(testDeps(t))
	resp := doJSON(t, app, http.MethodPost, "/api/v1/scans", model.ScanRequest{
		StartURL: "http://a.test/",
		Scanners: []model.ScannerID{"not-a-real-scanner"},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitScan_ValidRequestAccepted(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/scans", model.ScanRequest{
		StartURL: "http://a.test/",
		Scanners: []model.ScannerID{model.ScannerAxe},
		Simulate: true,
		MaxPages: 1,
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var body submitScanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ScanID)
	assert.Contains(t, body.StreamURL, body.ScanID)

	_, ok := deps.Store.GetScan(body.ScanID)
	assert.True(t, ok)
}

func TestGetScanStatus_MissingScanReturns404(t *testing.T) {
	app := testApp(testDeps(t))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/does-not-exist", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetScanStatus_ReflectsStoredProgress(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)

	deps.Store.CreateScan("scan-x", model.ScanRequest{StartURL: "http://a.test/"})
	deps.Store.UpdateScan("scan-x", func(s *model.ScanSession) {
		s.State = model.ScanStateRunning
		s.Progress = model.UnitProgress{Total: 4, Succeeded: 2}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/scan-x", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status scanStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, model.ScanStateRunning, status.State)
	assert.Equal(t, 2, status.PagesCompleted)
}

func TestGetScanResults_ConflictWhenNotCompleted(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)
	deps.Store.CreateScan("scan-y", model.ScanRequest{StartURL: "http://a.test/"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/scan-y/results", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGetScanResults_ReturnsResultWhenCompleted(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)
	deps.Store.CreateScan("scan-z", model.ScanRequest{StartURL: "http://a.test/"})
	deps.Store.UpdateScan("scan-z", func(s *model.ScanSession) {
		s.State = model.ScanStateCompleted
		s.Result = &model.AggregatedResult{ScanID: "scan-z", Score: 91.5}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/scan-z/results", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result model.AggregatedResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 91.5, result.Score)
}

func TestCancelScan_TransitionsControlToCancelled(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)
	deps.ControlRegistry.Register("scan-c", control.StateRunning)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/scan-c/cancel", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	assert.True(t, deps.ControlRegistry.Get("scan-c").IsCancelled())
}

func TestPauseThenResumeScan_TransitionsControlState(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)
	deps.ControlRegistry.Register("scan-p", control.StateRunning)

	pauseReq := httptest.NewRequest(http.MethodPost, "/api/v1/scans/scan-p/pause", nil)
	pauseResp, err := app.Test(pauseReq, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, pauseResp.StatusCode)
	assert.True(t, deps.ControlRegistry.Get("scan-p").IsPaused())

	resumeReq := httptest.NewRequest(http.MethodPost, "/api/v1/scans/scan-p/resume", nil)
	resumeResp, err := app.Test(resumeReq, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resumeResp.StatusCode)
	assert.True(t, deps.ControlRegistry.Get("scan-p").IsRunning())
}

func TestSubmitDiscovery_MissingStartURLReturns400(t *testing.T) {
	app := testApp(testDeps(t))
	resp := doJSON(t, app, http.MethodPost, "/api/v1/discoveries", submitDiscoveryRequest{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitDiscovery_ValidRequestAccepted(t *testing.T) {
	deps := testDeps(t)
	app := testApp(deps)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/discoveries", submitDiscoveryRequest{
		StartURL: "http://a.test/",
		MaxPages: 1,
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var body submitDiscoveryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.DiscoveryID)

	assert.Eventually(t, func() bool {
		_, ok := deps.Store.GetDiscovery(body.DiscoveryID)
		return ok
	}, time.Second, 10*time.Millisecond)
}
