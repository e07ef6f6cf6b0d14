// Package api exposes the orchestrator over HTTP: scan and discovery
// submission, status polling, results retrieval, and a Server-Sent
// Events stream of a session's events. Authentication, TLS and static
// asset serving are deliberately out of scope; this is the thin
// collaborator surface the core pipeline is driven through.
package api

import (
	"fmt"
	"time"

	"github.com/gofiber/contrib/fiberzerolog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/pyneda/sukyan/pkg/discovery"
	"github.com/pyneda/sukyan/pkg/eventbus"
	"github.com/pyneda/sukyan/pkg/persist"
	"github.com/pyneda/sukyan/pkg/scan/control"
	"github.com/pyneda/sukyan/pkg/scan/orchestrator"
	"github.com/pyneda/sukyan/pkg/scanners"
	"github.com/pyneda/sukyan/pkg/store"
)

// Deps bundles the shared components every handler needs. One Deps is
// built at startup and handed to every request through fiber.Ctx locals.
type Deps struct {
	Store           *store.Store
	Bus             *eventbus.Bus
	Publisher       orchestrator.EventPublisher
	Orchestrator    *orchestrator.Orchestrator
	DiscoveryRunner *discovery.Runner
	ControlRegistry *control.Registry
	Registry        *scanners.Registry
	Persist         *persist.Writer
}

// StartAPI builds the shared dependencies and serves the HTTP API until
// the process exits.
func StartAPI() {
	apiLogger := log.With().Str("type", "api").Logger()

	bus := eventbus.New(eventbus.Config{
		RingBufferSize:       viper.GetInt("eventbus.ring_buffer_size"),
		SubscriberBufferSize: viper.GetInt("eventbus.subscriber_buffer_size"),
		HeartbeatInterval:    time.Duration(viper.GetInt("eventbus.heartbeat_interval_seconds")) * time.Second,
	})

	sessionStore := store.New(store.Config{
		TerminalTTL:        time.Duration(viper.GetInt("store.terminal_ttl_hours")) * time.Hour,
		ForceCancelTTL:     time.Duration(viper.GetInt("store.force_cancel_ttl_hours")) * time.Hour,
		SweepInterval:      time.Duration(viper.GetInt("store.sweep_interval_seconds")) * time.Second,
		MaxVersionsPerScan: viper.GetInt("store.max_versions_per_scan"),
	})
	controlReg := control.NewRegistry()
	registry := scanners.NewRegistry()

	var persistWriter *persist.Writer
	if viper.GetBool("persist.enabled") {
		persistWriter = persist.New(viper.GetString("persist.directory"))
	}
	publisher := newPersistingBus(bus, persistWriter)
	sessionStore.SetBus(publisher)

	orch := orchestrator.New(orchestrator.DefaultConfig(), registry, controlReg, publisher)
	discoveryRunner := discovery.New(sessionStore, publisher)

	deps := &Deps{
		Store:           sessionStore,
		Bus:             bus,
		Publisher:       publisher,
		Orchestrator:    orch,
		DiscoveryRunner: discoveryRunner,
		ControlRegistry: controlReg,
		Registry:        registry,
		Persist:         persistWriter,
	}

	app := fiber.New(fiber.Config{
		ServerHeader: "a11yscan",
		AppName:      "Accessibility Scan Orchestrator",
	})

	app.Use(cors.New())
	app.Use(fiberzerolog.New(fiberzerolog.Config{Logger: &apiLogger}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Accessibility Scan Orchestrator API")
	})

	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals("deps", deps)
		return c.Next()
	})

	v1.Post("/scans", SubmitScan)
	v1.Get("/scans/:id", GetScanStatus)
	v1.Get("/scans/:id/results", GetScanResults)
	v1.Get("/scans/:id/stream", StreamScanEvents)
	v1.Post("/scans/:id/cancel", CancelScan)
	v1.Post("/scans/:id/pause", PauseScan)
	v1.Post("/scans/:id/resume", ResumeScan)

	v1.Post("/discoveries", SubmitDiscovery)
	v1.Get("/discoveries/:id", GetDiscoveryStatus)
	v1.Get("/discoveries/:id/stream", StreamDiscoveryEvents)

	addr := fmt.Sprintf("%v:%v", viper.Get("api.listen.host"), viper.Get("api.listen.port"))
	apiLogger.Info().Str("addr", addr).Msg("Starting API server")
	if err := app.Listen(addr); err != nil {
		apiLogger.Error().Err(err).Msg("API server stopped")
	}
}
