// Package discovery runs one crawl to completion as a tracked
// DiscoverySession, publishing progress through the event bus and
// recording the result in the session store. It is the glue between the
// pure crawl.Crawler and the rest of the system's session/event model.
package discovery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/crawl"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/selector"
	"github.com/pyneda/sukyan/pkg/store"
)

// EventPublisher publishes discovery lifecycle events.
type EventPublisher interface {
	Publish(id string, eventType model.EventType, data interface{})
}

// closer optionally closes a topic's event stream once a discovery reaches
// a terminal state, checked via type assertion so stub publishers in tests
// never need to implement it.
type closer interface {
	Close(id string)
}

// Runner drives discovery sessions, sharing a store and bus across the
// discoveries this process runs.
type Runner struct {
	store *store.Store
	bus   EventPublisher
}

// New builds a Runner over st and bus.
func New(st *store.Store, bus EventPublisher) *Runner {
	return &Runner{store: st, bus: bus}
}

// Run crawls startURL to completion (or ctx cancellation), updating
// discoveryID's session throughout and returning the pages found. A crawl
// that discovers zero pages is not an error here; callers check
// len(pages) == 0 themselves to raise DISCOVERY_EMPTY at the scan level.
func (r *Runner) Run(ctx context.Context, discoveryID string, cfg crawl.Config) ([]model.DiscoveredPage, error) {
	session := r.store.CreateDiscovery(discoveryID, cfg.StartURL, cfg.MaxPages, cfg.MaxDepth)
	_ = session

	cfg.OnProgress = func(page model.DiscoveredPage, visited, queued int) {
		r.store.UpdateDiscovery(discoveryID, func(s *model.DiscoverySession) {
			s.Pages = append(s.Pages, page)
		})
		r.bus.Publish(discoveryID, model.EventDiscoveryProgress, map[string]interface{}{
			"page": page, "visited": visited, "queued": queued,
		})
	}

	crawler := crawl.New(cfg)
	pages, err := crawler.Run(ctx)

	finalState := model.DiscoveryStateCompleted
	switch {
	case err != nil && ctx.Err() != nil:
		finalState = model.DiscoveryStateCancelled
	case len(pages) == 0:
		finalState = model.DiscoveryStateFailed
	}

	r.store.UpdateDiscovery(discoveryID, func(s *model.DiscoverySession) {
		s.Pages = pages
		s.State = finalState
		s.EndedAt = time.Now()
	})

	r.bus.Publish(discoveryID, model.EventDiscoveryComplete, map[string]interface{}{
		"state": string(finalState), "page_count": len(pages),
	})
	if c, ok := r.bus.(closer); ok {
		c.Close(discoveryID)
	}

	log.Info().
		Str("discovery_id", discoveryID).
		Int("pages", len(pages)).
		Str("state", string(finalState)).
		Msg("Discovery session finished")

	return pages, err
}

// SelectPages runs the page selector over a completed discovery's pages
// using cfg, returning the representative sample for a scan.
func SelectPages(pages []model.DiscoveredPage, policy model.CompliancePolicy, cfg selector.Config) model.PageSelection {
	return selector.Select(pages, policy, cfg)
}
