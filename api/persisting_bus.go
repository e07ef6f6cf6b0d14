package api

import (
	"time"

	"github.com/pyneda/sukyan/pkg/eventbus"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/persist"
)

// persistingBus forwards every published event to the live eventbus.Bus
// for streaming and, when persistence is enabled, mirrors it to the
// filesystem audit log. It satisfies both orchestrator.EventPublisher and
// discovery.EventPublisher.
type persistingBus struct {
	bus     *eventbus.Bus
	persist *persist.Writer
}

func newPersistingBus(bus *eventbus.Bus, w *persist.Writer) *persistingBus {
	return &persistingBus{bus: bus, persist: w}
}

// Close forwards to the live bus's Close, ending id's event stream. It
// lets persistingBus satisfy the orchestrator's and discovery runner's
// optional closer interface without widening EventPublisher itself.
func (p *persistingBus) Close(id string) {
	p.bus.Close(id)
}

func (p *persistingBus) Publish(id string, eventType model.EventType, data interface{}) {
	p.bus.Publish(id, eventType, data)
	if p.persist == nil || eventType == model.EventHeartbeat {
		return
	}
	p.persist.AppendEvent(id, model.ScanEvent{
		Type:      eventType,
		ScanID:    id,
		Timestamp: time.Now(),
		Data:      data,
	})
}
