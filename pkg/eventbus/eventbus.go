// Package eventbus implements component C6: a per-scan-id topic event bus
// with a bounded history ring buffer and non-blocking fan-out to
// subscribers (the SSE stream adapter foremost among them).
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
)

// Subscriber receives events published to one topic. Delivery is
// non-blocking: if ch is full the event is dropped and DroppedCount is
// incremented, rather than blocking the publisher on a slow reader.
type Subscriber struct {
	ch           chan model.ScanEvent
	droppedCount uint64
}

// Events returns the channel new events are delivered on.
func (s *Subscriber) Events() <-chan model.ScanEvent { return s.ch }

// DroppedCount returns how many events this subscriber missed because its
// buffer was full when they were published.
func (s *Subscriber) DroppedCount() uint64 { return atomic.LoadUint64(&s.droppedCount) }

// topic holds one scan's (or discovery's) sequence counter, ring buffer of
// recent events and live subscribers.
type topic struct {
	mu          sync.Mutex
	seq         uint64
	ring        []model.ScanEvent
	ringCap     int
	subscribers map[*Subscriber]struct{}
	heartbeat   *time.Ticker
	stop        chan struct{}
	terminal    bool
}

// isTerminalEvent reports whether evt marks the end of a topic's stream: no
// further events follow a scan or discovery reaching one of these states,
// so subscribers can be told the stream is over rather than left hanging.
func isTerminalEvent(t model.EventType) bool {
	switch t {
	case model.EventScanCompleted, model.EventScanFailed, model.EventDiscoveryComplete:
		return true
	default:
		return false
	}
}

// Bus is the registry of all active topics, keyed by scan or discovery ID.
type Bus struct {
	mu               sync.Mutex
	topics           map[string]*topic
	ringCap          int
	subscriberBuffer int
	heartbeatEvery   time.Duration
}

// Config configures a Bus.
type Config struct {
	RingBufferSize      int
	SubscriberBufferSize int
	HeartbeatInterval   time.Duration
}

// DefaultConfig returns the built-in bus sizing.
func DefaultConfig() Config {
	return Config{RingBufferSize: 100, SubscriberBufferSize: 32, HeartbeatInterval: 30 * time.Second}
}

// New creates an empty Bus.
func New(cfg Config) *Bus {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 100
	}
	if cfg.SubscriberBufferSize <= 0 {
		cfg.SubscriberBufferSize = 32
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Bus{
		topics:           make(map[string]*topic),
		ringCap:          cfg.RingBufferSize,
		subscriberBuffer: cfg.SubscriberBufferSize,
		heartbeatEvery:   cfg.HeartbeatInterval,
	}
}

func (b *Bus) getOrCreateTopic(id string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[id]; ok {
		return t
	}

	t := &topic{
		ring:        make([]model.ScanEvent, 0, b.ringCap),
		ringCap:     b.ringCap,
		subscribers: make(map[*Subscriber]struct{}),
		stop:        make(chan struct{}),
	}
	b.topics[id] = t

	t.heartbeat = time.NewTicker(b.heartbeatEvery)
	go t.heartbeatLoop(id)

	return t
}

// heartbeatLoop publishes a heartbeat event on a fixed interval so
// long-lived subscribers (SSE connections, proxies) know the stream is
// still alive. Heartbeats do not consume a sequence number.
func (t *topic) heartbeatLoop(id string) {
	for {
		select {
		case <-t.stop:
			return
		case <-t.heartbeat.C:
			t.deliver(model.ScanEvent{
				Type:      model.EventHeartbeat,
				ScanID:    id,
				Timestamp: time.Now(),
			})
		}
	}
}

func (t *topic) deliver(evt model.ScanEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if evt.Type != model.EventHeartbeat {
		t.seq++
		evt.Seq = t.seq
		t.ring = append(t.ring, evt)
		if len(t.ring) > t.ringCap {
			t.ring = t.ring[len(t.ring)-t.ringCap:]
		}
	}

	for sub := range t.subscribers {
		select {
		case sub.ch <- evt:
		default:
			atomic.AddUint64(&sub.droppedCount, 1)
			log.Debug().Str("scan_id", evt.ScanID).Msg("Dropped event for slow subscriber")
		}
	}

	if isTerminalEvent(evt.Type) {
		t.terminal = true
		for sub := range t.subscribers {
			close(sub.ch)
		}
		t.subscribers = make(map[*Subscriber]struct{})
	}
}

// Publish sends an event to id's topic, creating the topic if needed.
// Publish never blocks: slow subscribers drop events rather than stall
// the orchestrator goroutine that is publishing progress.
func (b *Bus) Publish(id string, eventType model.EventType, data interface{}) {
	t := b.getOrCreateTopic(id)
	t.deliver(model.ScanEvent{
		Type:      eventType,
		ScanID:    id,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// Subscribe attaches a new Subscriber to id's topic and returns it along
// with the events currently held in the ring buffer, so a client that
// connects mid-scan can catch up before live events start arriving. If the
// topic already reached a terminal event, the returned Subscriber's channel
// is pre-closed so the caller sees an immediate end of stream rather than
// hanging on a channel that will never receive anything further.
func (b *Bus) Subscribe(id string) (*Subscriber, []model.ScanEvent) {
	t := b.getOrCreateTopic(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	backlog := make([]model.ScanEvent, len(t.ring))
	copy(backlog, t.ring)

	sub := &Subscriber{ch: make(chan model.ScanEvent, b.subscriberBuffer)}
	if t.terminal {
		close(sub.ch)
		return sub, backlog
	}
	t.subscribers[sub] = struct{}{}

	return sub, backlog
}

// Unsubscribe detaches sub from id's topic.
func (b *Bus) Unsubscribe(id string, sub *Subscriber) {
	b.mu.Lock()
	t, ok := b.topics[id]
	b.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	delete(t.subscribers, sub)
	t.mu.Unlock()
}

// Close stops id's heartbeat loop, removes its topic and closes every
// currently-registered subscriber's channel, so a caller that never
// published a terminal event (e.g. the store's TTL eviction) still ends
// the stream cleanly instead of leaving subscribers blocked forever.
func (b *Bus) Close(id string) {
	b.mu.Lock()
	t, ok := b.topics[id]
	if ok {
		delete(b.topics, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	t.heartbeat.Stop()
	close(t.stop)

	t.mu.Lock()
	for sub := range t.subscribers {
		close(sub.ch)
	}
	t.subscribers = make(map[*Subscriber]struct{})
	t.terminal = true
	t.mu.Unlock()
}
