package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyneda/sukyan/pkg/model"
)

func testBus() *Bus {
	return New(Config{RingBufferSize: 4, SubscriberBufferSize: 2, HeartbeatInterval: time.Hour})
}

func TestPublish_AssignsMonotonicSequenceStartingAtOne(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-1")
	sub, backlog := bus.Subscribe("scan-1")
	defer bus.Unsubscribe("scan-1", sub)
	assert.Empty(t, backlog)

	bus.Publish("scan-1", model.EventScanStateChanged, nil)
	bus.Publish("scan-1", model.EventScanCompleted, nil)

	evt1 := <-sub.Events()
	evt2 := <-sub.Events()
	assert.Equal(t, uint64(1), evt1.Seq)
	assert.Equal(t, uint64(2), evt2.Seq)
}

func TestSubscribe_ReplaysRingBufferToLateJoiner(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-2")

	bus.Publish("scan-2", model.EventScanProgress, nil)
	bus.Publish("scan-2", model.EventScanProgress, nil)

	sub, backlog := bus.Subscribe("scan-2")
	defer bus.Unsubscribe("scan-2", sub)
	require.Len(t, backlog, 2)
	assert.Equal(t, uint64(1), backlog[0].Seq)
	assert.Equal(t, uint64(2), backlog[1].Seq)
}

func TestRingBuffer_IsBoundedToConfiguredCapacity(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-3")

	for i := 0; i < 10; i++ {
		bus.Publish("scan-3", model.EventScanProgress, nil)
	}

	_, backlog := bus.Subscribe("scan-3")
	assert.Len(t, backlog, 4)
	assert.Equal(t, uint64(7), backlog[0].Seq)
	assert.Equal(t, uint64(10), backlog[3].Seq)
}

func TestPublish_SlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-4")

	slow, _ := bus.Subscribe("scan-4")
	defer bus.Unsubscribe("scan-4", slow)

	for i := 0; i < 10; i++ {
		bus.Publish("scan-4", model.EventScanProgress, nil)
	}

	assert.Greater(t, slow.DroppedCount(), uint64(0))
}

func TestHeartbeat_DoesNotConsumeSequenceNumbers(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-5")

	bus.Publish("scan-5", model.EventScanProgress, nil)

	sub, _ := bus.Subscribe("scan-5")
	defer bus.Unsubscribe("scan-5", sub)

	bus.Publish("scan-5", model.EventScanProgress, nil)
	evt := <-sub.Events()
	assert.Equal(t, uint64(2), evt.Seq)
}

func TestPublish_TerminalEventClosesExistingSubscribers(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-7")

	sub, _ := bus.Subscribe("scan-7")
	bus.Publish("scan-7", model.EventScanCompleted, nil)

	_, open := <-sub.Events()
	assert.False(t, open, "expected subscriber channel to be closed after a terminal event")
}

func TestSubscribe_AfterTerminalEventReturnsAlreadyClosedChannel(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-8")

	bus.Publish("scan-8", model.EventScanFailed, nil)

	sub, _ := bus.Subscribe("scan-8")
	_, open := <-sub.Events()
	assert.False(t, open, "expected a late subscriber on a terminal topic to see a closed channel")
}

func TestClose_ClosesAnyRemainingSubscribersEvenWithoutTerminalEvent(t *testing.T) {
	bus := testBus()

	sub, _ := bus.Subscribe("scan-9")
	bus.Close("scan-9")

	_, open := <-sub.Events()
	assert.False(t, open, "expected Close to close subscriber channels left open by TTL eviction")
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := testBus()
	defer bus.Close("scan-6")

	sub, _ := bus.Subscribe("scan-6")
	bus.Unsubscribe("scan-6", sub)

	bus.Publish("scan-6", model.EventScanProgress, nil)

	select {
	case <-sub.Events():
		t.Fatal("expected no event after unsubscribe")
	default:
	}
}
