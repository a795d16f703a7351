package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/logger"
	"github.com/tavolo/posdata/metrics"
	"github.com/tavolo/posdata/types"
)

func newTestNotifier() *Notifier {
	return NewNotifier(logger.NewZapWrapper(zap.NewNop()), metrics.NewNoopMetrics())
}

func TestNotifyDelivers(t *testing.T) {
	n := newTestNotifier()
	ch := n.Subscribe("ui")

	n.Notify(types.EventDataUpdated, map[string]interface{}{"key": "/api/menu"})

	select {
	case event := <-ch:
		assert.Equal(t, types.EventDataUpdated, event.Type)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNotifyFanOut(t *testing.T) {
	n := newTestNotifier()
	a := n.Subscribe("a")
	b := n.Subscribe("b")

	n.Notify(types.EventConnectivity, map[string]interface{}{"online": false})

	for _, ch := range []<-chan *types.ClientEvent{a, b} {
		select {
		case event := <-ch:
			assert.Equal(t, types.EventConnectivity, event.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered to all consumers")
		}
	}
}

func TestNotifySkipsFullConsumer(t *testing.T) {
	n := newTestNotifier()
	slow := n.Subscribe("slow")
	fast := n.Subscribe("fast")

	// Fill the slow consumer's buffer, then overflow it.
	for i := 0; i < consumerBuffer+5; i++ {
		n.Notify(types.EventDataUpdated, i)
	}

	assert.Len(t, slow, consumerBuffer)
	assert.Len(t, fast, consumerBuffer)

	// The notifier must stay responsive for a consumer that drains.
	<-fast
	n.Notify(types.EventDataUpdated, "after")
	assert.Len(t, fast, consumerBuffer)
}

func TestResubscribeReplacesConsumer(t *testing.T) {
	n := newTestNotifier()
	old := n.Subscribe("ui")
	fresh := n.Subscribe("ui")

	_, open := <-old
	assert.False(t, open, "previous channel should be closed")

	n.Notify(types.EventSyncFailed, nil)

	select {
	case event := <-fresh:
		assert.Equal(t, types.EventSyncFailed, event.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered to replacement consumer")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	n := newTestNotifier()
	ch := n.Subscribe("ui")

	n.Unsubscribe("ui")

	_, open := <-ch
	require.False(t, open)

	// Notify after unsubscribe must not panic.
	n.Notify(types.EventDataUpdated, nil)
}
