package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

const consumerBuffer = 16

// Notifier broadcasts cache-state changes to consumer contexts (UI surfaces,
// the desktop shell). Delivery is fire-and-forget: a consumer whose buffer
// is full misses the event rather than blocking the data layer.
type Notifier struct {
	mu        sync.RWMutex
	consumers map[string]chan *types.ClientEvent
	logger    types.Logger
	dropped   types.Counter
}

func NewNotifier(logger types.Logger, metrics types.MetricsManager) *Notifier {
	return &Notifier{
		consumers: make(map[string]chan *types.ClientEvent),
		logger:    logger,
		dropped:   metrics.Counter("notifier_dropped_events_total", nil),
	}
}

// Subscribe registers a consumer context. Subscribing again under the same
// id replaces the previous registration.
func (n *Notifier) Subscribe(id string) <-chan *types.ClientEvent {
	ch := make(chan *types.ClientEvent, consumerBuffer)

	n.mu.Lock()
	if old, exists := n.consumers[id]; exists {
		close(old)
	}
	n.consumers[id] = ch
	n.mu.Unlock()

	return ch
}

func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	if ch, exists := n.consumers[id]; exists {
		close(ch)
		delete(n.consumers, id)
	}
	n.mu.Unlock()
}

func (n *Notifier) Notify(eventType string, data interface{}) {
	event := &types.ClientEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for id, ch := range n.consumers {
		select {
		case ch <- event:
		default:
			n.dropped.Inc()
			n.logger.Debug("Consumer buffer full, event skipped",
				zap.String("consumer", id),
				zap.String("event", eventType))
		}
	}
}
