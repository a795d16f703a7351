package connectivity

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

// Tracker holds the process-wide online flag. Platform connectivity events
// feed SetOnline; components register transition listeners instead of
// polling. Going offline never clears caches, it only suspends network use.
type Tracker struct {
	online    atomic.Bool
	mu        sync.Mutex
	listeners []func(online bool)
	logger    types.Logger
	notifier  types.Notifier
}

func NewTracker(logger types.Logger, notifier types.Notifier) *Tracker {
	t := &Tracker{
		logger:   logger,
		notifier: notifier,
	}

	// Assume online until the platform says otherwise.
	t.online.Store(true)

	return t
}

func (t *Tracker) IsOnline() bool {
	return t.online.Load()
}

// OnTransition registers a listener fired on every actual state change.
func (t *Tracker) OnTransition(listener func(online bool)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, listener)
	t.mu.Unlock()
}

func (t *Tracker) SetOnline(online bool) {
	if t.online.Swap(online) == online {
		return
	}

	t.logger.Info("Connectivity changed", zap.Bool("online", online))

	if t.notifier != nil {
		t.notifier.Notify(types.EventConnectivity, map[string]interface{}{
			"online": online,
			"at":     time.Now(),
		})
	}

	t.mu.Lock()
	listeners := make([]func(bool), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, listener := range listeners {
		go listener(online)
	}
}
