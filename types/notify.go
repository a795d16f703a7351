package types

import "time"

const (
	EventDataUpdated    = "dataUpdated"
	EventRealTimeUpdate = "realTimeUpdate"
	EventSyncFailed     = "syncFailed"
	EventConnectivity   = "connectivity"
)

type ClientEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier fans cache-state changes out to consumer contexts. Delivery is
// best-effort; a consumer that cannot accept the event is skipped.
type Notifier interface {
	Subscribe(id string) <-chan *ClientEvent
	Unsubscribe(id string)
	Notify(eventType string, data interface{})
}
