package types

import (
	"encoding/json"
	"time"
)

const (
	UpdateMenu     = "menu_update"
	UpdateOrder    = "order_update"
	UpdateTable    = "table_update"
	UpdateSettings = "settings_update"
)

// UpdateMessage is one server-pushed delta. Timestamp is optional; when the
// server omits it the receive time is used for the write guard.
type UpdateMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

type RealtimeChannel interface {
	LifecycleManager
	TriggerReconnect()
	IsConnected() bool
}

type DeltaApplier interface {
	Apply(msg *UpdateMessage) error
}
