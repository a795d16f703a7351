package types

import (
	"context"
	"encoding/json"
	"time"
)

type SyncItemState string

const (
	SyncStatePending SyncItemState = "pending"
	SyncStateDead    SyncItemState = "dead"
)

// SyncQueueItem is one deferred mutation captured while the terminal was
// offline or after a failed network write.
type SyncQueueItem struct {
	ID          string          `json:"id"`
	Operation   string          `json:"operation"`
	Path        string          `json:"path"`
	TargetKey   string          `json:"target_key"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	State       SyncItemState   `json:"state"`
	LastError   string          `json:"last_error,omitempty"`
}

// SyncExecutor performs the actual network replay of one queued item.
type SyncExecutor func(ctx context.Context, item *SyncQueueItem) error

type SyncQueue interface {
	LifecycleManager
	Enqueue(item *SyncQueueItem) error
	Drain(ctx context.Context) error
	Len() int
	DeadLetters() []*SyncQueueItem
	Requeue(id string) error
}
