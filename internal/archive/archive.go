package archive

import (
	"context"
	"time"

	"uiagent/internal/types"
)

// Kind names a history mutation.
type Kind string

const (
	KindAppend   Kind = "append"
	KindRollback Kind = "rollback"
)

// Event is one recorded history mutation. The archive is an audit trail for
// inspection; sessions never restore from it.
type Event struct {
	SessionID string `json:"sessionId"`
	Seq       int64  `json:"seq"`
	Kind      Kind   `json:"kind"`
	// Turns is the history length after the mutation.
	Turns int `json:"turns"`
	// Turn is the appended turn, or the new current turn after a rollback.
	Turn      *types.Turn `json:"turn,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Archive records and lists history mutations.
type Archive interface {
	// Record stores e, assigning Seq and CreatedAt.
	Record(ctx context.Context, e Event) (Event, error)
	// Events lists a session's events in Seq order.
	Events(ctx context.Context, sessionID string) ([]Event, error)
	Close() error
}
