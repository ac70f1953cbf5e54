package pipeline

// EventKind names a progress notification emitted during a run.
type EventKind string

const (
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventStageFailed   EventKind = "stage_failed"
	// EventStageDegraded follows a finished stage whose output could not be
	// extracted into its structured shape.
	EventStageDegraded EventKind = "stage_degraded"
)

// Event is one progress notification.
type Event struct {
	Kind   EventKind `json:"kind"`
	Stage  Stage     `json:"stage"`
	TookMS int64     `json:"tookMs,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// RunOption customizes a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent func(Event)
}

// WithEvents delivers progress events synchronously on the running goroutine.
func WithEvents(fn func(Event)) RunOption {
	return func(rc *runConfig) { rc.onEvent = fn }
}

func (rc *runConfig) emit(e Event) {
	if rc.onEvent != nil {
		rc.onEvent(e)
	}
}
