package session

import (
	"sync"
	"time"

	"uiagent/internal/history"
	"uiagent/internal/pipeline"
)

// EventKind names a session notification.
type EventKind string

const (
	EventTurnAppended   EventKind = "turn_appended"
	EventRolledBack     EventKind = "rolled_back"
	EventPipelineFailed EventKind = "pipeline_failed"
)

// Event is a session notification. Stage progress reuses the pipeline kinds.
type Event struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	TookMS  int64  `json:"tookMs,omitempty"`
	Error   string `json:"error,omitempty"`
	Turns   int    `json:"turns"`
	Version int64  `json:"version,omitempty"`
}

func stageEvent(e pipeline.Event, turns int) Event {
	return Event{Kind: string(e.Kind), Stage: string(e.Stage), TookMS: e.TookMS, Error: e.Error, Turns: turns}
}

// Session owns one conversation history. Actions on it are serialized by
// the Controller.
type Session struct {
	ID      string
	Created time.Time
	History *history.History

	busy sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, Created: now, History: history.New(), subs: map[int]chan Event{}}
}

// Subscribe returns a channel of events and a cancel func. Slow subscribers
// miss events rather than stall the pipeline.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.subMu.Unlock()
		})
	}
}

func (s *Session) publish(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// closeSubscribers ends every subscription, used on eviction.
func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
