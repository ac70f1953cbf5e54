package history

import (
	"sync"

	"uiagent/internal/types"
)

// History is the ordered, append-only list of turns for one session.
// Rollback truncates from the end; there is no redo.
type History struct {
	mu    sync.RWMutex
	turns []types.Turn
	// seqs[i] is the append sequence of turns[i]. Sequences are never reused,
	// even after a rollback.
	seqs    []uint64
	lastSeq uint64
}

func New() *History { return &History{} }

// Append adds t as the new current turn and returns its append sequence.
func (h *History) Append(t types.Turn) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSeq++
	h.turns = append(h.turns, t)
	h.seqs = append(h.seqs, h.lastSeq)
	return h.lastSeq
}

// Head returns the current turn with its append sequence, or false when the
// history is empty.
func (h *History) Head() (types.Turn, uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.turns) == 0 {
		return types.Turn{}, 0, false
	}
	return h.turns[len(h.turns)-1], h.seqs[len(h.seqs)-1], true
}

// Current returns the last turn, or false when the history is empty.
func (h *History) Current() (types.Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.turns) == 0 {
		return types.Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// Rollback discards the last turn and returns the new current one. Rolling
// back the only turn empties the history; rolling back an empty history is a
// no-op. Both report false.
func (h *History) Rollback() (types.Turn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) == 0 {
		return types.Turn{}, false
	}
	h.turns[len(h.turns)-1] = types.Turn{}
	h.turns = h.turns[:len(h.turns)-1]
	h.seqs = h.seqs[:len(h.seqs)-1]
	if len(h.turns) == 0 {
		h.turns, h.seqs = nil, nil
		return types.Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns a copy of the history, oldest first.
func (h *History) Turns() []types.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]types.Turn(nil), h.turns...)
}
