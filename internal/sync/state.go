package sync

import (
	"sync"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// StateTracker holds the single process-wide SyncState. Only the engine
// mutates it; any number of observers read snapshots or subscribe to
// updates.
type StateTracker struct {
	mu    sync.RWMutex
	state domain.SyncState
	subs  []chan domain.SyncState
}

func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// Snapshot returns a copy of the current state.
func (t *StateTracker) Snapshot() domain.SyncState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Subscribe returns a channel receiving every published update. The
// channel is buffered; a slow subscriber loses intermediate updates
// rather than blocking the engine.
func (t *StateTracker) Subscribe() <-chan domain.SyncState {
	ch := make(chan domain.SyncState, 16)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

// publish applies the mutation and fans the new state out to
// subscribers without blocking.
func (t *StateTracker) publish(mutate func(*domain.SyncState)) {
	t.mu.Lock()
	mutate(&t.state)
	state := t.state
	subs := t.subs
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- state:
		default:
		}
	}
}
