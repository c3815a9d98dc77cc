package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/antoniostano/guides/internal/memory"
	"github.com/antoniostano/guides/internal/mode"
)

// ErrUnknownMode is returned when a selection names a mode that does not exist.
var ErrUnknownMode = errors.New("unknown mode")

// Tracker resolves and updates the active answer mode per conversation
// identity. It keeps an in-process cache in front of the memory store so a
// slow or disabled store never blocks routing.
type Tracker struct {
	mu    sync.RWMutex
	modes map[string]mode.Mode
	store memory.Store
}

func NewTracker(store memory.Store) *Tracker {
	return &Tracker{
		modes: make(map[string]mode.Mode),
		store: store,
	}
}

// ResolveMode returns the active mode for identity, or mode.None when the
// user has not picked one yet. Misses fall through to the store; a store
// error degrades to mode.None rather than failing the event.
func (t *Tracker) ResolveMode(ctx context.Context, identity string) mode.Mode {
	t.mu.RLock()
	m, ok := t.modes[identity]
	t.mu.RUnlock()
	if ok {
		return m
	}

	raw, err := t.store.GetMode(ctx, identity)
	if err != nil {
		log.Printf("session: mode lookup for %s failed, treating as unset: %v", identity, err)
		return mode.None
	}

	m, ok = mode.Parse(raw)
	if !ok {
		return mode.None
	}

	t.mu.Lock()
	t.modes[identity] = m
	t.mu.Unlock()
	return m
}

// SelectMode switches identity to requested. Switching away from a different
// mode (including from no mode at all) clears the stored turn history so the
// new category starts from a clean context. The returned bool reports whether
// history was cleared.
func (t *Tracker) SelectMode(ctx context.Context, identity string, requested mode.Mode) (bool, error) {
	if !requested.Valid() {
		return false, ErrUnknownMode
	}

	previous := t.ResolveMode(ctx, identity)

	t.mu.Lock()
	t.modes[identity] = requested
	t.mu.Unlock()

	if err := t.store.SetMode(ctx, identity, string(requested)); err != nil {
		log.Printf("session: persisting mode for %s failed: %v", identity, err)
	}

	if previous == requested {
		return false, nil
	}

	if err := t.store.ClearHistory(ctx, identity); err != nil {
		log.Printf("session: clearing history for %s failed: %v", identity, err)
	}
	return true, nil
}
