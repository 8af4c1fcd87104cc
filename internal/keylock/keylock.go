// Package keylock provides per-key mutual exclusion. Entries are reference
// counted and removed once no goroutine holds or waits for the key, so the
// map only grows with the number of keys in flight.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker serializes work keyed by an arbitrary string.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Locker.
func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until key is held by the caller and returns the release func.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type heldKey struct {
	locker *Locker
	key    string
}

// WithHeld marks key as held by the current unit of work.
func WithHeld(ctx context.Context, l *Locker, key string) context.Context {
	return context.WithValue(ctx, heldKey{locker: l, key: key}, true)
}

// Held reports whether ctx already holds key on l. Nested units use it to
// avoid re-acquiring a lock they own.
func Held(ctx context.Context, l *Locker, key string) bool {
	held, _ := ctx.Value(heldKey{locker: l, key: key}).(bool)
	return held
}
