package subscription

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry holds listener callbacks registered by independent consumers.
//
// Go funcs are not comparable, so every Subscribe call creates its own
// entry: registering the same function twice delivers each event to it
// twice, and each entry is removed only by its own unsubscribe func.
type Registry[T any] struct {
	name string

	mu      sync.RWMutex
	entries map[uuid.UUID]func(T)
}

// New creates an empty registry. The name is used in log output.
func New[T any](name string) *Registry[T] {
	return &Registry[T]{
		name:    name,
		entries: make(map[uuid.UUID]func(T)),
	}
}

// Subscribe registers fn and returns the func that removes it. The
// returned func is safe to call more than once.
func (r *Registry[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	id := uuid.New()

	r.mu.Lock()
	r.entries[id] = fn
	n := len(r.entries)
	r.mu.Unlock()

	slog.Debug("subscriber added", "registry", r.name, "subscriber_id", id, "count", n)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.entries, id)
			n := len(r.entries)
			r.mu.Unlock()

			slog.Debug("subscriber removed", "registry", r.name, "subscriber_id", id, "count", n)
		})
	}
}

// Deliver calls every subscriber registered at the moment of the call,
// synchronously and in no particular order. A subscriber that panics is
// logged and skipped; the others still receive v. It returns the number
// of subscribers that failed.
func (r *Registry[T]) Deliver(v T) int {
	r.mu.RLock()
	snapshot := make(map[uuid.UUID]func(T), len(r.entries))
	for id, fn := range r.entries {
		snapshot[id] = fn
	}
	r.mu.RUnlock()

	failed := 0
	for id, fn := range snapshot {
		if err := invoke(fn, v); err != nil {
			failed++
			slog.Error("subscriber failed",
				"registry", r.name,
				"subscriber_id", id,
				"error", err)
		}
	}
	return failed
}

// Len returns the number of registered subscribers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every subscriber. Unsubscribe funcs handed out earlier
// become no-ops.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	clear(r.entries)
	r.mu.Unlock()
}

func invoke[T any](fn func(T), v T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	fn(v)
	return nil
}
