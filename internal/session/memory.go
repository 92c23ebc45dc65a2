package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory. It is what an
// embedding application uses when it manages credentials itself.
type MemoryStore struct {
	mu       sync.Mutex
	sess     Session
	err      error
	watchers []chan struct{}
}

// NewMemoryStore creates a store holding s.
func NewMemoryStore(s Session) *MemoryStore {
	return &MemoryStore{sess: s}
}

// Load returns the stored session, or the error set with SetError.
func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Session{}, m.err
	}
	return m.sess, nil
}

// Save replaces the session and notifies watchers.
func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	m.sess = s
	m.mu.Unlock()
	m.notify()
	return nil
}

// Clear removes the session and notifies watchers.
func (m *MemoryStore) Clear() error {
	return m.Save(Session{})
}

// SetError makes subsequent Loads fail with err; nil restores normal reads.
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Watch returns a channel signalled after every Save or Clear.
func (m *MemoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, w := range m.watchers {
			if w == ch {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				break
			}
		}
	}()

	return ch, nil
}

func (m *MemoryStore) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.watchers {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}
