package session

import "context"

// Session is the credential state owned by whoever performs login and
// logout. The sync layer only reads it.
type Session struct {
	Token         string `yaml:"token"`
	Authenticated bool   `yaml:"authenticated"`
}

// Present reports whether the session can open a realtime connection.
func (s Session) Present() bool {
	return s.Token != "" && s.Authenticated
}

// Store reads the current session.
type Store interface {
	Load() (Session, error)
}

// Writer is implemented by stores the CLI can log in and out of.
type Writer interface {
	Save(s Session) error
	Clear() error
}

// Watcher is implemented by stores that can signal changes as they
// happen, in addition to being polled.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// TokenFunc adapts a Store into a func returning the current token, or
// "" when no session is present or the store cannot be read.
func TokenFunc(s Store) func() string {
	return func() string {
		sess, err := s.Load()
		if err != nil || !sess.Present() {
			return ""
		}
		return sess.Token
	}
}
