package solving

import (
	"sync"

	"github.com/google/uuid"
)

// Session describes one solver session: the native solver resource backing a single symbolic call execution. A
// session is owned by the goroutine that acquired it for the session's whole lifetime and must be released
// unconditionally on every exit path before control returns to the caller. Sessions never cross goroutine
// boundaries.
type Session struct {
	// id uniquely identifies the session, so solver activity is traceable in logs.
	id uuid.UUID

	// onRelease is an optional hook invoked exactly once when the session is released, used by collaborator
	// implementations to free native solver state.
	onRelease func()

	// releaseOnce guards onRelease so that double-release is harmless.
	releaseOnce sync.Once
}

// NewSession creates a new solver session with a fresh identity. The optional onRelease hook is invoked exactly
// once when the session is released.
func NewSession(onRelease func()) *Session {
	return &Session{
		id:        uuid.New(),
		onRelease: onRelease,
	}
}

// ID returns the session's unique identity as a string.
func (s *Session) ID() string {
	return s.id.String()
}

// Release frees the session's underlying solver resources. Releasing an already-released session is a no-op, so
// callers can safely `defer session.Release()` while also releasing early on some paths.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}
