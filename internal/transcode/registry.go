package transcode

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrRegistryClosed is returned when dispatching after shutdown has begun.
var ErrRegistryClosed = errors.New("transcode registry closed")

// Registry tracks live sessions by fingerprint. The dispatcher performs
// lookup, attach, cache probe and insert under the registry mutex so that
// two requests for the same fingerprint can never race into two encoder
// children.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[Fingerprint]*Session
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger.With(slog.String("component", "transcode-registry")),
		sessions: make(map[Fingerprint]*Session),
	}
}

// remove drops a session from the map once it goes terminal. The identity
// check matters: the dispatcher may have already replaced a dying session
// under the same fingerprint, and the old one must not evict its
// successor.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.fingerprint]; ok && cur == s {
		delete(r.sessions, s.fingerprint)
	}
	r.mu.Unlock()
}

// Sessions returns a snapshot of the live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close kills every live session and waits for their pumps to tear down.
// Further dispatches fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
	for _, s := range live {
		<-s.Done()
	}

	if len(live) > 0 {
		r.logger.Info("terminated live sessions", slog.Int("count", len(live)))
	}
}
