package services

import (
	"strings"
	"sync"
)

// RequestRegistry tracks the latest freshness token per route pair. A request
// carrying an older token than the registered one is superseded and should
// abort at its next checkpoint. The registry is the only mutable state shared
// across concurrent forecast requests.
type RequestRegistry struct {
	mu     sync.Mutex
	latest map[string]string
}

// NewRequestRegistry creates an empty registry.
func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{latest: make(map[string]string)}
}

// CancelToken is polled by the pipeline at checkpoints. Cancellation is
// cooperative: the pipeline finishes its current step before checking.
type CancelToken struct {
	registry *RequestRegistry
	key      string
	token    string
}

// Register records token as the newest request for the route pair and
// returns a cancel token for that request. Registering a new token for the
// same pair supersedes every earlier one. An empty token yields a token that
// never cancels, for callers that do not participate in supersession.
func (r *RequestRegistry) Register(origin, destination, token string) *CancelToken {
	if token == "" {
		return &CancelToken{}
	}

	key := pairKey(origin, destination)
	r.mu.Lock()
	r.latest[key] = token
	r.mu.Unlock()

	return &CancelToken{registry: r, key: key, token: token}
}

// Release forgets the pair's registration if this request still owns it, so
// the map does not grow without bound.
func (r *RequestRegistry) release(t *CancelToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest[t.key] == t.token {
		delete(r.latest, t.key)
	}
}

// Superseded reports whether a newer token has been registered for the same
// route pair since this token was issued.
func (t *CancelToken) Superseded() bool {
	if t.registry == nil {
		return false
	}
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	return t.registry.latest[t.key] != t.token
}

// Release removes this request's registration unless it has already been
// superseded by a newer one.
func (t *CancelToken) Release() {
	if t.registry == nil {
		return
	}
	t.registry.release(t)
}

func pairKey(origin, destination string) string {
	return strings.ToUpper(origin) + ":" + strings.ToUpper(destination)
}
