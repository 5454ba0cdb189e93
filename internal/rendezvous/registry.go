// Package rendezvous correlates a synchronous HTTP request with a later
// webhook delivery for the same job id. It is the only concurrent
// in-memory structure in the gateway; all other state lives in the job
// store.
package rendezvous

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the value published through a rendezvous once the backend
// job completes. It is immutable once published.
type Result struct {
	URLs     []string
	IPFSURLs []string
}

type entry struct {
	callbackURL string
	done        chan struct{}
	closeOnce   sync.Once

	mu     sync.Mutex
	result *Result
}

func newEntry(callbackURL string) *entry {
	return &entry{
		callbackURL: callbackURL,
		done:        make(chan struct{}),
	}
}

func (e *entry) publish(r Result) {
	e.mu.Lock()
	if e.result == nil {
		e.result = &r
	}
	e.mu.Unlock()
	e.closeOnce.Do(func() { close(e.done) })
}

func (e *entry) snapshot() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return nil
	}
	r := *e.result
	return &r
}

// Registry is a concurrency-safe map from job id to a one-shot rendezvous.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*entry)}
}

// Register creates a rendezvous for id, replacing any existing one. Callers
// treat id collisions as a programming error since ids are freshly minted.
func (r *Registry) Register(id uuid.UUID, callbackURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = newEntry(callbackURL)
}

// Publish fills the slot for id and wakes every current and future waiter.
// It is a no-op if id has no rendezvous (the job may already have been
// pruned). Safe to call more than once; only the first publish sticks.
func (r *Registry) Publish(id uuid.UUID, result Result) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	e.publish(result)
}

// Wait blocks until id's result is published or timeout elapses, whichever
// comes first. It returns (result, true) if a result was observed, and
// (nil, false) on timeout. Spurious wakeups cannot occur: the only way
// the done channel closes is via Publish after the slot is filled.
func (r *Registry) Wait(id uuid.UUID, timeout time.Duration) (*Result, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	if res := e.snapshot(); res != nil {
		return res, true
	}

	select {
	case <-e.done:
		return e.snapshot(), true
	case <-time.After(timeout):
		return nil, false
	}
}

// Snapshot returns the registered callback URL for id without mutating
// anything, or ("", false) if id has no rendezvous.
func (r *Registry) Snapshot(id uuid.UUID) (string, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	return e.callbackURL, true
}

// Drop removes the rendezvous for id. Any goroutine currently blocked in
// Wait already holds a reference to the entry and will still observe
// whatever was published before Drop ran.
func (r *Registry) Drop(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}
