// Package registry tracks cancellation handles for in-flight generations.
//
// The registry is scoped to one process. Cross-instance cancellation falls
// back to the durable abort flag in the store; this map is the fast path.
package registry

import (
	"context"
	"sync"

	"github.com/driftchat/backend/pkg/metrics"
)

// Handle is the cancellation handle of one in-flight generation.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the generation's context. It is cancelled when Cancel is
// called for the owning request id.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Registry maps request ids (target message ids) to cancellation handles.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register creates and stores a handle for requestID, derived from parent.
// A pre-existing handle for the same id is overwritten; callers never
// register twice for an in-flight id.
func (r *Registry) Register(parent context.Context, requestID string) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{ctx: ctx, cancel: cancel}

	r.mu.Lock()
	r.handles[requestID] = h
	r.mu.Unlock()

	metrics.GenerationsInFlight.Inc()
	return h
}

// Cancel signals the handle for requestID. Cancelling an unknown or
// already-released id is a no-op.
func (r *Registry) Cancel(requestID string) bool {
	r.mu.Lock()
	h, ok := r.handles[requestID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Release removes the handle for requestID and frees its context. Must be
// called exactly once per registered id, on every exit path.
func (r *Registry) Release(requestID string) {
	r.mu.Lock()
	h, ok := r.handles[requestID]
	delete(r.handles, requestID)
	r.mu.Unlock()

	if ok {
		h.cancel()
		metrics.GenerationsInFlight.Dec()
	}
}

// Len reports the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
