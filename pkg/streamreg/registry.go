// Package streamreg tracks the one cancellable stream each in-flight
// job owns, enabling cooperative cancellation with a distinguishing
// reason (expired vs restarted).
//
// The registry holds non-owning references: dropping an entry releases
// an I/O handle, never job data. It is constructed once at process
// start and passed explicitly to anything that registers or cancels
// streams.
package streamreg

import (
	"context"
	"sync"
)

// Handle is the cancellable context a stage runs its long-lived read
// or write loop under. The cancellation cause carries the reason
// (job.ErrExpired, job.ErrRestarted, or a plain context error) and is
// observable via context.Cause.
type Handle struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Context returns the context loops must check at iteration boundaries
// and pass into every blocking call.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Registry maps job ids to their in-flight stream handle.
// Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*Handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{streams: make(map[string]*Handle)}
}

// Register opens a handle for jobID derived from parent and records it.
// A job owns at most one stream: registering over a live entry destroys
// the previous one first (a stage should not leak its predecessor).
func (r *Registry) Register(parent context.Context, jobID string) *Handle {
	ctx, cancel := context.WithCancelCause(parent)
	h := &Handle{ctx: ctx, cancel: cancel}

	r.mu.Lock()
	prev := r.streams[jobID]
	r.streams[jobID] = h
	r.mu.Unlock()

	if prev != nil {
		prev.cancel(context.Canceled)
	}
	return h
}

// Deregister removes the entry for jobID if it is still h. Called by
// the stage that registered the stream once its loop completes.
func (r *Registry) Deregister(jobID string, h *Handle) {
	r.mu.Lock()
	if r.streams[jobID] == h {
		delete(r.streams, jobID)
	}
	r.mu.Unlock()
	h.cancel(context.Canceled)
}

// Destroy cancels the stream owned by jobID with the given reason and
// removes the entry. Destroying a job with no registered stream is a
// no-op, which keeps cleanup idempotent.
func (r *Registry) Destroy(jobID string, reason error) {
	r.mu.Lock()
	h := r.streams[jobID]
	delete(r.streams, jobID)
	r.mu.Unlock()

	if h != nil {
		h.cancel(reason)
	}
}

// Active reports whether jobID currently owns a registered stream.
func (r *Registry) Active(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[jobID] != nil
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
