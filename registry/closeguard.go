// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

// CloseGuard is a stack-scoped token enforcing the deferred-close
// protocol: reclaiming a span's slot the instant its reference count
// hits zero would leave any observer still inspecting that span via
// SpanData holding a dangling view. Each nested observer frame that
// takes part in closing a span obtains its own guard via
// Registry.BeginClose and calls Close when it returns — idiomatically
// via `defer guard.Close()`, standing in for the scoped destructor
// the protocol is specified against.
//
// The closing flag and the depth counter it is checked against live on
// the calling goroutine's shared state rather than on the guard
// itself: in a multi-layer observer stack, the terminal (innermost)
// frame is the one that learns the span truly reached zero references
// and calls SetClosing, but it is the outermost frame — the first
// BeginClose call, the last to return — whose Close sees the depth
// counter return to zero and performs the actual reclamation. Sharing
// the flag across the nested guards for one close operation is what
// lets an arbitrary number of layers each get their own uncontended
// close frame while only one reclamation ever happens.
type CloseGuard struct {
	registry *Registry
	id       ID
	done     bool
}

// BeginClose starts a new close frame for id on the calling goroutine,
// incrementing its close depth.
func (r *Registry) BeginClose(id ID) *CloseGuard {
	st := currentGoroutineState()
	st.closeDepth++
	return &CloseGuard{registry: r, id: id}
}

// SetClosing marks that the registry itself — not merely an
// intermediate observer frame — considers this span fully closed.
// Only the terminal step of a close chain should call this.
func (g *CloseGuard) SetClosing() {
	currentGoroutineState().closing = true
}

// Close ends this close frame. If this was the outermost frame for the
// current close operation and SetClosing was called by any frame
// within it, the span's slot is reclaimed. Safe to call more than
// once; only the first call has effect.
func (g *CloseGuard) Close() {
	if g.done {
		return
	}
	g.done = true

	st := currentGoroutineState()
	st.closeDepth--
	outermost := st.closeDepth == 0
	closing := st.closing
	if outermost {
		// Reset for the next, unrelated close operation on this goroutine.
		st.closing = false
	}
	if outermost && closing {
		g.registry.reclaim(g.id)
	}
}
