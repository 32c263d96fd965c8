// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

import (
	"github.com/tracingkit/registry/internal/extensions"
	"github.com/tracingkit/registry/internal/pool"
)

// SpanData is a shared-immutable read view into a live span, borrowed
// from the pool for the duration of its use. It pins the underlying
// slot — while a SpanData is held, the slot cannot be reused even if
// the span has already logically closed — so callers must call
// Release promptly and must never retain a SpanData past the call
// that produced it. This is documented discipline, not compiler
// enforced: Go has no borrow checker, and the teacher's own pooled
// span handles rely on the same kind of documented lifetime contract.
type SpanData struct {
	id  ID
	ref pool.Ref[dataEntry]
}

// ID returns the span's identifier.
func (s SpanData) ID() ID { return s.id }

// Metadata returns the span's static descriptor.
func (s SpanData) Metadata() *Metadata { return s.ref.Value().meta }

// Parent returns the parent span's ID, if any.
func (s SpanData) Parent() (ID, bool) {
	e := s.ref.Value()
	return e.parent, e.hasParent
}

// Extensions acquires a read guard over the span's extension typemap.
// The caller must call Unlock on the returned guard.
func (s SpanData) Extensions() *extensions.ReadGuard {
	return s.ref.Value().ext.RLock()
}

// ExtensionsMut acquires a write guard over the span's extension
// typemap. The caller must call Unlock on the returned guard.
func (s SpanData) ExtensionsMut() *extensions.WriteGuard {
	return s.ref.Value().ext.Lock()
}

// IsEnabledFor reports whether the given filter's bit is set in the
// span's opaque filter mask.
func (s SpanData) IsEnabledFor(f FilterID) bool {
	return s.ref.Value().filterMap&(1<<uint(f)) != 0
}

// Release relinquishes the read-reference, allowing the slot to be
// reused once the registry has also logically released it.
func (s SpanData) Release() {
	s.ref.Release()
}
