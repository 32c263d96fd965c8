// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

import (
	"sync/atomic"

	"github.com/tracingkit/registry/internal/extensions"
)

// dataEntry is the pooled record for one span: a borrowed metadata
// pointer, an optional owned reference on a parent, an atomic
// reference count, the opaque per-layer filter mask, and the
// extension typemap layers attach auxiliary state through.
//
// dataEntry lives inside internal/pool.Pool[dataEntry]; its ext field
// is allocated exactly once per slot (on first checkout) and reused
// in place thereafter via clearDataEntry, so repeated span churn on an
// already-grown slot costs no allocation.
type dataEntry struct {
	meta      *Metadata
	parent    ID
	hasParent bool
	refCount  atomic.Uint64
	filterMap FilterMap
	ext       *extensions.Map
}

// clearDataEntry resets a slot for reuse: drops the metadata and
// parent references, clears the extension map in place (retaining its
// backing allocation), and resets the filter mask to default. Never
// touches ext's allocation itself.
func clearDataEntry(e *dataEntry) {
	e.meta = nil
	e.parent = NoID
	e.hasParent = false
	e.refCount.Store(0)
	e.filterMap = 0
	if e.ext != nil {
		e.ext.Clear()
	}
}
