// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

// Package registry implements the Span Registry: a process-wide,
// concurrent store of structured tracing spans. It owns the slot pool
// and per-goroutine span stacks and implements new/enter/exit/clone/
// try-close; the reference-counting and deferred-close protocol live
// here. Concrete layers, the tracing ABI, and diagnostic consumers are
// external collaborators, consumed only through the Subscriber and
// LookupSpan interfaces.
package registry

import (
	"sync/atomic"

	"github.com/tracingkit/registry/internal/diag"
	"github.com/tracingkit/registry/internal/extensions"
	"github.com/tracingkit/registry/internal/log"
	"github.com/tracingkit/registry/internal/pool"
)

// Registry is a shared, reusable store for spans: a lock-free sharded
// pool of Data Entries, addressable by dense integer IDs, with a
// deferred-close protocol letting every layer in an observer stack
// inspect a span after it is logically closed but before its slot is
// reclaimed.
type Registry struct {
	tag  diag.InstanceTag
	pool *pool.Pool[dataEntry]

	filterCounter atomic.Uint64
	liveSpans     atomic.Int64
	openSpans     atomic.Int64
	enteredSpans  atomic.Int64

	// sub, when set via SetSubscriber, is the dispatcher cascading
	// closes are routed through instead of the registry's own TryClose,
	// so an embedding layer stack observes parent closes the same way
	// it observes any other close.
	sub atomic.Pointer[Subscriber]
}

// Option configures a Registry at construction time.
type Option func(*config)

type config struct {
	shardCount int
	capacity   int
}

// WithShardCount overrides the slot pool's default shard count.
func WithShardCount(n int) Option {
	return func(c *config) { c.shardCount = n }
}

// WithCapacity bounds the total number of spans the registry will
// ever allocate concurrently. Zero (the default) means unbounded.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	poolOpts := []pool.Option[dataEntry]{pool.WithClear(clearDataEntry)}
	if cfg.shardCount > 0 {
		poolOpts = append(poolOpts, pool.WithShardCount[dataEntry](cfg.shardCount))
	}
	if cfg.capacity > 0 {
		poolOpts = append(poolOpts, pool.WithCapacity[dataEntry](cfg.capacity))
	}

	return &Registry{
		tag:  diag.NewInstanceTag(),
		pool: pool.New(poolOpts...),
	}
}

// SetSubscriber installs the dispatcher used to cascade parent closes
// and the closes enter/exit trigger. If never called, the registry
// cascades against itself, which is correct for a Registry used
// standalone with no layers wrapping it.
func (r *Registry) SetSubscriber(s Subscriber) {
	r.sub.Store(&s)
}

func (r *Registry) activeSubscriber() Subscriber {
	p := r.sub.Load()
	if p == nil {
		return r
	}
	return *p
}

// LiveSpans, OpenSpans and EnteredSpans are best-effort introspection
// counters. They are never consulted for correctness.
func (r *Registry) LiveSpans() int64    { return r.liveSpans.Load() }
func (r *Registry) OpenSpans() int64    { return r.openSpans.Load() }
func (r *Registry) EnteredSpans() int64 { return r.enteredSpans.Load() }

// RegisterCallsite reports "always" unless per-layer filters have
// been registered, in which case it reports "sometimes" — the actual
// per-span consultation is the filter context's concern, external to
// this core (spec.md §1 Non-goals).
func (r *Registry) RegisterCallsite(meta *Metadata) Interest {
	if r.HasPerLayerFilters() {
		return InterestSometimes
	}
	return InterestAlways
}

// Enabled is always true at the core; per-layer filtering of
// individual spans happens through SpanData.IsEnabledFor.
func (r *Registry) Enabled(meta *Metadata) bool { return true }

// NewSpan checks out a slot, resolves and clones the parent reference
// per attrs.ParentKind, and returns the derived ID.
func (r *Registry) NewSpan(attrs Attrs) (id ID) {
	guarded(func() {
		var parent ID
		hasParent := false

		switch attrs.ParentKind {
		case ParentRoot:
			// no parent
		case ParentExplicit:
			parent = r.CloneSpan(attrs.Parent)
			hasParent = true
		default: // ParentContextual
			if cur, ok := r.CurrentSpan(); ok {
				parent = r.CloneSpan(cur)
				hasParent = true
			}
		}

		key, ok := r.pool.Checkout(func(e *dataEntry) {
			if e.ext == nil {
				e.ext = extensions.New()
			}
			e.meta = attrs.Meta
			e.parent = parent
			e.hasParent = hasParent
			e.filterMap = attrs.FilterMap
			e.refCount.Store(1)
		})
		if !ok {
			diag.Fatalf(r.tag, 0, "new_span", "slot pool exhausted: unable to allocate another span")
		}

		id = keyToID(key)
		r.liveSpans.Add(1)
		r.openSpans.Add(1)
	})
	return id
}

// Record is a no-op at the core: field recording is the tracing ABI's
// concern.
func (r *Registry) Record(id ID, fields Fields) {}

// RecordFollowsFrom is a no-op at the core.
func (r *Registry) RecordFollowsFrom(id, follows ID) {}

// Event is a no-op at the core.
func (r *Registry) Event(ev Event) {}

// EventEnabled is always true at the core.
func (r *Registry) EventEnabled(ev Event) bool { return true }

// CloneSpan increments id's reference count and returns id unchanged.
// A stale id is always a caller bug (the caller consumed a handle
// instead of borrowing it) and is fatal regardless of panic state,
// matching spec.md §7.
func (r *Registry) CloneSpan(id ID) ID {
	key, ok := keyFromID(id)
	if !ok {
		diag.Fatalf(r.tag, uint64(id), "clone_span", "stale id: slot not found")
	}
	ref, ok := r.pool.Get(key)
	if !ok {
		diag.Fatalf(r.tag, uint64(id), "clone_span", "stale id: slot not found")
	}
	defer ref.Release()

	e := ref.Value()
	// Go's sync/atomic increments carry no weaker-than-default ordering
	// knob; Add is used here purely for its indivisibility, which is all
	// a relaxed increment needs — no happens-before is required between
	// clones since layers never observe the count directly.
	after := e.refCount.Add(1)
	if after == 1 {
		if takePanicking() {
			return id
		}
		diag.Fatalf(r.tag, uint64(id), "clone_span", "ref count resurrected from zero: caller likely cloned an already-closed handle")
	}
	return id
}

// DecrementRef performs the raw reference-count decrement a close
// operation starts with, with no Close Guard bookkeeping attached. It
// is the primitive Registry.TryClose builds on; a layered Subscriber
// stack may call it directly as its own terminal step inside a chain
// of Registry.BeginClose frames instead of going through TryClose,
// which always wraps a single frame of its own.
func (r *Registry) DecrementRef(id ID) bool {
	key, ok := keyFromID(id)
	if !ok {
		if takePanicking() {
			return false
		}
		diag.Fatalf(r.tag, uint64(id), "try_close", "stale id: slot not found")
	}
	ref, ok := r.pool.Get(key)
	if !ok {
		if takePanicking() {
			return false
		}
		diag.Fatalf(r.tag, uint64(id), "try_close", "stale id: slot not found")
	}
	defer ref.Release()

	e := ref.Value()
	// Release semantics: writes made by the dropping goroutine must be
	// visible to whoever ultimately tears the slot down. On the terminal
	// decrement (new == 0) this same atomic read is the acquire point
	// Go gives us in place of a standalone fence: it synchronizes with
	// every other release decrement on this entry, Go's memory model
	// tying happens-before to the atomic operations themselves rather
	// than to a separate fence primitive.
	after := e.refCount.Add(^uint64(0))
	return after == 0
}

// TryClose is the Subscriber-facing close operation: it decrements
// id's reference count and, if that was the last reference, runs a
// single Close Guard frame around the reclamation. Used directly when
// a Registry has no layers wrapping it; a layered stack instead chains
// its own BeginClose frames around DecrementRef (see DecrementRef).
func (r *Registry) TryClose(id ID) (closed bool) {
	guarded(func() {
		if !r.DecrementRef(id) {
			return
		}
		guard := r.BeginClose(id)
		guard.SetClosing()
		guard.Close()
		closed = true
	})
	return closed
}

// Enter pushes id onto the calling goroutine's span stack, cloning a
// reference the first time id becomes the top frame.
func (r *Registry) Enter(id ID) {
	guarded(func() {
		st := currentGoroutineState()
		if st.stack.push(id) {
			r.CloneSpan(id)
		}
		r.enteredSpans.Add(1)
	})
}

// Exit pops id from the calling goroutine's span stack, dispatching a
// close attempt through the active subscriber when the popped frame's
// duplicate count reached zero.
func (r *Registry) Exit(id ID) {
	guarded(func() {
		st := currentGoroutineState()
		if st.stack.pop(id) {
			r.dispatchClose(id)
		}
		r.enteredSpans.Add(-1)
	})
}

// CurrentSpan returns the top of the calling goroutine's span stack.
func (r *Registry) CurrentSpan() (ID, bool) {
	return currentGoroutineState().stack.current()
}

// SpanData returns a read view of id, or false if id is stale.
func (r *Registry) SpanData(id ID) (SpanData, bool) {
	key, ok := keyFromID(id)
	if !ok {
		return SpanData{}, false
	}
	ref, ok := r.pool.Get(key)
	if !ok {
		return SpanData{}, false
	}
	return SpanData{id: id, ref: ref}, true
}

// RegisterFilter assigns and returns the next filter ordinal.
func (r *Registry) RegisterFilter() FilterID {
	return FilterID(r.filterCounter.Add(1) - 1)
}

// HasPerLayerFilters reports whether any filter has been registered.
func (r *Registry) HasPerLayerFilters() bool {
	return r.filterCounter.Load() > 0
}

func (r *Registry) dispatchClose(id ID) bool {
	return r.activeSubscriber().TryClose(id)
}

// reclaim is invoked by the outermost CloseGuard.Close once it
// observes the span as both fully unwound and marked closing. It
// cascades the close through the parent (via the active subscriber,
// so layers see that close too), clears the entry in place, and
// returns the slot to the pool.
func (r *Registry) reclaim(id ID) {
	key, ok := keyFromID(id)
	if !ok {
		return
	}
	ref, ok := r.pool.Get(key)
	if !ok {
		log.Warn("reclaim: span %d already gone", uint64(id))
		return
	}
	e := ref.Value()
	parent, hasParent := e.parent, e.hasParent
	ref.Release()

	if !r.pool.Release(key) {
		log.Warn("reclaim: span %d release raced with a concurrent release", uint64(id))
	}
	r.liveSpans.Add(-1)

	if hasParent {
		r.dispatchClose(parent)
	}
}
