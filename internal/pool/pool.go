// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

// Package pool implements the registry's slot pool: a lock-free,
// sharded object pool yielding dense, stable integer keys, with
// read-references that defer slot reuse until every outstanding
// borrow has been released.
//
// Checkout is wait-free in the common case (a CAS pop off a per-shard
// free list); growth, which only happens once per new slot a shard has
// ever held, takes a per-shard mutex. Release clears the slot in place
// and returns it to its shard's free list, or — if a Ref still pins it
// — marks it pending and lets the last Ref.Release do the clear and
// the return, so a pinned value is never modified under its reader.
package pool

import (
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
)

const nilIndex = ^uint32(0)

// pack combines a free-list index and an ABA-guarding tag into one
// word so the free-list head can be updated with a single CAS.
func pack(index, tag uint32) uint64 {
	return uint64(tag)<<32 | uint64(index)
}

func unpack(v uint64) (index, tag uint32) {
	return uint32(v), uint32(v >> 32)
}

type slot[T any] struct {
	value T
	// live is true while the slot is checked out and its value is
	// valid to read.
	live atomic.Bool
	// pins counts outstanding Ref read-references; a slot cannot
	// rejoin the free list while pins > 0.
	pins atomic.Int32
	// pendingFree is set when Release ran while pins > 0; the Ref
	// that drops the last pin performs the deferred free-list push.
	pendingFree atomic.Bool
	// next links this slot into its shard's free-list, valid only
	// while the slot is free.
	next atomic.Uint64
}

type shard[T any] struct {
	head atomic.Uint64

	// growMu guards only slots append; popFree/pushFree never take it.
	growMu sync.Mutex
	slots  []*slot[T]
}

// Pool is a sharded, lock-free object pool for type T.
type Pool[T any] struct {
	shards    []*shard[T]
	nextShard atomic.Uint32
	capacity  int // 0 means unbounded
	size      atomic.Int64
	clear     func(*T)
}

// Option configures a Pool at construction time.
type Option[T any] func(*poolConfig[T])

type poolConfig[T any] struct {
	shardCount int
	capacity   int
	clear      func(*T)
}

// WithShardCount overrides the default shard count (next power of two
// at least runtime.GOMAXPROCS(0), doubled to reduce contention).
func WithShardCount[T any](n int) Option[T] {
	return func(c *poolConfig[T]) { c.shardCount = n }
}

// WithCapacity bounds the total number of slots the pool will ever
// allocate across all shards. Zero (the default) means unbounded.
func WithCapacity[T any](n int) Option[T] {
	return func(c *poolConfig[T]) { c.capacity = n }
}

// WithClear installs the function used to reset a slot's value in
// place before it rejoins the free list. Required for types holding
// onto maps or slices whose backing storage should be retained rather
// than reallocated on every reuse.
func WithClear[T any](clear func(*T)) Option[T] {
	return func(c *poolConfig[T]) { c.clear = clear }
}

// New creates a Pool for T.
func New[T any](opts ...Option[T]) *Pool[T] {
	cfg := poolConfig[T]{
		shardCount: defaultShardCount(),
		clear:      func(*T) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := nextPow2(cfg.shardCount)
	p := &Pool[T]{
		shards:   make([]*shard[T], n),
		capacity: cfg.capacity,
		clear:    cfg.clear,
	}
	for i := range p.shards {
		sh := &shard[T]{}
		sh.head.Store(pack(nilIndex, 0))
		p.shards[i] = sh
	}
	return p
}

func defaultShardCount() int {
	n := runtime.GOMAXPROCS(0) * 2
	if n < 1 {
		n = 1
	}
	return n
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Len reports the number of currently checked-out slots.
func (p *Pool[T]) Len() int { return int(p.size.Load()) }

// Checkout reserves a slot, runs init against it in place, and returns
// a dense integer key stable for the lifetime of the checkout. It
// fails only when the pool's capacity (if bounded) is exhausted.
func (p *Pool[T]) Checkout(init func(*T)) (key uint64, ok bool) {
	if !p.reserve() {
		return 0, false
	}

	shardIdx := p.nextShard.Add(1) % uint32(len(p.shards))
	sh := p.shards[shardIdx]

	idx, reused := popFree(sh)
	if !reused {
		idx = growShard(sh)
	}

	s := sh.slots[idx]
	init(&s.value)
	s.pendingFree.Store(false)
	s.live.Store(true)
	return packKey(shardIdx, idx), true
}

// reserve claims one unit of the pool's capacity with a single atomic
// CAS loop on the pool-wide size counter, so two shards growing at
// once can never together oversubscribe a bounded pool the way
// checking size.Load() and growing under a per-shard lock separately
// would. Unbounded pools (capacity == 0) always succeed.
func (p *Pool[T]) reserve() bool {
	if p.capacity <= 0 {
		p.size.Add(1)
		return true
	}
	for {
		old := p.size.Load()
		if old >= int64(p.capacity) {
			return false
		}
		if p.size.CompareAndSwap(old, old+1) {
			return true
		}
	}
}

// Release logically closes the slot: it is either cleared in place and
// returned to its shard's free list immediately, or — if Refs still
// pin it — marked pending so the last Ref.Release clears and returns
// it. Release is idempotent-safe against a stale key (returns false).
func (p *Pool[T]) Release(key uint64) bool {
	shardIdx, idx, ok := p.unpackKey(key)
	if !ok {
		return false
	}
	sh := p.shards[shardIdx]
	s := sh.slots[idx]
	if !s.live.CompareAndSwap(true, false) {
		return false
	}
	p.size.Add(-1)
	if s.pins.Load() == 0 {
		p.clear(&s.value)
		pushFree(sh, idx)
	} else {
		s.pendingFree.Store(true)
	}
	return true
}

// Ref is a shared-immutable read-reference into a pooled slot. While
// it exists, the slot cannot be reused even if Release has already
// been called on its key.
type Ref[T any] struct {
	pool     *Pool[T]
	shardIdx uint32
	idx      uint32
}

// Get returns a pinning read-reference to the slot for key, or false
// if the key is stale (already released and reused, or never valid).
func (p *Pool[T]) Get(key uint64) (Ref[T], bool) {
	shardIdx, idx, ok := p.unpackKey(key)
	if !ok {
		return Ref[T]{}, false
	}
	s := p.shards[shardIdx].slots[idx]
	s.pins.Add(1)
	if !s.live.Load() {
		p.unpin(shardIdx, idx)
		return Ref[T]{}, false
	}
	return Ref[T]{pool: p, shardIdx: shardIdx, idx: idx}, true
}

// Value returns a pointer to the borrowed slot's content. Valid only
// until Release is called on the Ref.
func (r Ref[T]) Value() *T {
	return &r.pool.shards[r.shardIdx].slots[r.idx].value
}

// Release relinquishes the read-reference. If this was the last pin on
// a slot already logically released, the slot now rejoins its shard's
// free list.
func (r Ref[T]) Release() {
	if r.pool == nil {
		return
	}
	r.pool.unpin(r.shardIdx, r.idx)
}

func (p *Pool[T]) unpin(shardIdx, idx uint32) {
	sh := p.shards[shardIdx]
	s := sh.slots[idx]
	if s.pins.Add(-1) == 0 && s.pendingFree.CompareAndSwap(true, false) {
		p.clear(&s.value)
		pushFree(sh, idx)
	}
}

func packKey(shardIdx, idx uint32) uint64 {
	return uint64(shardIdx)<<32 | uint64(idx)
}

func (p *Pool[T]) unpackKey(key uint64) (shardIdx, idx uint32, ok bool) {
	shardIdx = uint32(key >> 32)
	idx = uint32(key)
	if int(shardIdx) >= len(p.shards) {
		return 0, 0, false
	}
	sh := p.shards[shardIdx]
	sh.growMu.Lock()
	n := len(sh.slots)
	sh.growMu.Unlock()
	if int(idx) >= n {
		return 0, 0, false
	}
	return shardIdx, idx, true
}

func popFree[T any](sh *shard[T]) (idx uint32, ok bool) {
	for {
		old := sh.head.Load()
		head, tag := unpack(old)
		if head == nilIndex {
			return 0, false
		}
		next := sh.slots[head].next.Load()
		nextIdx, _ := unpack(next)
		if sh.head.CompareAndSwap(old, pack(nextIdx, tag+1)) {
			return head, true
		}
	}
}

func pushFree[T any](sh *shard[T], idx uint32) {
	s := sh.slots[idx]
	for {
		old := sh.head.Load()
		head, tag := unpack(old)
		s.next.Store(pack(head, tag))
		if sh.head.CompareAndSwap(old, pack(idx, tag+1)) {
			return
		}
	}
}

// growShard appends a fresh slot to sh and returns its index. Callers
// have already reserved the right to create it via Pool.reserve, so
// growShard itself enforces no capacity — only mutual exclusion
// against other appends on the same shard.
func growShard[T any](sh *shard[T]) uint32 {
	sh.growMu.Lock()
	defer sh.growMu.Unlock()
	sh.slots = append(sh.slots, &slot[T]{})
	return uint32(len(sh.slots) - 1)
}
