// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// goroutineStack writes the calling goroutine's stack trace into buf
// and returns the number of bytes written, isolated so goroutineID has
// a single seam to stub in tests.
func goroutineStack(buf []byte) int {
	return runtime.Stack(buf, false)
}

// goroutineID returns the calling goroutine's numeric id, parsed from
// the leading "goroutine N [...]" line runtime.Stack always prints.
// Go gives user code no stable OS-thread identity and no first-class
// thread-locals; this is the well-worn substitute several
// runtime-adjacent libraries use to key per-goroutine state. It is not
// cheap — callers are expected to look it up once per public entry
// point, not per slice access.
func goroutineID() uint64 {
	var buf [64]byte
	n := goroutineStack(buf[:])
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		end = len(b)
	}
	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// goroutineState holds everything the spec models as per-thread: the
// span stack, the close-depth/closing flag pair the Close Guard
// protocol shares across nested guards, and the panic-unwind flag
// consulted by stale-ID tolerance checks. Lazily created on first use
// and never shared across goroutines.
type goroutineState struct {
	stack      spanStack
	closeDepth int
	closing    bool
	panicking  bool
}

var (
	stateMu sync.Mutex
	states  = make(map[uint64]*goroutineState)
)

// currentGoroutineState returns (creating if necessary) the calling
// goroutine's state. Entries are never removed: Go gives no hook for
// "this goroutine is about to exit" the way thread-locals get a
// destructor, so the map grows with the number of distinct goroutines
// that have ever called into the registry, not the number live at any
// instant. Acceptable for the registry's expected lifetime (long-lived
// worker pools, not per-request goroutine churn in the hot path).
func currentGoroutineState() *goroutineState {
	gid := goroutineID()
	stateMu.Lock()
	defer stateMu.Unlock()
	st, ok := states[gid]
	if !ok {
		st = &goroutineState{}
		states[gid] = st
	}
	return st
}
