// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

// ID identifies a span. It is derived from a pool slot key as
// key+1, reserving zero as the sentinel NoID. IDs are unique only
// among currently-live spans and are recycled once a span's slot is
// reclaimed — never treat one as a globally unique or cross-process
// identifier.
type ID uint64

// NoID is the sentinel for "no span".
const NoID ID = 0

func keyToID(key uint64) ID { return ID(key + 1) }

func keyFromID(id ID) (key uint64, ok bool) {
	if id == NoID {
		return 0, false
	}
	return uint64(id) - 1, true
}
