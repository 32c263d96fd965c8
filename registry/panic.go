// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

// panickingNow reports whether the calling goroutine is currently
// flagged as unwinding from a panic raised inside a prior guarded
// call, as far as this package has observed. Go's runtime exposes no
// public "is this goroutine panicking" query the way some languages'
// thread-local panic state does; guarded is the only place that ever
// learns this, by recovering and re-panicking around the registry's
// own public entry points. This is a peek: it does not clear the
// flag. Tolerance checks that act on the flag must call
// takePanicking instead, so the mark cannot outlive the single
// caller-bug check it was raised for.
func panickingNow() bool {
	return currentGoroutineState().panicking
}

// takePanicking reports whether the calling goroutine is flagged as
// panicking and, if so, clears the flag. A stale-ID tolerance check is
// the only legitimate reason to consult the flag, and consulting it
// is exactly what resolves the unwind it was raised for: the flag
// must not keep tolerating caller bugs on every later call a
// long-lived goroutine ever makes, just because it once panicked
// inside the registry.
func takePanicking() bool {
	st := currentGoroutineState()
	if !st.panicking {
		return false
	}
	st.panicking = false
	return true
}

// guarded runs fn, and if fn panics, marks the calling goroutine as
// panicking before re-raising so that any stale-ID tolerance check
// reached later in the same unwind (e.g. a deferred Exit/TryClose
// cleaning up spans still on the stack) can see it and degrade
// gracefully instead of panicking again.
func guarded(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			currentGoroutineState().panicking = true
			panic(r)
		}
	}()
	fn()
}
