// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

// Package diag builds the fatal diagnostics the registry panics with.
// A corrupt span registry has no safe degraded mode (spec §7): every
// fatal path funnels through here so the panic message consistently
// names the offending span, the operation, and a parsed snapshot of
// the calling goroutine's stack.
package diag

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"

	stackparse "github.com/DataDog/gostackparse"
	"github.com/google/uuid"
)

// InstanceTag is a process-local, randomly generated identifier for
// one Registry instance. It is attached to every fatal diagnostic so
// that a process embedding more than one Registry (tests, or a host
// that deliberately runs several) can tell which one panicked. It is
// never used as a span or trace identifier.
type InstanceTag string

// NewInstanceTag returns a fresh, random instance tag.
func NewInstanceTag() InstanceTag {
	return InstanceTag(uuid.NewString())
}

// Fatalf formats a fatal diagnostic for span id/op and panics with it.
// id may be zero when the failure is not attributable to one span
// (e.g. pool exhaustion).
func Fatalf(tag InstanceTag, id uint64, op string, format string, a ...any) {
	panic(Format(tag, id, op, format, a...))
}

// Format builds the diagnostic string without panicking, so fatal
// callers can log it before unwinding (e.g. via internal/log) as well
// as attach it to the panic value.
func Format(tag InstanceTag, id uint64, op string, format string, a ...any) string {
	reason := fmt.Sprintf(format, a...)
	frame := topFrame()
	return fmt.Sprintf("registry[%s]: fatal in %s(span=%d): %s (at %s)", tag, op, id, reason, frame)
}

// topFrame returns a short "file:line func" description of the
// immediate caller's stack, parsed via gostackparse so the message
// stays stable across Go runtime stack-format revisions.
func topFrame() string {
	buf := make([]byte, 16*1024)
	n := runtime.Stack(buf, false)
	goroutines, _ := stackparse.Parse(bytes.NewReader(buf[:n]))
	if len(goroutines) == 0 || len(goroutines[0].Stack) == 0 {
		return "unknown"
	}
	// Skip the frames inside this package itself.
	for _, f := range goroutines[0].Stack {
		if f.Func == "" || strings.HasPrefix(f.Func, "github.com/tracingkit/registry/internal/diag.") {
			continue
		}
		return fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Func)
	}
	return "unknown"
}
