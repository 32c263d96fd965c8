// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

// Level is a span or event's verbosity level.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Metadata is a span's static descriptor: its name, target, level and
// field schema. The registry never copies a Metadata value, only the
// pointer — callers own storage whose lifetime is at least the
// process's (typically a package-level var built once per callsite).
type Metadata struct {
	Name   string
	Target string
	Level  Level
	Fields []string
}

// FilterMap is the opaque per-layer interest bitmask a span is tagged
// with at creation. The registry never interprets its bits; it only
// stores and later answers IsEnabledFor queries against it. The
// per-layer filter-map machinery that decides what goes into this mask
// is an external collaborator, out of scope for the core.
type FilterMap uint64

// FilterID is a small ordinal handed out by Registry.RegisterFilter,
// used as a bit position into a FilterMap.
type FilterID uint8

// Interest mirrors the tracing ABI's callsite-interest enum.
type Interest int

const (
	InterestNever Interest = iota
	InterestSometimes
	InterestAlways
)

// Fields is an opaque bag of recorded field values. The core never
// interprets it; Record is a no-op at this layer.
type Fields map[string]any

// Event describes a point-in-time occurrence attributed to the
// current span context. The core never interprets it; Event is a
// no-op at this layer.
type Event struct {
	Meta   *Metadata
	Fields Fields
}

// ParentKind selects how NewSpan resolves a new span's parent.
type ParentKind int

const (
	// ParentContextual takes the calling goroutine's current span, if any.
	ParentContextual ParentKind = iota
	// ParentRoot forces no parent regardless of the calling context.
	ParentRoot
	// ParentExplicit uses the ID named in Attrs.Parent.
	ParentExplicit
)

// Attrs describes a span about to be created.
type Attrs struct {
	Meta       *Metadata
	ParentKind ParentKind
	Parent     ID
	FilterMap  FilterMap
}
