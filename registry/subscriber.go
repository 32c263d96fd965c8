// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

package registry

// Subscriber is the contract the core exposes to the host tracing
// framework. *Registry implements it directly, acting as the
// bottommost subscriber in a layered observer stack; external layers
// wrap a Subscriber and delegate down to it, each participating in the
// Close Guard protocol on their own terms via Registry.BeginClose.
type Subscriber interface {
	RegisterCallsite(meta *Metadata) Interest
	Enabled(meta *Metadata) bool
	NewSpan(attrs Attrs) ID
	Record(id ID, fields Fields)
	RecordFollowsFrom(id, follows ID)
	Event(ev Event)
	EventEnabled(ev Event) bool
	Enter(id ID)
	Exit(id ID)
	CloneSpan(id ID) ID
	TryClose(id ID) bool
	CurrentSpan() (ID, bool)
}

// LookupSpan is the contract the core exposes to layers wanting to
// read span state.
type LookupSpan interface {
	SpanData(id ID) (SpanData, bool)
	RegisterFilter() FilterID
}

var (
	_ Subscriber = (*Registry)(nil)
	_ LookupSpan = (*Registry)(nil)
)
