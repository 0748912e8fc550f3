/*
   Copyright 2021 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package forester

import (
	"fmt"
	"io"
	"sync"
)

// EventKind discriminates the Tracer's tagged Event variant.
type EventKind int

const (
	EventNextTick EventKind = iota
	EventNewState
	EventCustom
	EventLeft
	EventRight
)

// Event is a single traced occurrence, ordered by (tick, indent, emission
// order within the tick).
type Event struct {
	Tick    int
	Indent  int
	Kind    EventKind
	NodeId  RNodeId
	State   RNodeState
	Payload string
}

// String implements fmt.Stringer, used by Tracer.Dump.
func (e Event) String() string {
	switch e.Kind {
	case EventNextTick:
		return "-- next tick --"
	case EventNewState:
		return fmt.Sprintf("node[%d] -> %s", e.NodeId, e.State)
	case EventCustom:
		return e.Payload
	case EventLeft:
		return "<"
	case EventRight:
		return ">"
	default:
		return fmt.Sprintf("event(%d)", int(e.Kind))
	}
}

// Tracer is an append-only, indented event log keyed by tick. All
// operations are mutually exclusive. Once poisoned (see poison), every
// later operation fails with the same KindLock error, never silently
// ignored.
type Tracer struct {
	mu      sync.Mutex
	events  []Event
	indent  int
	poisoned error
}

// NewTracer constructs an empty Tracer.
func NewTracer() *Tracer { return &Tracer{} }

// Trace appends an event at the given tick, at the current indent level.
func (t *Tracer) Trace(tick int, kind EventKind, nodeId RNodeId, state RNodeState, payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poisoned != nil {
		return t.poisoned
	}
	t.events = append(t.events, Event{
		Tick: tick, Indent: t.indent, Kind: kind, NodeId: nodeId, State: state, Payload: payload,
	})
	return nil
}

// TraceCustom appends a free-form Custom event.
func (t *Tracer) TraceCustom(tick int, msg string) error {
	return t.Trace(tick, EventCustom, 0, RNodeState{}, msg)
}

// TraceNewState appends a NewState event for id/state.
func (t *Tracer) TraceNewState(tick int, id RNodeId, state RNodeState) error {
	return t.Trace(tick, EventNewState, id, state, "")
}

// TraceNextTick appends a NextTick event.
func (t *Tracer) TraceNextTick(tick int) error {
	return t.Trace(tick, EventNextTick, 0, RNodeState{}, "")
}

// Right increases the indent level, called by TreeContext.Push.
func (t *Tracer) Right() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poisoned != nil {
		return t.poisoned
	}
	t.indent++
	return nil
}

// Left decreases the indent level, called by TreeContext.Pop.
func (t *Tracer) Left() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poisoned != nil {
		return t.poisoned
	}
	if t.indent > 0 {
		t.indent--
	}
	return nil
}

// Events returns a copy of the events recorded so far, in emission order.
func (t *Tracer) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Dump writes a flat, indented textual rendering of the trace to sink.
func (t *Tracer) Dump(sink io.Writer) error {
	events := t.Events()
	for _, e := range events {
		if _, err := fmt.Fprintf(sink, "%*s[t=%d] %s\n", e.Indent*2, "", e.Tick, e); err != nil {
			return err
		}
	}
	return nil
}

// poison marks the tracer as fatally broken; all subsequent operations
// fail with the same error. Used if an invariant internal to the tracer
// is violated (there is no real lock-poisoning in Go's sync.Mutex, but a
// caller-detected corruption is handled identically).
func (t *Tracer) poison(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poisoned == nil {
		t.poisoned = newLockError(err.Error())
	}
}
