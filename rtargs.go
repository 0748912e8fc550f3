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
	"encoding/json"
	"fmt"
)

// RtValueKind tags the payload carried by an RtValue.
type RtValueKind int

const (
	KindInt RtValueKind = iota
	KindFloat
	KindBool
	KindString
	KindArray
	KindObject
	KindPointer
)

// RtValue is a single tagged value, as stored in the Blackboard and
// carried between ticks inside RtArgs.
type RtValue struct {
	Kind    RtValueKind
	Int     int64
	Float   float64
	Bool    bool
	Str     string
	Array   []RtValue
	Object  map[string]RtValue
	Pointer *RTree
}

// RtInt, RtFloat, RtBool, RtStr, RtArray, RtObject and RtPointer construct
// an RtValue of the corresponding kind.
func RtInt(v int64) RtValue                { return RtValue{Kind: KindInt, Int: v} }
func RtFloat(v float64) RtValue            { return RtValue{Kind: KindFloat, Float: v} }
func RtBool(v bool) RtValue                { return RtValue{Kind: KindBool, Bool: v} }
func RtStr(v string) RtValue               { return RtValue{Kind: KindString, Str: v} }
func RtArray(v ...RtValue) RtValue         { return RtValue{Kind: KindArray, Array: v} }
func RtObject(v map[string]RtValue) RtValue { return RtValue{Kind: KindObject, Object: v} }
func RtPointer(v *RTree) RtValue           { return RtValue{Kind: KindPointer, Pointer: v} }

// AsInt returns the int payload and whether the value actually is an int.
func (v RtValue) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

// AsString returns the string payload and whether the value actually is a string.
func (v RtValue) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// AsArray returns the array payload and whether the value actually is an array.
func (v RtValue) AsArray() ([]RtValue, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.Array, true
}

// String implements fmt.Stringer for debug/trace output.
func (v RtValue) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindString:
		return v.Str
	case KindArray:
		return fmt.Sprintf("%v", v.Array)
	case KindObject:
		return fmt.Sprintf("%v", v.Object)
	case KindPointer:
		return fmt.Sprintf("<tree %p>", v.Pointer)
	default:
		return "<invalid RtValue>"
	}
}

// rtEntry is a single named slot within an RtArgs.
type rtEntry struct {
	Name  string  `json:"name"`
	Value RtValue `json:"value"`
}

// rtValueWire is RtValue's tagged-union wire shape, used to cross a
// Remote action's HTTP boundary. KindPointer values cannot be
// serialized and are rejected by MarshalJSON.
type rtValueWire struct {
	Kind   string             `json:"kind"`
	Int    *int64             `json:"int,omitempty"`
	Float  *float64           `json:"float,omitempty"`
	Bool   *bool              `json:"bool,omitempty"`
	Str    *string            `json:"str,omitempty"`
	Array  []RtValue          `json:"array,omitempty"`
	Object map[string]RtValue `json:"object,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v RtValue) MarshalJSON() ([]byte, error) {
	var w rtValueWire
	switch v.Kind {
	case KindInt:
		w.Kind, w.Int = "int", &v.Int
	case KindFloat:
		w.Kind, w.Float = "float", &v.Float
	case KindBool:
		w.Kind, w.Bool = "bool", &v.Bool
	case KindString:
		w.Kind, w.Str = "string", &v.Str
	case KindArray:
		w.Kind, w.Array = "array", v.Array
	case KindObject:
		w.Kind, w.Object = "object", v.Object
	case KindPointer:
		return nil, fmt.Errorf("forester: RtValue: cannot marshal a pointer-to-tree value over the wire")
	default:
		return nil, fmt.Errorf("forester: RtValue: invalid kind %d", v.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *RtValue) UnmarshalJSON(data []byte) error {
	var w rtValueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "int":
		if w.Int == nil {
			return fmt.Errorf("forester: RtValue: kind int missing payload")
		}
		*v = RtInt(*w.Int)
	case "float":
		if w.Float == nil {
			return fmt.Errorf("forester: RtValue: kind float missing payload")
		}
		*v = RtFloat(*w.Float)
	case "bool":
		if w.Bool == nil {
			return fmt.Errorf("forester: RtValue: kind bool missing payload")
		}
		*v = RtBool(*w.Bool)
	case "string":
		if w.Str == nil {
			return fmt.Errorf("forester: RtValue: kind string missing payload")
		}
		*v = RtStr(*w.Str)
	case "array":
		*v = RtArray(w.Array...)
	case "object":
		*v = RtObject(w.Object)
	default:
		return fmt.Errorf("forester: RtValue: unrecognised kind %q", w.Kind)
	}
	return nil
}

// RtArg is a single named value, used to seed an RtArgs via NewRtArgs.
type RtArg struct {
	Name  string
	Value RtValue
}

// RtArgs is an ordered name/value memory bag attached to a node's runtime
// state. It is a pure value type: With/Remove return a new RtArgs, the
// receiver is never mutated, and equality is by ordered content.
type RtArgs struct {
	entries []rtEntry
}

// NewRtArgs constructs an RtArgs from an initial set of name/value pairs,
// preserving the given order (later duplicate names replace earlier ones,
// keeping the earlier position, matching With's semantics).
func NewRtArgs(pairs ...RtArg) RtArgs {
	var a RtArgs
	for _, p := range pairs {
		a = a.With(p.Name, p.Value)
	}
	return a
}

// With returns a copy of the receiver with name set to v, replacing an
// existing entry in place if present, else appending.
func (a RtArgs) With(name string, v RtValue) RtArgs {
	entries := make([]rtEntry, len(a.entries))
	copy(entries, a.entries)
	for i := range entries {
		if entries[i].Name == name {
			entries[i].Value = v
			return RtArgs{entries: entries}
		}
	}
	entries = append(entries, rtEntry{Name: name, Value: v})
	return RtArgs{entries: entries}
}

// Remove returns a copy of the receiver with the named entry dropped, a
// no-op (but still a fresh copy) if the name isn't present.
func (a RtArgs) Remove(name string) RtArgs {
	entries := make([]rtEntry, 0, len(a.entries))
	for _, e := range a.entries {
		if e.Name != name {
			entries = append(entries, e)
		}
	}
	return RtArgs{entries: entries}
}

// Find returns the first entry matching name.
func (a RtArgs) Find(name string) (RtValue, bool) {
	for _, e := range a.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return RtValue{}, false
}

// Len returns the number of entries.
func (a RtArgs) Len() int { return len(a.entries) }

// Equal reports whether two RtArgs have identical ordered content.
func (a RtArgs) Equal(b RtArgs) bool {
	if len(a.entries) != len(b.entries) {
		return false
	}
	for i := range a.entries {
		if a.entries[i].Name != b.entries[i].Name || !valueEqual(a.entries[i].Value, b.entries[i].Value) {
			return false
		}
	}
	return true
}

func valueEqual(a, b RtValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindBool:
		return a.Bool == b.Bool
	case KindString:
		return a.Str == b.Str
	case KindPointer:
		return a.Pointer == b.Pointer
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !valueEqual(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Object) != len(b.Object) {
			return false
		}
		for k, v := range a.Object {
			bv, ok := b.Object[k]
			if !ok || !valueEqual(v, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler, used to cross a Remote action's
// HTTP boundary.
func (a RtArgs) MarshalJSON() ([]byte, error) {
	entries := a.entries
	if entries == nil {
		entries = []rtEntry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *RtArgs) UnmarshalJSON(data []byte) error {
	var entries []rtEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	a.entries = entries
	return nil
}

// String implements fmt.Stringer, used by Tracer for NewState payloads.
func (a RtArgs) String() string {
	s := "{"
	for i, e := range a.entries {
		if i != 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%s", e.Name, e.Value)
	}
	return s + "}"
}
