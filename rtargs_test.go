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
	"testing"

	"github.com/go-test/deep"
)

func TestRtArgs_WithReplacesInPlace(t *testing.T) {
	a := NewRtArgs(RtArg{Name: "x", Value: RtInt(1)}, RtArg{Name: "y", Value: RtInt(2)})
	b := a.With("x", RtInt(99))

	if b.Len() != 2 {
		t.Fatalf("expected len 2, got %d", b.Len())
	}
	v, ok := b.Find("x")
	if !ok {
		t.Fatal("expected x to be present")
	}
	if n, _ := v.AsInt(); n != 99 {
		t.Fatalf("expected x=99, got %d", n)
	}
	if v, _ := b.Find("y"); func() int64 { n, _ := v.AsInt(); return n }() != 2 {
		t.Fatal("expected y untouched")
	}

	// a must be unaffected - RtArgs is a pure value type.
	av, _ := a.Find("x")
	if n, _ := av.AsInt(); n != 1 {
		t.Fatalf("expected original a.x=1, got %d", n)
	}
}

func TestRtArgs_Remove(t *testing.T) {
	a := NewRtArgs(RtArg{Name: "x", Value: RtInt(1)}, RtArg{Name: "y", Value: RtInt(2)})
	b := a.Remove("x")
	if b.Len() != 1 {
		t.Fatalf("expected len 1, got %d", b.Len())
	}
	if _, ok := b.Find("x"); ok {
		t.Fatal("expected x to be gone")
	}
	if _, ok := a.Find("x"); !ok {
		t.Fatal("original a must still have x")
	}
}

func TestRtArgs_Equal(t *testing.T) {
	a := NewRtArgs(
		RtArg{Name: "x", Value: RtArray(RtInt(1), RtInt(2))},
		RtArg{Name: "y", Value: RtObject(map[string]RtValue{"k": RtStr("v")})},
	)
	b := NewRtArgs(
		RtArg{Name: "x", Value: RtArray(RtInt(1), RtInt(2))},
		RtArg{Name: "y", Value: RtObject(map[string]RtValue{"k": RtStr("v")})},
	)
	if !a.Equal(b) {
		t.Fatal("expected a == b")
	}
	c := b.With("x", RtArray(RtInt(1), RtInt(3)))
	if a.Equal(c) {
		t.Fatal("expected a != c")
	}
}

func TestRtArgs_JSONRoundTrip(t *testing.T) {
	a := NewRtArgs(
		RtArg{Name: "n", Value: RtInt(7)},
		RtArg{Name: "f", Value: RtFloat(1.5)},
		RtArg{Name: "b", Value: RtBool(true)},
		RtArg{Name: "s", Value: RtStr("hi")},
		RtArg{Name: "arr", Value: RtArray(RtInt(1), RtStr("two"))},
	)

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}

	var b RtArgs
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatal(err)
	}

	if !a.Equal(b) {
		if diff := deep.Equal(a, b); diff != nil {
			t.Fatalf("round trip mismatch: %v", diff)
		}
	}
}

func TestRtValue_MarshalJSON_RejectsPointer(t *testing.T) {
	v := RtPointer(NewRTree(map[RNodeId]RNode{}, 0))
	if _, err := json.Marshal(v); err == nil {
		t.Fatal("expected an error marshalling a pointer-to-tree value")
	}
}
