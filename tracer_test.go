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
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTracer_IndentTracksPushPop(t *testing.T) {
	tr := NewTracer()
	if err := tr.TraceNewState(1, 1, newSuccess(RtArgs{})); err != nil {
		t.Fatal(err)
	}
	if err := tr.Right(); err != nil {
		t.Fatal(err)
	}
	if err := tr.TraceNewState(1, 2, newSuccess(RtArgs{})); err != nil {
		t.Fatal(err)
	}
	if err := tr.Left(); err != nil {
		t.Fatal(err)
	}

	events := tr.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Indent != 0 {
		t.Fatalf("expected first event at indent 0, got %d", events[0].Indent)
	}
	if events[1].Indent != 1 {
		t.Fatalf("expected second event at indent 1, got %d", events[1].Indent)
	}
}

func TestTracer_Dump(t *testing.T) {
	tr := NewTracer()
	_ = tr.TraceNextTick(1)
	_ = tr.TraceCustom(1, "hello")

	var b bytes.Buffer
	if err := tr.Dump(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected dump to contain the custom payload, got: %s", out)
	}
}

func TestTracer_PoisonStopsFurtherWrites(t *testing.T) {
	tr := NewTracer()
	tr.poison(errors.New("boom"))

	if err := tr.TraceCustom(1, "x"); err == nil {
		t.Fatal("expected poisoned tracer to reject further writes")
	}
	if err := tr.Right(); err == nil {
		t.Fatal("expected poisoned tracer to reject Right")
	}

	// poisoning twice keeps the first error.
	tr.poison(errors.New("second"))
	err := tr.TraceCustom(1, "x")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected the original poison error to stick, got %v", err)
	}
}
