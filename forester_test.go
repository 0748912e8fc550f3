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
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func syncAlways(status Status) ActionFunc {
	return func(ctx context.Context, args RtArgs, ref LocalRef) (Status, string) {
		return status, ""
	}
}

func syncCounting(counter *int32, fn func(call int32) (Status, string)) ActionFunc {
	return func(ctx context.Context, args RtArgs, ref LocalRef) (Status, string) {
		call := atomic.AddInt32(counter, 1)
		return fn(call)
	}
}

// TestForester_S1_SequenceSuccess: tree `sequence s { a b c }`, every leaf
// Success. The root reaches Success on the first tick, and the NewState
// trace, filtered down to only the Success transitions, names a, b, c, s,
// root in that order.
func TestForester_S1_SequenceSuccess(t *testing.T) {
	const root, seq, a, b, c RNodeId = 1, 2, 3, 4, 5
	tree := NewRTree(map[RNodeId]RNode{
		root: NewFlowNode(Root, []RNodeId{seq}, RtArgs{}),
		seq:  NewFlowNode(Sequence, []RNodeId{a, b, c}, RtArgs{}),
		a:    NewLeafNode(Action, "a", RtArgs{}),
		b:    NewLeafNode(Action, "b", RtArgs{}),
		c:    NewLeafNode(Action, "c", RtArgs{}),
	}, root)

	keeper := NewKeeper()
	keeper.Register("a", Action{Sync: syncAlways(Success)})
	keeper.Register("b", Action{Sync: syncAlways(Success)})
	keeper.Register("c", Action{Sync: syncAlways(Success)})

	tracer := NewTracer()
	f := NewForester(tree, keeper, NewBlackboard(), tracer, nil, 0)

	result, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Success {
		t.Fatalf("expected Success, got %s", result)
	}

	var order []RNodeId
	for _, e := range tracer.Events() {
		if e.Kind == EventNewState && e.State.Status == Success {
			order = append(order, e.NodeId)
		}
	}
	want := []RNodeId{a, b, c, seq, root}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

// TestForester_S2_FallbackStopsAtFirstSuccess: tree `fallback f { a b c }`
// with a=Failure, b=Success: c must never be ticked.
func TestForester_S2_FallbackStopsAtFirstSuccess(t *testing.T) {
	const root, fb, a, b, c RNodeId = 1, 2, 3, 4, 5
	tree := NewRTree(map[RNodeId]RNode{
		root: NewFlowNode(Root, []RNodeId{fb}, RtArgs{}),
		fb:   NewFlowNode(Fallback, []RNodeId{a, b, c}, RtArgs{}),
		a:    NewLeafNode(Action, "a", RtArgs{}),
		b:    NewLeafNode(Action, "b", RtArgs{}),
		c:    NewLeafNode(Action, "c", RtArgs{}),
	}, root)

	var cCalls int32
	keeper := NewKeeper()
	keeper.Register("a", Action{Sync: syncAlways(Failure)})
	keeper.Register("b", Action{Sync: syncAlways(Success)})
	keeper.Register("c", Action{Sync: syncCounting(&cCalls, func(int32) (Status, string) { return Success, "" })})

	f := NewForester(tree, keeper, NewBlackboard(), NewTracer(), nil, 0)
	result, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Success {
		t.Fatalf("expected Success, got %s", result)
	}
	if atomic.LoadInt32(&cCalls) != 0 {
		t.Fatalf("expected c to never be ticked once b succeeds, got %d calls", cCalls)
	}
}

// TestForester_S3_MSequenceResumesAtPrevCursor: tree `m_sequence m { a b c
// }`, b fails on the first top-level Run then succeeds on a second Run on
// the same Forester. The second Run must resume at b, not restart at a.
func TestForester_S3_MSequenceResumesAtPrevCursor(t *testing.T) {
	const root, ms, a, b, c RNodeId = 1, 2, 3, 4, 5
	tree := NewRTree(map[RNodeId]RNode{
		root: NewFlowNode(Root, []RNodeId{ms}, RtArgs{}),
		ms:   NewFlowNode(MSequence, []RNodeId{a, b, c}, RtArgs{}),
		a:    NewLeafNode(Action, "a", RtArgs{}),
		b:    NewLeafNode(Action, "b", RtArgs{}),
		c:    NewLeafNode(Action, "c", RtArgs{}),
	}, root)

	var aCalls, bCalls, cCalls int32
	keeper := NewKeeper()
	keeper.Register("a", Action{Sync: syncCounting(&aCalls, func(int32) (Status, string) { return Success, "" })})
	keeper.Register("b", Action{Sync: syncCounting(&bCalls, func(call int32) (Status, string) {
		if call == 1 {
			return Failure, "not yet"
		}
		return Success, ""
	})})
	keeper.Register("c", Action{Sync: syncCounting(&cCalls, func(int32) (Status, string) { return Success, "" })})

	f := NewForester(tree, keeper, NewBlackboard(), NewTracer(), nil, 0)

	result1, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result1.Status != Failure {
		t.Fatalf("expected the first run to fail at b, got %s", result1)
	}
	if aCalls != 1 || bCalls != 1 || cCalls != 0 {
		t.Fatalf("expected a=1 b=1 c=0 after the first run, got a=%d b=%d c=%d", aCalls, bCalls, cCalls)
	}

	result2, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result2.Status != Success {
		t.Fatalf("expected the second run to succeed, got %s", result2)
	}
	if aCalls != 1 {
		t.Fatalf("expected the second run to resume at b, not re-tick a, got a=%d", aCalls)
	}
	if bCalls != 2 || cCalls != 1 {
		t.Fatalf("expected b=2 c=1 after the second run, got b=%d c=%d", bCalls, cCalls)
	}
}

// TestForester_RSequenceRestartsFromZeroAfterRunningChild: tree
// `r_sequence rs { a b }`, a=Success and b=Running on tick 1. Unlike a
// plain Sequence, RSequence must re-tick a from cursor 0 on tick 2
// rather than resuming at b.
func TestForester_RSequenceRestartsFromZeroAfterRunningChild(t *testing.T) {
	const root, rs, a, b RNodeId = 1, 2, 3, 4
	tree := NewRTree(map[RNodeId]RNode{
		root: NewFlowNode(Root, []RNodeId{rs}, RtArgs{}),
		rs:   NewFlowNode(RSequence, []RNodeId{a, b}, RtArgs{}),
		a:    NewLeafNode(Action, "a", RtArgs{}),
		b:    NewLeafNode(Action, "b", RtArgs{}),
	}, root)

	var aCalls int32
	keeper := NewKeeper()
	keeper.Register("a", Action{Sync: syncCounting(&aCalls, func(int32) (Status, string) { return Success, "" })})
	keeper.Register("b", Action{Sync: syncCounting(new(int32), func(call int32) (Status, string) {
		if call == 1 {
			return Running, ""
		}
		return Success, ""
	})})

	f := NewForester(tree, keeper, NewBlackboard(), NewTracer(), nil, 0)
	result, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Success {
		t.Fatalf("expected Success, got %s", result)
	}
	if aCalls != 2 {
		t.Fatalf("expected a to be re-ticked from cursor 0 on tick 2, got %d calls", aCalls)
	}
}

// TestForester_S4_ParallelMixedEndToEnd: tree `parallel p { a b c }`, a
// Running on its first visit then Success on its second, b Success, c
// Failure - the full two-tick walk worked out by hand in flow_test.go,
// driven through the real Forester this time.
func TestForester_S4_ParallelMixedEndToEnd(t *testing.T) {
	const root, par, a, b, c RNodeId = 1, 2, 3, 4, 5
	tree := NewRTree(map[RNodeId]RNode{
		root: NewFlowNode(Root, []RNodeId{par}, RtArgs{}),
		par:  NewFlowNode(Parallel, []RNodeId{a, b, c}, RtArgs{}),
		a:    NewLeafNode(Action, "a", RtArgs{}),
		b:    NewLeafNode(Action, "b", RtArgs{}),
		c:    NewLeafNode(Action, "c", RtArgs{}),
	}, root)

	var aCalls int32
	keeper := NewKeeper()
	keeper.Register("a", Action{Sync: syncCounting(&aCalls, func(call int32) (Status, string) {
		if call == 1 {
			return Running, ""
		}
		return Success, ""
	})})
	keeper.Register("b", Action{Sync: syncAlways(Success)})
	keeper.Register("c", Action{Sync: syncAlways(Failure)})

	f := NewForester(tree, keeper, NewBlackboard(), NewTracer(), nil, 0)
	result, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Failure || result.Reason != "parallel failure" {
		t.Fatalf("expected Failure(parallel failure), got %s", result)
	}
	if aCalls != 2 {
		t.Fatalf("expected a to be visited exactly twice, got %d", aCalls)
	}
}

// TestForester_S5_ReactiveWipeAcrossRuns: tree `sequence s { cond action
// }`, cond succeeds on the first Run (letting action run once) then fails
// on a second Run - a plain Sequence forgets its cursor on success, so the
// second Run starts over at cond, and never reaches action again once
// cond fails.
func TestForester_S5_ReactiveWipeAcrossRuns(t *testing.T) {
	const root, seq, cond, act RNodeId = 1, 2, 3, 4
	tree := NewRTree(map[RNodeId]RNode{
		root: NewFlowNode(Root, []RNodeId{seq}, RtArgs{}),
		seq:  NewFlowNode(Sequence, []RNodeId{cond, act}, RtArgs{}),
		cond: NewLeafNode(Condition, "cond", RtArgs{}),
		act:  NewLeafNode(Action, "act", RtArgs{}),
	}, root)

	var condCalls, actCalls int32
	keeper := NewKeeper()
	keeper.Register("cond", Action{Sync: syncCounting(&condCalls, func(call int32) (Status, string) {
		if call == 1 {
			return Success, ""
		}
		return Failure, "no longer true"
	})})
	keeper.Register("act", Action{Sync: syncCounting(&actCalls, func(int32) (Status, string) { return Success, "" })})

	f := NewForester(tree, keeper, NewBlackboard(), NewTracer(), nil, 0)

	result1, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result1.Status != Success {
		t.Fatalf("expected the first run to succeed, got %s", result1)
	}
	if actCalls != 1 {
		t.Fatalf("expected action to run once on the first run, got %d", actCalls)
	}

	result2, err := f.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result2.Status != Failure {
		t.Fatalf("expected the second run to fail at cond, got %s", result2)
	}
	if condCalls != 2 {
		t.Fatalf("expected cond to be reevaluated fresh on the second run, got %d calls", condCalls)
	}
	if actCalls != 1 {
		t.Fatalf("expected action not to be resumed once cond fails, got %d calls", actCalls)
	}
}

// TestForester_S6_TickLimitStopsNonTerminatingTree: a tree that never
// finishes returns a KindStopped error once tick_limit is reached, rather
// than running forever or masquerading as an ordinary root Failure.
func TestForester_S6_TickLimitStopsNonTerminatingTree(t *testing.T) {
	const root RNodeId = 1
	tree := NewRTree(map[RNodeId]RNode{
		root: NewLeafNode(Action, "spin", RtArgs{}),
	}, root)

	keeper := NewKeeper()
	keeper.Register("spin", Action{Sync: syncAlways(Running)})

	f := NewForester(tree, keeper, NewBlackboard(), NewTracer(), nil, 0)
	_, err := f.Run(context.Background(), 5)
	if err == nil {
		t.Fatal("expected a KindStopped error once the tick limit is reached")
	}
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected errors.Is(err, ErrStopped), got %v", err)
	}
}
