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
	"fmt"
	"sync"
	"time"
)

// Predicate inspects the shared blackboard and tree context between node
// visits, and may request RunUntil halt early, before the root reaches a
// terminal state.
type Predicate func(bb *Blackboard, tc *TreeContext) bool

// Forester is the driver: it ticks a compiled RTree to termination,
// dispatching Leaf, Flow and Decorator nodes via the single-threaded,
// cooperative tick loop described by the core design (SS4.7). Its
// TreeContext is allocated once, on the first Run/RunUntil call, and then
// persists across every later call on the same Forester - see RunUntil's
// doc comment for why, and PeriodicRunner for the resulting repeated-Run
// usage.
type Forester struct {
	rtree  *RTree
	keeper *Keeper
	bb     *Blackboard
	tracer *Tracer
	env    Env
	port   uint16
	clock  func() time.Time

	mu    sync.Mutex
	scope *CancelScope
	tc    *TreeContext
}

// NewForester constructs a Forester over a compiled tree, an action
// registry, and the shared blackboard/tracer services for one run (or a
// sequence of runs, see PeriodicRunner). port is advertised to Remote
// actions via RemoteRef, for callback purposes; 0 if unused.
func NewForester(rtree *RTree, keeper *Keeper, bb *Blackboard, tracer *Tracer, env Env, port uint16) *Forester {
	return &Forester{
		rtree:  rtree,
		keeper: keeper,
		bb:     bb,
		tracer: tracer,
		env:    env,
		port:   port,
		clock:  time.Now,
	}
}

// Stop cooperatively halts any in-progress Run/RunUntil call as soon as
// it next checks for cancellation, and releases any in-flight Keeper
// invocations. Safe to call before, during, or after a run; safe to call
// more than once.
func (f *Forester) Stop() {
	f.mu.Lock()
	scope := f.scope
	f.mu.Unlock()
	if scope != nil {
		scope.Cancel()
	}
	f.keeper.Stop()
}

// Run ticks the tree to termination: Success, Failure, or Stopped (tick
// limit reached, or Stop called). tickLimit of 0 means unbounded.
func (f *Forester) Run(ctx context.Context, tickLimit Timestamp) (TickResult, error) {
	return f.RunUntil(ctx, tickLimit, nil)
}

// RunUntil behaves like Run, but additionally halts (returning a Running
// TickResult) the moment until reports true, checked once per node
// visit. A nil until behaves exactly like Run.
//
// The Forester's TreeContext (and therefore every node's memory - a
// memory composite's prev_cursor, a decorator's retry count, a leaf's own
// state) persists across repeated Run/RunUntil calls on the same
// Forester: a call that returns because the root reached a terminal
// state starts the next call on a fresh tick (the root resets to Ready
// via the reactive state_in_ts rule, exactly as it would between ticks
// within one call); a call halted early by until resumes mid-walk on the
// same tick. This is what lets an MSequence resume at its prev_cursor
// across two separate top-level Run calls, and what makes a
// PeriodicRunner's repeated Run calls a single continuous execution
// rather than independent ones.
//
// The tick limit is taken only by the first call, which creates the
// TreeContext; the tickLimit passed to any later call is ignored, and the
// limit counts ticks from the start of that first call, not per call.
func (f *Forester) RunUntil(ctx context.Context, tickLimit Timestamp, until Predicate) (TickResult, error) {
	scope := new(CancelScope).WithCancel(ctx)
	scope.Init()

	root := f.rtree.RootId

	f.mu.Lock()
	f.scope = scope
	tc := f.tc
	fresh := tc == nil
	if fresh {
		tc = NewTreeContext(f.tracer, tickLimit)
		f.tc = tc
	}
	f.mu.Unlock()
	runCtx := scope.Context()

	if fresh {
		if err := f.tracer.TraceNextTick(tc.CurrTs()); err != nil {
			return TickResult{}, f.fatal(err)
		}
		if err := tc.Push(root); err != nil {
			return TickResult{}, f.fatal(err)
		}
	} else if tc.StackLen() == 0 {
		// the previous call returned with the root in a terminal state;
		// this call begins a new tick, reactively resetting the root.
		if err := tc.NextTick(); err != nil {
			if e, ok := asForesterError(err); ok && e.Kind == KindStopped {
				return TickResult{}, err
			}
			return TickResult{}, f.fatal(err)
		}
		if err := tc.Push(root); err != nil {
			return TickResult{}, f.fatal(err)
		}
	}

	for {
		select {
		case <-scope.Done():
			return TickResult{}, newStoppedError("forester stopped")
		default:
		}

		if tc.StackLen() == 0 {
			result, err := tc.RootState(root)
			if err != nil {
				return TickResult{}, f.fatal(err)
			}
			if result.Status != Running {
				return result, nil
			}
			if err := tc.NextTick(); err != nil {
				if e, ok := asForesterError(err); ok && e.Kind == KindStopped {
					return TickResult{}, err
				}
				return TickResult{}, f.fatal(err)
			}
			if err := tc.Push(root); err != nil {
				return TickResult{}, f.fatal(err)
			}
		}

		if until != nil && until(f.bb, tc) {
			return TickResult{Status: Running, Reason: "halted by predicate"}, nil
		}

		if err := f.step(runCtx, tc); err != nil {
			return TickResult{}, f.fatal(err)
		}
	}
}

// fatal poisons the tracer so every later call observes the same
// failure, per SS7's "ensures the tracer is flushed" - a fatal error
// freezes the trace at the point of the fault rather than letting later
// (possibly confused) callers keep appending to it.
func (f *Forester) fatal(err error) error {
	f.tracer.poison(err)
	return err
}

func asForesterError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// step dispatches exactly one node visit: the node currently on top of
// the stack.
func (f *Forester) step(ctx context.Context, tc *TreeContext) error {
	id, ok := tc.Peek()
	if !ok {
		return newUexError("step: peek on empty stack")
	}
	node, ok := f.rtree.Get(id)
	if !ok {
		return newUexError(fmt.Sprintf("step: missing rtree node %d", id))
	}
	state := tc.StateInTs(id)
	now := f.clock()

	switch node.Kind {
	case KindLeaf:
		return f.stepLeaf(ctx, tc, id, node, state)
	case KindFlow:
		return f.stepFlow(tc, id, node, state)
	case KindDecorator:
		return f.stepDecorator(tc, id, node, state, now)
	default:
		return newUexError(fmt.Sprintf("step: node %d has invalid kind %d", id, node.Kind))
	}
}

// stepLeaf ticks (or polls) the leaf's bound action and pops immediately;
// the parent observes the result via state_in_ts on its next visit.
func (f *Forester) stepLeaf(ctx context.Context, tc *TreeContext, id RNodeId, node RNode, state RNodeState) error {
	ref := NewLocalRef(f.bb, f.tracer, tc.CurrTs(), f.env)
	status, reason := f.keeper.Tick(ctx, id, node.Name, state.Args, ref)
	if err := tc.NewState(id, fromTick(state.Args, status, reason)); err != nil {
		return err
	}
	_, _, err := tc.Pop()
	return err
}

// stepFlow dispatches a composite node: seeding args and descending on
// first visit, or reconciling a child's outcome (still running, or
// finished) via Flow Logic's monitor/finalize on every later visit.
func (f *Forester) stepFlow(tc *TreeContext, id RNodeId, node RNode, state RNodeState) error {
	switch {
	case state.IsReady():
		length := int64(len(node.Children))
		var args RtArgs
		if node.FlowType == Parallel {
			args = runWithPar(state.Args, length)
		} else {
			args = runWith(state.Args, 0, length)
		}
		if err := tc.NewState(id, newRunning(args)); err != nil {
			return err
		}
		cursor := readCursor(args)
		childId, ok := f.rtree.ChildAt(id, cursor)
		if !ok {
			return newUexError(fmt.Sprintf("flow node %d: no child at cursor %d", id, cursor))
		}
		return tc.Push(childId)

	case state.IsRunning():
		cursor := readCursor(state.Args)
		childId, ok := f.rtree.ChildAt(id, cursor)
		if !ok {
			return newUexError(fmt.Sprintf("flow node %d: no child at cursor %d", id, cursor))
		}
		childState := tc.StateInTs(childId)
		switch {
		case childState.IsReady():
			return tc.Push(childId)
		case childState.IsRunning():
			decision := monitor(node.FlowType, state.Args)
			return f.applyFlowDecision(tc, id, decision)
		default:
			fr := finRes{success: childState.Status == Success, reason: reasonOf(childState)}
			decision := finalize(node.FlowType, state.Args, fr)
			return f.applyFlowDecision(tc, id, decision)
		}

	default:
		return newUexError(fmt.Sprintf("flow node %d dispatched while already finished", id))
	}
}

// applyFlowDecision implements apply(decision) for Flow nodes: record the
// new state, then either descend into the (possibly new) cursor's child
// when still Running, or pop immediately otherwise.
func (f *Forester) applyFlowDecision(tc *TreeContext, id RNodeId, decision FlowDecision) error {
	if err := tc.NewState(id, decision.State); err != nil {
		return err
	}
	if decision.Pop {
		_, _, err := tc.Pop()
		return err
	}
	if decision.State.IsRunning() {
		cursor := readCursor(decision.State.Args)
		childId, ok := f.rtree.ChildAt(id, cursor)
		if !ok {
			return newUexError(fmt.Sprintf("flow node %d: no child at cursor %d", id, cursor))
		}
		return tc.Push(childId)
	}
	_, _, err := tc.Pop()
	return err
}

// stepDecorator dispatches a Decorator node: descending into its single
// child on first visit (unless the decorator itself holds it back, as
// Delay does), or reconciling the child's outcome via decorator
// monitor/finalize on every later visit.
func (f *Forester) stepDecorator(tc *TreeContext, id RNodeId, node RNode, state RNodeState, now time.Time) error {
	switch {
	case state.IsReady():
		descend, decision := decoratorReady(node.DecoratorKind, node.Params, state.Args, now)
		if !descend {
			return f.applyDecoratorDecision(tc, id, node, decision)
		}
		args := newDecoratorArgs(state.Args)
		if err := tc.NewState(id, newRunning(args)); err != nil {
			return err
		}
		return tc.Push(node.Child)

	case state.IsRunning():
		childState := tc.StateInTs(node.Child)
		switch {
		case childState.IsReady():
			return tc.Push(node.Child)
		case childState.IsRunning():
			decision := decoratorMonitor(node.DecoratorKind, node.Params, state.Args, now)
			return f.applyDecoratorDecision(tc, id, node, decision)
		default:
			fr := finRes{success: childState.Status == Success, reason: reasonOf(childState)}
			decision := decoratorFinalize(node.DecoratorKind, node.Params, state.Args, fr)
			return f.applyDecoratorDecision(tc, id, node, decision)
		}

	default:
		return newUexError(fmt.Sprintf("decorator node %d dispatched while already finished", id))
	}
}

// applyDecoratorDecision implements apply(decision) for Decorator nodes:
// there is only ever one child, so "descend" always means push node.Child.
func (f *Forester) applyDecoratorDecision(tc *TreeContext, id RNodeId, node RNode, decision FlowDecision) error {
	if err := tc.NewState(id, decision.State); err != nil {
		return err
	}
	if decision.Pop {
		_, _, err := tc.Pop()
		return err
	}
	if decision.State.IsRunning() {
		return tc.Push(node.Child)
	}
	_, _, err := tc.Pop()
	return err
}

// reasonOf extracts a finished RNodeState's failure reason, or "" for
// Success.
func reasonOf(s RNodeState) string {
	v, ok := s.Args.Find(reasonKey)
	if !ok {
		return ""
	}
	r, _ := v.AsString()
	return r
}
