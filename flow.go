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

// Flow Logic: pure functions deciding, for each composite node type and
// each child outcome, the next (cursor, state, decision) triple. All six
// composite kinds (plus Root) share this one code path, dispatched by
// FlowType - adding a new composite is a new tag plus a new branch in
// finalize and monitor, not a new type.

const (
	cursorKey     = "cursor"
	lenKey        = "len"
	prevCursorKey = "prev_cursor"
	childrenKey   = "children"
)

// child status values inside the parallel "children" bitmap.
const (
	childReady   = 0
	childRunning = 1
	childFailure = 2
	childSuccess = 3
)

// FlowDecision is the scheduler's verdict after monitor or finalize runs:
// either stay on the current node (descend into a new cursor, or
// terminate it), or pop back to the parent, carrying Running upward.
type FlowDecision struct {
	Pop   bool
	State RNodeState
}

func stay(s RNodeState) FlowDecision    { return FlowDecision{Pop: false, State: s} }
func popNode(s RNodeState) FlowDecision { return FlowDecision{Pop: true, State: s} }

// runWith stamps cursor and len into args.
func runWith(args RtArgs, cursor, length int64) RtArgs {
	return args.With(cursorKey, RtInt(cursor)).With(lenKey, RtInt(length))
}

// runWithPar seeds (or resumes) a Parallel node's args: on first visit it
// zeroes the children bitmap and starts at cursor 0; on a later visit it
// keeps the prior children bitmap and resumes at read_cursor.
func runWithPar(args RtArgs, length int64) RtArgs {
	if len(readChildrenState(args)) == 0 {
		zeros := make([]RtValue, length)
		for i := range zeros {
			zeros[i] = RtInt(0)
		}
		return runWith(args.With(childrenKey, RtArray(zeros...)), 0, length)
	}
	return runWith(args, readCursor(args), length)
}

// readLenOrZero reads the len entry, defaulting to 0.
func readLenOrZero(args RtArgs) int64 {
	v, ok := args.Find(lenKey)
	if !ok {
		return 0
	}
	n, _ := v.AsInt()
	return n
}

// readCursor implements the single numeric reconciliation rule: if both
// cursor and prev_cursor are present, take the max; if only one is
// present, take it; otherwise 0.
func readCursor(args RtArgs) int64 {
	cv, cok := args.Find(cursorKey)
	pv, pok := args.Find(prevCursorKey)
	c, _ := cv.AsInt()
	p, _ := pv.AsInt()
	switch {
	case cok && pok:
		if c > p {
			return c
		}
		return p
	case pok:
		return p
	case cok:
		return c
	default:
		return 0
	}
}

func readChildrenState(args RtArgs) []int64 {
	v, ok := args.Find(childrenKey)
	if !ok {
		return nil
	}
	arr, _ := v.AsArray()
	out := make([]int64, len(arr))
	for i, e := range arr {
		out[i], _ = e.AsInt()
	}
	return out
}

func replaceChildState(args RtArgs, idx int, v int64) RtArgs {
	elems := readChildrenState(args)
	elems[idx] = v
	vals := make([]RtValue, len(elems))
	for i, e := range elems {
		vals[i] = RtInt(e)
	}
	return args.With(childrenKey, RtArray(vals...))
}

// findPos scans [low, high) for the first index whose status is Ready or
// Running.
func findPos(children []int64, low, high int) (int, bool) {
	for i := low; i < high; i++ {
		if children[i] == childReady || children[i] == childRunning {
			return i, true
		}
	}
	return 0, false
}

// findNextIdx looks strictly after current (same-tick resumable).
func findNextIdx(children []int64, current int64) (int, bool) {
	return findPos(children, int(current)+1, len(children))
}

// findFirstIdx looks strictly before current (must wait for next tick).
func findFirstIdx(children []int64, current int64) (int, bool) {
	return findPos(children, 0, int(current))
}

// monitor is invoked when a descendant leaf returned Running. It stashes
// resume information and hands control upward.
func monitor(t FlowType, args RtArgs) FlowDecision {
	switch t {
	case Sequence, MSequence, Fallback:
		cursor := readCursor(args)
		return popNode(newRunning(args.With(prevCursorKey, RtInt(cursor))))
	case Parallel:
		cursor := readCursor(args)
		newArgs := replaceChildState(args.With(prevCursorKey, RtInt(cursor)), int(cursor), childRunning)
		children := readChildrenState(newArgs)
		if idx, ok := findNextIdx(children, cursor); ok {
			return stay(newRunning(newArgs.With(cursorKey, RtInt(int64(idx)))))
		}
		return popNode(newRunning(newArgs))
	default:
		// RSequence and RFallback fall through here: unlike Sequence and
		// Fallback they never stash prev_cursor, so a fresh entry after a
		// descendant was left Running restarts at child 0 rather than
		// resuming where it left off.
		return popNode(newRunning(args))
	}
}

// finRes is the shortest version of a finished child's result: only
// Success or Failure(reason) ever reaches finalize.
type finRes struct {
	success bool
	reason  string
}

// finalize is invoked when a child finishes (Success or Failure).
func finalize(t FlowType, args RtArgs, res finRes) FlowDecision {
	switch t {
	case Root:
		if res.success {
			return stay(newSuccess(runWith(args, 0, 1)))
		}
		return stay(newFailure(runWith(args, 0, 1), res.reason))

	case Sequence, RSequence:
		cursor := readCursor(args)
		length := readLenOrZero(args)
		if !res.success {
			a := args.Remove(prevCursorKey)
			return stay(newFailure(runWith(a, cursor, length), res.reason))
		}
		if cursor == length-1 {
			a := args.Remove(prevCursorKey)
			return stay(newSuccess(runWith(a, cursor, length)))
		}
		return stay(newRunning(runWith(args, cursor+1, length)))

	case MSequence:
		cursor := readCursor(args)
		length := readLenOrZero(args)
		if !res.success {
			a := runWith(args.With(prevCursorKey, RtInt(cursor)), cursor, length)
			return stay(newFailure(a, res.reason))
		}
		if cursor == length-1 {
			a := args.Remove(prevCursorKey)
			return stay(newSuccess(runWith(a, cursor, length)))
		}
		return stay(newRunning(runWith(args, cursor+1, length)))

	case Fallback, RFallback:
		cursor := readCursor(args)
		length := readLenOrZero(args)
		if !res.success {
			if cursor == length-1 {
				a := args.Remove(prevCursorKey)
				return stay(newFailure(runWith(a, cursor, length), res.reason))
			}
			return stay(newRunning(runWith(args, cursor+1, length)))
		}
		a := args.Remove(prevCursorKey)
		return stay(newSuccess(runWith(a, cursor, length)))

	case Parallel:
		cursor := readCursor(args)
		length := readLenOrZero(args)
		st := int64(childFailure)
		if res.success {
			st = childSuccess
		}
		a := replaceChildState(args, int(cursor), st)
		children := readChildrenState(a)
		if idx, ok := findNextIdx(children, cursor); ok {
			return stay(newRunning(a.With(cursorKey, RtInt(int64(idx)))))
		}
		if idx, ok := findFirstIdx(children, cursor); ok {
			next := runWith(a, int64(idx), length).With(prevCursorKey, RtInt(0))
			return popNode(newRunning(next))
		}
		if contains(children, childFailure) {
			a := runWith(a, cursor, length).Remove(childrenKey)
			return stay(newFailure(a, "parallel failure"))
		}
		a = runWith(a, cursor, length).Remove(childrenKey)
		return stay(newSuccess(a))

	default:
		if res.success {
			return stay(newSuccess(args))
		}
		return stay(newFailure(args, res.reason))
	}
}

func contains(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
