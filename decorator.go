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

import "time"

// DecoratorKind tags the five decorator transformations a Decorator RNode
// may apply to its single child's result.
type DecoratorKind int

const (
	Invert DecoratorKind = iota
	RepeatN
	TimeoutAfter
	RetryN
	Delay
)

// String implements fmt.Stringer.
func (k DecoratorKind) String() string {
	switch k {
	case Invert:
		return "invert"
	case RepeatN:
		return "repeat_n"
	case TimeoutAfter:
		return "timeout"
	case RetryN:
		return "retry_n"
	case Delay:
		return "delay"
	default:
		return "decorator(?)"
	}
}

// Decorator private RtArgs entries - kept on the decorator node's own
// memory, never touching the parent composite's prev_cursor. Resolves
// the "retry N vs prev_cursor" open question (SPEC_FULL.md SS5): a
// decorator's own retry/repeat counters are local to it.
const (
	decoratorCountKey   = "decorator_count"
	decoratorStartedKey = "decorator_started_unix_nano"
	decoratorParamNKey  = "n"
	decoratorParamDurMs = "duration_ms"
)

// newDecoratorArgs seeds the decorator's private counters on first visit.
func newDecoratorArgs(args RtArgs) RtArgs {
	if _, ok := args.Find(decoratorCountKey); ok {
		return args
	}
	return args.With(decoratorCountKey, RtInt(0))
}

func paramInt(params RtArgs, key string, def int64) int64 {
	v, ok := params.Find(key)
	if !ok {
		return def
	}
	n, _ := v.AsInt()
	return n
}

// decoratorMonitor is invoked when the decorator's child returned Running.
// It mirrors Flow Logic's monitor: most decorators simply propagate
// Running upward, except TimeoutAfter, which may convert a late Running
// into a Failure without waiting for the child to finish.
func decoratorMonitor(kind DecoratorKind, params, args RtArgs, now time.Time) FlowDecision {
	args = newDecoratorArgs(args)
	switch kind {
	case TimeoutAfter:
		startV, ok := args.Find(decoratorStartedKey)
		if !ok {
			return popNode(newRunning(args.With(decoratorStartedKey, RtInt(now.UnixNano()))))
		}
		startNs, _ := startV.AsInt()
		dur := time.Duration(paramInt(params, decoratorParamDurMs, 0)) * time.Millisecond
		if dur > 0 && now.Sub(time.Unix(0, startNs)) >= dur {
			return popNode(newFailure(args.Remove(decoratorStartedKey), "timeout"))
		}
		return popNode(newRunning(args))
	default:
		return popNode(newRunning(args))
	}
}

// decoratorFinalize is invoked when the decorator's child finishes
// (Success or Failure).
func decoratorFinalize(kind DecoratorKind, params, args RtArgs, res finRes) FlowDecision {
	args = newDecoratorArgs(args)
	switch kind {
	case Invert:
		if res.success {
			return stay(newFailure(args, "inverted success"))
		}
		return stay(newSuccess(args))

	case RepeatN:
		n := paramInt(params, decoratorParamNKey, 1)
		if !res.success {
			return stay(newFailure(args.With(decoratorCountKey, RtInt(0)), res.reason))
		}
		countV, _ := args.Find(decoratorCountKey)
		count, _ := countV.AsInt()
		count++
		if count >= n {
			return stay(newSuccess(args.With(decoratorCountKey, RtInt(0))))
		}
		return stay(newRunning(args.With(decoratorCountKey, RtInt(count))))

	case RetryN:
		n := paramInt(params, decoratorParamNKey, 0)
		if res.success {
			return stay(newSuccess(args.With(decoratorCountKey, RtInt(0))))
		}
		countV, _ := args.Find(decoratorCountKey)
		count, _ := countV.AsInt()
		count++
		if count > n {
			return stay(newFailure(args.With(decoratorCountKey, RtInt(0)), "retry exhausted"))
		}
		return stay(newRunning(args.With(decoratorCountKey, RtInt(count))))

	case TimeoutAfter:
		a := args.Remove(decoratorStartedKey)
		if res.success {
			return stay(newSuccess(a))
		}
		return stay(newFailure(a, res.reason))

	case Delay:
		if res.success {
			return stay(newSuccess(args))
		}
		return stay(newFailure(args, res.reason))

	default:
		if res.success {
			return stay(newSuccess(args))
		}
		return stay(newFailure(args, res.reason))
	}
}

// decoratorReady is invoked the first time a decorator is ticked in a
// fresh execution (its child hasn't been pushed yet). Delay holds its
// child back until a configured duration has elapsed since the
// decorator's first visit; all other kinds descend into the child
// immediately.
func decoratorReady(kind DecoratorKind, params, args RtArgs, now time.Time) (descend bool, decision FlowDecision) {
	args = newDecoratorArgs(args)
	if kind != Delay {
		return true, FlowDecision{}
	}
	startV, ok := args.Find(decoratorStartedKey)
	if !ok {
		return false, popNode(newRunning(args.With(decoratorStartedKey, RtInt(now.UnixNano()))))
	}
	startNs, _ := startV.AsInt()
	dur := time.Duration(paramInt(params, decoratorParamDurMs, 0)) * time.Millisecond
	if now.Sub(time.Unix(0, startNs)) < dur {
		return false, popNode(newRunning(args))
	}
	return true, FlowDecision{}
}
