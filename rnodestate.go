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

import "fmt"

// RNodeState is a tagged variant carrying the RtArgs memory a node keeps
// across ticks, alongside its current Status. Ready is never surfaced as
// a finished result (see ToTickResult).
type RNodeState struct {
	Status Status
	Args   RtArgs
}

const (
	// readyStatus is an internal sentinel distinguishing "not yet ticked
	// this run" from the three live Status values; it must never escape
	// to a caller as a Status.
	readyStatus Status = 0
)

// Ready constructs a Ready RNodeState with the given memory.
func Ready(args RtArgs) RNodeState { return RNodeState{Status: readyStatus, Args: args} }

// IsReady reports whether the receiver is the Ready state.
func (s RNodeState) IsReady() bool { return s.Status == readyStatus }

// IsRunning reports whether the receiver is the Running state.
func (s RNodeState) IsRunning() bool { return s.Status == Running }

// IsFinished reports whether the receiver is Success or Failure.
func (s RNodeState) IsFinished() bool { return s.Status == Success || s.Status == Failure }

// newRunning, newSuccess and newFailure construct the corresponding
// RNodeState. newFailure stamps the reason entry per the invariant that
// every Failure surfaced to a parent carries one.
func newRunning(args RtArgs) RNodeState { return RNodeState{Status: Running, Args: args} }
func newSuccess(args RtArgs) RNodeState { return RNodeState{Status: Success, Args: args} }
func newFailure(args RtArgs, reason string) RNodeState {
	return RNodeState{Status: Failure, Args: args.With(reasonKey, RtStr(reason))}
}

// fromTick converts a leaf's raw (Status, reason) tick outcome into an
// RNodeState carrying tickArgs as its memory.
func fromTick(tickArgs RtArgs, status Status, reason string) RNodeState {
	switch status {
	case Success:
		return newSuccess(tickArgs)
	case Failure:
		return newFailure(tickArgs, reason)
	default:
		return newRunning(tickArgs)
	}
}

// ToTickResult translates the receiver into a public TickResult. Ready is
// always an error: a node's state should never be observed as Ready by
// anything other than the Forester's own dispatch.
func (s RNodeState) ToTickResult() (TickResult, error) {
	switch s.Status {
	case readyStatus:
		return TickResult{}, newUexError("ready is an unexpected terminal state")
	case Running:
		return running(), nil
	case Success:
		return success(), nil
	case Failure:
		reason, _ := s.Args.Find(reasonKey)
		r, _ := reason.AsString()
		return failure(r), nil
	default:
		return TickResult{}, newUexError(fmt.Sprintf("unknown RNodeState status %d", s.Status))
	}
}

// String implements fmt.Stringer.
func (s RNodeState) String() string {
	var tag string
	switch s.Status {
	case readyStatus:
		tag = "ready"
	case Running:
		tag = "running"
	case Success:
		tag = "success"
	case Failure:
		tag = "failure"
	}
	return fmt.Sprintf("%s(%s)", tag, s.Args)
}
