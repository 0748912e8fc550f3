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

// Timestamp is a tick counter, starting at 1.
type Timestamp = int

// reasonKey is the RtArgs entry name carrying a Failure's diagnostic string.
const reasonKey = "reason"

// TreeContext is the per-run mutable state the Forester drives an RTree
// walk with: an explicit call stack (no native recursion, so tree depth
// never risks a goroutine stack overflow and single-stepping is possible
// for tracing), the latest observed state per node, and the tick each
// node's state was last written on.
type TreeContext struct {
	tracer *Tracer

	stack []RNodeId

	state  map[RNodeId]RNodeState
	tsMap  map[RNodeId]Timestamp

	currTs    Timestamp
	tickLimit Timestamp
}

// NewTreeContext constructs a TreeContext for a single run. tickLimit of
// 0 means unbounded.
func NewTreeContext(tracer *Tracer, tickLimit Timestamp) *TreeContext {
	return &TreeContext{
		tracer:    tracer,
		state:     make(map[RNodeId]RNodeState),
		tsMap:     make(map[RNodeId]Timestamp),
		currTs:    1,
		tickLimit: tickLimit,
	}
}

// CurrTs returns the current tick.
func (c *TreeContext) CurrTs() Timestamp { return c.currTs }

// Push descends into id, growing the explicit stack and increasing the
// tracer's indent level.
func (c *TreeContext) Push(id RNodeId) error {
	if err := c.tracer.Right(); err != nil {
		return err
	}
	c.stack = append(c.stack, id)
	return nil
}

// Pop climbs back out of the current node, shrinking the stack and
// decreasing the tracer's indent level. Returns the popped id, or ok=false
// if the stack was already empty (an unexpected-state bug, not reported as
// an error here so callers can decide how to surface it).
func (c *TreeContext) Pop() (id RNodeId, ok bool, err error) {
	if len(c.stack) == 0 {
		return 0, false, nil
	}
	id = c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	if err := c.tracer.Left(); err != nil {
		return id, true, err
	}
	return id, true, nil
}

// Peek returns the top of the stack without popping it.
func (c *TreeContext) Peek() (RNodeId, bool) {
	if len(c.stack) == 0 {
		return 0, false
	}
	return c.stack[len(c.stack)-1], true
}

// StackLen returns the current stack depth; the stack is empty at the end
// of every tick (the root has been popped, whether still Running or
// terminated).
func (c *TreeContext) StackLen() int { return len(c.stack) }

// NewState records state as the latest observation for id, stamps the
// current tick into ts_map, and emits a NewState trace event.
func (c *TreeContext) NewState(id RNodeId, state RNodeState) error {
	c.tsMap[id] = c.currTs
	if err := c.tracer.TraceNewState(c.currTs, id, state); err != nil {
		return err
	}
	c.state[id] = state
	return nil
}

// StateLastSet returns the latest observed state for id, defaulting to
// Ready({}) if id has never been touched.
func (c *TreeContext) StateLastSet(id RNodeId) RNodeState {
	if s, ok := c.state[id]; ok {
		return s
	}
	return Ready(RtArgs{})
}

// StateInTs returns id's state as observed "in this tick": the latest
// state if id was touched on the current tick, else Ready carrying the
// latest state's args (memory survives; transient status does not). This
// is how reactive composites reset each tick.
func (c *TreeContext) StateInTs(id RNodeId) RNodeState {
	last := c.StateLastSet(id)
	if ts, ok := c.tsMap[id]; ok && ts == c.currTs {
		return last
	}
	return Ready(last.Args)
}

// NextTick advances the tick counter, emits a NextTick trace event, and
// fails with a Stopped error if the tick limit has now been reached.
func (c *TreeContext) NextTick() error {
	c.currTs++
	if err := c.tracer.TraceNextTick(c.currTs); err != nil {
		return err
	}
	if c.tickLimit != 0 && c.currTs >= c.tickLimit {
		return newStoppedError("tick limit exceeded")
	}
	return nil
}

// RootState translates the root node's latest state into a public
// TickResult, failing if the root is absent or still Ready.
func (c *TreeContext) RootState(root RNodeId) (TickResult, error) {
	s, ok := c.state[root]
	if !ok {
		return TickResult{}, newUexError("root node state is absent")
	}
	return s.ToTickResult()
}
