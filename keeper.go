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
)

// ActionFunc is a Sync action's tick implementation: it runs on the
// driver's own goroutine and must not block for long.
type ActionFunc func(ctx context.Context, args RtArgs, ref LocalRef) (Status, string)

// AsyncActionFunc is an Async action's tick implementation: it is
// submitted to its own goroutine on first tick, and subsequent ticks
// (while it's in flight) poll for completion without blocking or
// resubmitting.
type AsyncActionFunc func(ctx context.Context, args RtArgs, ref LocalRef) (Status, string)

// Action is a leaf's executable implementation, resolved by name from the
// Keeper's registry. Exactly one of the Sync/Async/Remote fields is set.
type Action struct {
	Sync   ActionFunc
	Async  AsyncActionFunc
	Remote *RemoteAction
}

// Keeper resolves a leaf name to its executable Action, and enforces the
// "at most one in-flight async/remote invocation per leaf id" contract
// via the inflight registry.
type Keeper struct {
	mu      sync.RWMutex
	actions map[string]Action
	flight  *inflightRegistry
}

// NewKeeper constructs an empty Keeper.
func NewKeeper() *Keeper {
	return &Keeper{
		actions: make(map[string]Action),
		flight:  newInflightRegistry(),
	}
}

// Register binds name to action, replacing any existing binding.
func (k *Keeper) Register(name string, action Action) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.actions[name] = action
}

// Resolve looks up the Action bound to name.
func (k *Keeper) Resolve(name string) (Action, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	a, ok := k.actions[name]
	return a, ok
}

// Tick runs (or polls) the action bound to name for leaf id, returning
// its outcome as a (Status, reason) pair ready for fromTick. An
// unresolvable name, or an action invocation error, is converted to a
// Failure at this boundary per spec.md SS7 - it is never returned as a Go
// error from Tick.
func (k *Keeper) Tick(ctx context.Context, id RNodeId, name string, args RtArgs, ref LocalRef) (Status, string) {
	action, ok := k.Resolve(name)
	if !ok {
		return Failure, fmt.Sprintf("unresolved action %q", name)
	}
	switch {
	case action.Sync != nil:
		return action.Sync(ctx, args, ref)
	case action.Async != nil:
		return k.flight.tickAsync(ctx, id, args, ref, action.Async)
	case action.Remote != nil:
		return k.flight.tickRemote(ctx, id, args, ref, *action.Remote)
	default:
		return Failure, fmt.Sprintf("action %q has no implementation", name)
	}
}

// Stop cancels and drains every in-flight async/remote invocation. Call
// when the owning Forester stops.
func (k *Keeper) Stop() {
	k.flight.stopAll()
}
