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
	"sync"

	"github.com/joeycumines/go-bigbuff"
)

// inflightSlot tracks (at most) one in-progress async/remote invocation
// for a single leaf id, built on bigbuff.Worker exactly as
// behaviortree.manager aggregates Ticker goroutines: Do starts run at
// most once, and the returned release func lets the slot's goroutine
// wind down once its result has been consumed.
type inflightSlot struct {
	once    sync.Once
	worker  bigbuff.Worker
	release func()

	mu     sync.Mutex
	ready  bool
	status Status
	reason string
}

// tick submits run on the first call for this slot, and polls its result
// (without resubmitting) on every subsequent call, returning Running
// until run completes.
func (s *inflightSlot) tick(run func(stop <-chan struct{}) (Status, string)) (Status, string) {
	s.once.Do(func() {
		s.release = s.worker.Do(func(stop <-chan struct{}) {
			status, reason := run(stop)
			s.mu.Lock()
			s.ready = true
			s.status = status
			s.reason = reason
			s.mu.Unlock()
		})
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return s.status, s.reason
	}
	return Running, ""
}

// finish releases the slot's lease on its worker goroutine; call once its
// result has been consumed, or to force an early cancellation.
func (s *inflightSlot) finish() {
	if s.release != nil {
		s.release()
	}
}

// inflightRegistry enforces "at most one in-flight async/remote
// invocation per leaf id" across an entire run, keyed by RNodeId (the
// compiled tree's per-node identity, stable across ticks of the same
// execution).
type inflightRegistry struct {
	mu    sync.Mutex
	slots map[RNodeId]*inflightSlot
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{slots: make(map[RNodeId]*inflightSlot)}
}

func (r *inflightRegistry) slotFor(id RNodeId) *inflightSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		s = &inflightSlot{}
		r.slots[id] = s
	}
	return s
}

func (r *inflightRegistry) clear(id RNodeId) {
	r.mu.Lock()
	delete(r.slots, id)
	r.mu.Unlock()
}

// tickAsync drives an AsyncActionFunc through its slot, wiring the
// slot's stop signal into the context passed to fn so a Keeper.Stop (or
// a consumed terminal result) can unblock a lingering goroutine.
func (r *inflightRegistry) tickAsync(ctx context.Context, id RNodeId, args RtArgs, ref LocalRef, fn AsyncActionFunc) (Status, string) {
	slot := r.slotFor(id)
	status, reason := slot.tick(func(stop <-chan struct{}) (Status, string) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-runCtx.Done():
			}
		}()
		return fn(runCtx, args, ref)
	})
	if status != Running {
		r.clear(id)
		slot.finish()
	}
	return status, reason
}

// tickRemote drives a RemoteAction HTTP call through its slot, the same
// single-flight way tickAsync drives a local goroutine.
func (r *inflightRegistry) tickRemote(ctx context.Context, id RNodeId, args RtArgs, ref LocalRef, remote RemoteAction) (Status, string) {
	slot := r.slotFor(id)
	status, reason := slot.tick(func(stop <-chan struct{}) (Status, string) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-runCtx.Done():
			}
		}()
		return remote.invoke(runCtx, args, ref)
	})
	if status != Running {
		r.clear(id)
		slot.finish()
	}
	return status, reason
}

// stopAll releases every still-active slot's lease, letting their
// goroutines observe cancellation and exit.
func (r *inflightRegistry) stopAll() {
	r.mu.Lock()
	slots := make([]*inflightSlot, 0, len(r.slots))
	for _, s := range r.slots {
		slots = append(slots, s)
	}
	r.slots = make(map[RNodeId]*inflightSlot)
	r.mu.Unlock()
	for _, s := range slots {
		s.finish()
	}
}
