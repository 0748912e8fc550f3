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

// Env is a minimal read-only environment handle threaded through every
// leaf-facing context ref (working directory, remote server host/port,
// anything a leaf might need that isn't blackboard state).
type Env map[string]string

// Get returns the named environment entry, or "" if absent.
func (e Env) Get(key string) string { return e[key] }

// LocalRef is the read-biased handle passed to a Sync or Async action
// running on this process: full blackboard and tracer access, plus the
// current tick, without exposing the rest of TreeContext (the stack,
// other nodes' state) that only the Forester should mutate.
type LocalRef struct {
	bb     *Blackboard
	tracer *Tracer
	ts     Timestamp
	env    Env
}

// NewLocalRef constructs a LocalRef bound to the given run's services.
func NewLocalRef(bb *Blackboard, tracer *Tracer, ts Timestamp, env Env) LocalRef {
	return LocalRef{bb: bb, tracer: tracer, ts: ts, env: env}
}

// BB returns the shared Blackboard.
func (r LocalRef) BB() *Blackboard { return r.bb }

// Trace emits a Custom trace event at the current tick.
func (r LocalRef) Trace(msg string) error { return r.tracer.TraceCustom(r.ts, msg) }

// CurrentTick returns the tick this ref was captured at.
func (r LocalRef) CurrentTick() Timestamp { return r.ts }

// Env returns the read-only runtime environment.
func (r LocalRef) Env() Env { return r.env }

// RemoteRef is the serializable context summary sent to a Remote action:
// it carries no blackboard or tracer handle, since a separate process
// can't share this process's mutexes - only a tick number, the local
// HTTP server's port (so the remote action can call back), and the
// environment.
type RemoteRef struct {
	CurrentTick Timestamp `json:"current_tick"`
	Port        uint16    `json:"port"`
	Env         Env       `json:"env"`
}

// NewRemoteRef constructs a RemoteRef for serialization to a remote action.
func NewRemoteRef(ts Timestamp, port uint16, env Env) RemoteRef {
	return RemoteRef{CurrentTick: ts, Port: port, Env: env}
}
