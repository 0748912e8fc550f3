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
	"fmt"
	"sync"
)

// reservedKeys are compiler-owned blackboard keys that leaves may not
// overwrite directly.
var reservedKeys = map[string]bool{
	"__compiler__": true,
}

// Blackboard is the shared, process-wide keyed value store read and
// written by leaves via a ContextRef. Every successful write bumps the
// revision counter.
type Blackboard struct {
	mu   sync.Mutex
	data map[string]RtValue
	rev  uint64
}

// NewBlackboard constructs an empty Blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{data: make(map[string]RtValue)}
}

// Get returns the value stored at key, and whether it was present.
func (b *Blackboard) Get(key string) (RtValue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok
}

// Put stores v at key, bumping the revision. Writing a reserved,
// compiler-owned key is rejected with BBForbidden.
func (b *Blackboard) Put(key string, v RtValue) error {
	if reservedKeys[key] {
		return fmt.Errorf("forester: blackboard key %q is reserved: %w", key, ErrBBForbidden)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = v
	b.rev++
	return nil
}

// Take removes and returns the value at key, if present, bumping the
// revision on an actual removal.
func (b *Blackboard) Take(key string) (RtValue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if ok {
		delete(b.data, key)
		b.rev++
	}
	return v, ok
}

// Rev returns the current revision counter.
func (b *Blackboard) Rev() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rev
}

// ErrBBForbidden is returned (wrapped) by Put when the key is reserved.
var ErrBBForbidden = fmt.Errorf("forester: forbidden blackboard key")
