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
	"time"
)

// CancelScope threads Go's context cancellation through a single run: a
// parent context (optionally a deadline or timeout derived from one) is
// combined with the Forester's own cooperative Stop into one derived
// context, handed to every leaf invocation for that run.
//
// It must be initialised with Init prior to use; Init may be called any
// number of times, each time superseding (and cancelling) the prior
// context.
type CancelScope struct {
	parent func() (context.Context, context.CancelFunc)
	ctx    context.Context
	cancel context.CancelFunc
}

// WithCancel configures the scope to derive its context like
// context.WithCancel(parent).
func (c *CancelScope) WithCancel(parent context.Context) *CancelScope {
	c.parent = func() (context.Context, context.CancelFunc) { return context.WithCancel(parent) }
	return c
}

// WithDeadline configures the scope to derive its context like
// context.WithDeadline(parent, deadline).
func (c *CancelScope) WithDeadline(parent context.Context, deadline time.Time) *CancelScope {
	c.parent = func() (context.Context, context.CancelFunc) { return context.WithDeadline(parent, deadline) }
	return c
}

// WithTimeout configures the scope to derive its context like
// context.WithTimeout(parent, timeout).
func (c *CancelScope) WithTimeout(parent context.Context, timeout time.Duration) *CancelScope {
	c.parent = func() (context.Context, context.CancelFunc) { return context.WithTimeout(parent, timeout) }
	return c
}

// Init (re)derives the scope's context, cancelling any context it
// previously held.
func (c *CancelScope) Init() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.parent != nil {
		c.ctx, c.cancel = c.parent()
	} else {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
}

// Context returns the scope's current context, or nil if Init has never
// been called.
func (c *CancelScope) Context() context.Context { return c.ctx }

// Cancel cancels the scope's context; a no-op if it has none.
func (c *CancelScope) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Stopped reports whether the scope's context has already been
// cancelled, either cooperatively or by its parent.
func (c *CancelScope) Stopped() bool {
	return c.ctx != nil && c.ctx.Err() != nil
}

// Done returns the scope's cancellation channel, or nil if Init has
// never been called.
func (c *CancelScope) Done() <-chan struct{} {
	if c.ctx == nil {
		return nil
	}
	return c.ctx.Done()
}
