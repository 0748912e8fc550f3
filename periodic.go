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
	"errors"
	"sync"
	"time"
)

// PeriodicRunner models a background loop that drives one Forester's
// Run to completion on a fixed period, until the first error, Stop, or
// context cancellation - the single-tree counterpart of re-running Run
// repeatedly by hand.
type PeriodicRunner interface {
	// Done closes once the runner has fully stopped.
	Done() <-chan struct{}
	// Err returns any error that caused the runner to stop.
	Err() error
	// Stop shuts the runner down asynchronously.
	Stop()
}

type periodicRunner struct {
	ctx      context.Context
	cancel   context.CancelFunc
	forester *Forester
	tickLim  Timestamp
	ticker   *time.Ticker
	done     chan struct{}
	stop     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	err      error
}

// errStopOnFailure marks a StopOnFailure runner's voluntary exit on a
// root Failure; it is never returned by PeriodicRunner.Err.
var errStopOnFailure = errors.New("forester: periodic runner stopped on failure")

// NewPeriodicRunner repeatedly calls forester.Run(ctx, tickLimit) every
// duration, until the context is cancelled, Stop is called, or a Run
// call returns an error. Panics if ctx, forester are nil, or duration <= 0.
func NewPeriodicRunner(ctx context.Context, duration time.Duration, forester *Forester, tickLimit Timestamp) PeriodicRunner {
	if ctx == nil {
		panic(errors.New("forester.NewPeriodicRunner: nil context"))
	}
	if forester == nil {
		panic(errors.New("forester.NewPeriodicRunner: nil forester"))
	}
	if duration <= 0 {
		panic(errors.New("forester.NewPeriodicRunner: duration <= 0"))
	}

	r := &periodicRunner{
		forester: forester,
		tickLim:  tickLimit,
		ticker:   time.NewTicker(duration),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	go r.run()
	return r
}

// NewPeriodicRunnerStopOnFailure behaves like NewPeriodicRunner, except
// that a root Failure result ends the loop without reporting an error
// via Err - only an actual Run error (a fatal condition per SS7) does.
func NewPeriodicRunnerStopOnFailure(ctx context.Context, duration time.Duration, forester *Forester, tickLimit Timestamp) PeriodicRunner {
	return stopOnFailureRunner{PeriodicRunner: NewPeriodicRunnerFunc(ctx, duration, func(ctx context.Context) error {
		result, err := forester.Run(ctx, tickLimit)
		if err != nil {
			return err
		}
		if result.Status == Failure {
			return errStopOnFailure
		}
		return nil
	})}
}

// NewPeriodicRunnerFunc is the generalised form of NewPeriodicRunner,
// sharing its loop: it ticks fn every duration instead of assuming a
// Forester, so callers needing custom per-tick logic (e.g. StopOnFailure)
// aren't forced to re-implement the ticker/done/stop shutdown shape.
func NewPeriodicRunnerFunc(ctx context.Context, duration time.Duration, fn func(ctx context.Context) error) PeriodicRunner {
	if ctx == nil {
		panic(errors.New("forester.NewPeriodicRunnerFunc: nil context"))
	}
	if fn == nil {
		panic(errors.New("forester.NewPeriodicRunnerFunc: nil fn"))
	}
	if duration <= 0 {
		panic(errors.New("forester.NewPeriodicRunnerFunc: duration <= 0"))
	}

	r := &periodicRunner{
		ticker: time.NewTicker(duration),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	go r.runFunc(fn)
	return r
}

func (r *periodicRunner) run() {
	r.runFunc(func(ctx context.Context) error {
		_, err := r.forester.Run(ctx, r.tickLim)
		return err
	})
}

func (r *periodicRunner) runFunc(fn func(ctx context.Context) error) {
	var err error
tickLoop:
	for err == nil {
		select {
		case <-r.ctx.Done():
			err = r.ctx.Err()
			break tickLoop
		case <-r.stop:
			break tickLoop
		case <-r.ticker.C:
			err = fn(r.ctx)
		}
	}
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.Stop()
	r.cancel()
	close(r.done)
}

func (r *periodicRunner) Done() <-chan struct{} { return r.done }

func (r *periodicRunner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *periodicRunner) Stop() {
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.stop)
	})
}

type stopOnFailureRunner struct {
	PeriodicRunner
}

func (r stopOnFailureRunner) Err() error {
	err := r.PeriodicRunner.Err()
	if err == errStopOnFailure {
		return nil
	}
	return err
}
