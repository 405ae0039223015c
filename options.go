// Copyright 2025 slate-d35 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slate

import (
	"fmt"
	"time"

	"github.com/liamscarlett/slate-d35/device"
	"github.com/liamscarlett/slate-d35/workerpool"
)

// Timers is a caller-supplied metrics sink. Engine calls record the wall time
// of their major phases under stable names such as "gesv_mixed.getrf_lo".
// A nil sink disables recording; implementations must be safe for use from a
// single controlling goroutine.
type Timers interface {
	Record(name string, d time.Duration)
}

// TimerMap is a Timers backed by a map, accumulating durations per name.
// Not safe for concurrent use; intended for one controller invocation.
type TimerMap map[string]time.Duration

// Record adds d to the named bucket.
func (t TimerMap) Record(name string, d time.Duration) { t[name] += d }

type options struct {
	lookahead int
	target    Target
	tol       float64
	maxIter   int
	fallback  bool

	pool    workerpool.Executor
	ownPool *workerpool.Pool
	dev     *device.Device
	timers  Timers
}

func defaultOptions() *options {
	return &options{
		lookahead: 1,
		target:    HostTask,
		maxIter:   30,
		fallback:  true,
	}
}

// Option configures an engine call. Invalid values are rejected at call
// entry, before any tile allocation.
type Option func(*options) error

// WithLookahead bounds how many disseminate steps may run ahead of the
// currently-advancing step. Zero serializes the pipeline. Default 1.
func WithLookahead(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("%w: lookahead %d < 0", ErrBadConfig, n)
		}
		o.lookahead = n
		return nil
	}
}

// WithTarget selects the backend execution strategy. Default HostTask.
func WithTarget(t Target) Option {
	return func(o *options) error {
		if t > Devices {
			return fmt.Errorf("%w: unknown target %d", ErrBadConfig, t)
		}
		o.target = t
		return nil
	}
}

// WithTolerance sets the iterative-refinement convergence tolerance.
// Default machine-epsilon * sqrt(n).
func WithTolerance(tol float64) Option {
	return func(o *options) error {
		if tol <= 0 {
			return fmt.Errorf("%w: tolerance %g <= 0", ErrBadConfig, tol)
		}
		o.tol = tol
		return nil
	}
}

// WithMaxIterations caps the refinement iterations. Default 30.
func WithMaxIterations(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: max iterations %d <= 0", ErrBadConfig, n)
		}
		o.maxIter = n
		return nil
	}
}

// WithFallbackSolver enables or disables the full-precision fallback when
// refinement fails to converge. Default enabled.
func WithFallbackSolver(enabled bool) Option {
	return func(o *options) error {
		o.fallback = enabled
		return nil
	}
}

// WithPool supplies the worker pool compute tasks are dispatched onto.
// Without it each call creates and drains a private pool.
func WithPool(ex workerpool.Executor) Option {
	return func(o *options) error {
		if ex == nil {
			return fmt.Errorf("%w: nil pool", ErrBadConfig)
		}
		o.pool = ex
		return nil
	}
}

// WithDevice supplies the accelerator used by the Devices target. Without it
// the Devices target uses a process-default device.
func WithDevice(d *device.Device) Option {
	return func(o *options) error {
		if d == nil {
			return fmt.Errorf("%w: nil device", ErrBadConfig)
		}
		o.dev = d
		return nil
	}
}

// WithTimers supplies a metrics sink for phase timings.
func WithTimers(t Timers) Option {
	return func(o *options) error {
		o.timers = t
		return nil
	}
}

var defaultDevice = device.New(0)

// gatherOptions validates opts and materializes per-call resources.
// release must be called on every exit path.
func gatherOptions(opts []Option) (o *options, release func(), err error) {
	o = defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, nil, err
		}
	}
	if o.pool == nil {
		o.ownPool = workerpool.New(0)
		o.pool = o.ownPool
	}
	if o.dev == nil && o.target == Devices {
		o.dev = defaultDevice
	}
	return o, func() {
		if o.ownPool != nil {
			o.ownPool.Close()
		}
	}, nil
}

func (o *options) record(name string, start time.Time) {
	if o.timers != nil {
		o.timers.Record(name, time.Since(start))
	}
}

// device returns the accelerator handle when the Devices target is active.
func (o *options) device() *device.Device {
	if o.target == Devices {
		return o.dev
	}
	return nil
}

// sub derives per-phase options for a nested engine call, preserving the
// execution configuration but not the caller's tolerance semantics.
func (o *options) sub() []Option {
	var opts []Option
	opts = append(opts, WithLookahead(o.lookahead), WithTarget(o.target), WithPool(o.pool))
	if o.dev != nil {
		opts = append(opts, WithDevice(o.dev))
	}
	if o.timers != nil {
		opts = append(opts, WithTimers(o.timers))
	}
	return opts
}
