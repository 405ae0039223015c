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

// Package workerpool provides the shared pool of worker goroutines that
// executes compute tasks, and the Executor interface algorithms are written
// against so callers can substitute their own scheduling.
package workerpool

import (
	"runtime"
	"sync"
)

// Executor runs tasks asynchronously. Pool is the standard implementation;
// Async runs every task on its own goroutine and is used for tasks that may
// block on transport operations.
type Executor interface {
	// Go schedules task for execution. It must not block indefinitely and
	// must not drop tasks.
	Go(task func())
	// Workers returns the parallelism target, at least 1.
	Workers() int
}

// Pool executes tasks on a fixed set of worker goroutines. Submission never
// blocks: tasks queue until a worker is free. Close must be called to release
// the workers; submitting after Close panics.
type Pool struct {
	workers int
	tasks   chan func()
	done    chan struct{}

	mu      sync.Mutex
	pending []func()
	wg      sync.WaitGroup
}

// New creates a pool with n workers. n <= 0 selects GOMAXPROCS.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: n,
		tasks:   make(chan func()),
		done:    make(chan struct{}),
	}
	for range n {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for {
		select {
		case task := <-p.tasks:
			task()
			p.wg.Done()
		case <-p.done:
			return
		}
	}
}

// Go schedules task onto the pool.
func (p *Pool) Go(task func()) {
	p.wg.Add(1)
	select {
	case p.tasks <- task:
		return
	default:
	}
	// All workers busy: hand the task to the overflow drainer.
	p.mu.Lock()
	start := len(p.pending) == 0
	p.pending = append(p.pending, task)
	p.mu.Unlock()
	if start {
		go p.drain()
	}
}

// drain feeds queued tasks to workers as they free up.
func (p *Pool) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()
		select {
		case p.tasks <- task:
		case <-p.done:
			task()
			p.wg.Done()
		}
	}
}

// Workers returns the worker count.
func (p *Pool) Workers() int { return p.workers }

// Wait blocks until every task submitted so far has completed.
func (p *Pool) Wait() { p.wg.Wait() }

// Close stops the workers after in-flight tasks finish draining.
func (p *Pool) Close() {
	p.wg.Wait()
	close(p.done)
}

// Async is an Executor that runs every task on a fresh goroutine. Pipeline
// stages may block while waiting on transport, so they are scheduled through
// Async rather than occupying pool workers.
type Async struct{}

// Go runs task on its own goroutine.
func (Async) Go(task func()) { go task() }

// Workers reports GOMAXPROCS; Async itself does not bound parallelism.
func (Async) Workers() int { return runtime.GOMAXPROCS(0) }

// Parallel partitions [0, n) into roughly equal chunks and runs fn on each
// index using ex, blocking until all complete. The final chunk runs on the
// calling goroutine so a full pool cannot stall the fan-out.
func Parallel(ex Executor, n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	chunks := ex.Workers()
	if chunks > n {
		chunks = n
	}
	per := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for c := range chunks - 1 {
		lo := c * per
		hi := min(lo+per, n)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		ex.Go(func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		})
	}
	for i := (chunks - 1) * per; i < n; i++ {
		fn(i)
	}
	wg.Wait()
}
