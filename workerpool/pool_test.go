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

package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsEverything(t *testing.T) {
	p := New(4)
	defer p.Close()

	var n atomic.Int64
	for range 200 {
		p.Go(func() { n.Add(1) })
	}
	p.Wait()
	require.Equal(t, int64(200), n.Load())
}

func TestPoolOverflowQueue(t *testing.T) {
	// One worker, many blocking submissions: Go must never block the
	// submitter even with every worker busy.
	p := New(1)
	defer p.Close()

	gate := make(chan struct{})
	var n atomic.Int64
	for range 50 {
		p.Go(func() {
			<-gate
			n.Add(1)
		})
	}
	close(gate)
	p.Wait()
	require.Equal(t, int64(50), n.Load())
}

func TestPoolDefaultWorkers(t *testing.T) {
	p := New(0)
	defer p.Close()
	require.Equal(t, runtime.GOMAXPROCS(0), p.Workers())
}

func TestAsyncRuns(t *testing.T) {
	var wg sync.WaitGroup
	var n atomic.Int64
	for range 10 {
		wg.Add(1)
		Async{}.Go(func() {
			defer wg.Done()
			n.Add(1)
		})
	}
	wg.Wait()
	require.Equal(t, int64(10), n.Load())
	require.GreaterOrEqual(t, Async{}.Workers(), 1)
}

func TestParallelCoversRange(t *testing.T) {
	p := New(3)
	defer p.Close()

	for _, n := range []int{0, 1, 2, 7, 64} {
		hits := make([]atomic.Int32, n)
		Parallel(p, n, func(i int) { hits[i].Add(1) })
		for i := range hits {
			require.Equal(t, int32(1), hits[i].Load(), "index %d", i)
		}
	}
}

func TestParallelFullPoolDoesNotStall(t *testing.T) {
	// Saturate the pool with blocked tasks; Parallel still completes because
	// the final chunk runs on the caller.
	p := New(1)
	defer p.Close()

	gate := make(chan struct{})
	p.Go(func() { <-gate })

	var n atomic.Int64
	done := make(chan struct{})
	go func() {
		Parallel(p, 8, func(i int) { n.Add(1) })
		close(done)
	}()
	close(gate)
	<-done
	p.Wait()
	require.Equal(t, int64(8), n.Load())
}
