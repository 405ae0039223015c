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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liamscarlett/slate-d35/comm"
	"github.com/liamscarlett/slate-d35/matrix"
)

var allTargets = []Target{HostTask, HostNest, HostBatch, Devices}

func runGroup(t *testing.T, size int, fn func(c *comm.Comm) error) {
	t.Helper()
	require.NoError(t, comm.NewGroup(size).Run(fn))
}

func randDense(seed int64, m, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	d := make([]float64, m*n)
	for i := range d {
		d[i] = rng.NormFloat64()
	}
	return d
}

func symmetrize(d []float64, n int) {
	for i := range n {
		for j := range i {
			d[j*n+i] = d[i*n+j]
		}
	}
}

// denseGemm computes C = alpha*A*B + beta*C on row-major dense buffers.
func denseGemm(m, n, k int, alpha float64, a, b []float64, beta float64, c []float64) {
	for i := range m {
		for j := range n {
			var s float64
			for p := range k {
				s += a[i*k+p] * b[p*n+j]
			}
			c[i*n+j] = alpha*s + beta*c[i*n+j]
		}
	}
}

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > m {
			m = d
		}
	}
	return m
}

func newGeneral(c *comm.Comm, dense []float64, m, n, nb, p, q int) *matrix.Matrix[float64] {
	a := matrix.New[float64](c, m, n, nb, p, q)
	a.InsertLocalTiles()
	a.FromDense(dense)
	return a
}

func newSymmetric(c *comm.Comm, dense []float64, n, nb, p, q int) *matrix.Matrix[float64] {
	a := matrix.NewSymmetric[float64](c, n, nb, p, q)
	a.InsertLocalTiles()
	a.FromDense(dense)
	return a
}
