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

package kernel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetf2Reconstructs(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m, n := 11, 7
	a := randSlice(rng, m*n)
	orig := append([]float64(nil), a...)

	ipiv := make([]int, n)
	info := Getf2(m, n, a, n, ipiv)
	require.Zero(t, info)

	// Apply the recorded interchanges to the original, then compare with L*U.
	pa := append([]float64(nil), orig...)
	for j, p := range ipiv {
		SwapRowsBuf(pa, n, j, p, n)
	}
	for i := range m {
		for j := range n {
			var s float64
			for p := 0; p <= min(i, j); p++ {
				l := a[i*n+p]
				if p == i {
					l = 1
				}
				s += l * a[p*n+j]
			}
			require.InDelta(t, pa[i*n+j], s, 1e-12, "element (%d,%d)", i, j)
		}
	}
}

func TestGetf2PicksLargestPivot(t *testing.T) {
	a := []float64{
		1, 2,
		4, 3,
	}
	ipiv := make([]int, 2)
	info := Getf2(2, 2, a, 2, ipiv)
	require.Zero(t, info)
	require.Equal(t, 1, ipiv[0])
	require.Equal(t, float64(4), a[0*2+0])
}

func TestGetf2ZeroPivot(t *testing.T) {
	// Second column identically zero: elimination reaches an exact zero pivot
	// in column 2 (1-based).
	a := []float64{
		2, 0, 1,
		4, 0, 3,
		6, 0, 5,
	}
	ipiv := make([]int, 3)
	info := Getf2(3, 3, a, 3, ipiv)
	require.Equal(t, 2, info)
}

func TestSwapRowsBuf(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6}
	SwapRowsBuf(a, 3, 0, 1, 2)
	require.Equal(t, []float64{4, 5, 3, 1, 2, 6}, a)
	SwapRowsBuf(a, 3, 1, 1, 3)
	require.Equal(t, []float64{4, 5, 3, 1, 2, 6}, a)
}

func TestTrsmLeftLowerUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	m, n := 6, 3
	a := randSlice(rng, m*m)
	for i := range m {
		a[i*m+i] = 0 // unit diagonal is implicit
		for j := i + 1; j < m; j++ {
			a[i*m+j] = 0
		}
	}
	x := randSlice(rng, m*n)
	b := make([]float64, m*n)
	for i := range m {
		for j := range n {
			s := x[i*n+j]
			for p := range i {
				s += a[i*m+p] * x[p*n+j]
			}
			b[i*n+j] = s
		}
	}
	TrsmLeft(Lower, true, m, n, a, m, b, n)
	for i := range b {
		require.InDelta(t, x[i], b[i], 1e-12)
	}
}

func TestTrsmLeftUpper(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m, n := 5, 4
	a := randSlice(rng, m*m)
	for i := range m {
		a[i*m+i] += 4 // keep the solve well conditioned
		for j := range i {
			a[i*m+j] = 0
		}
	}
	x := randSlice(rng, m*n)
	b := make([]float64, m*n)
	for i := range m {
		for j := range n {
			var s float64
			for p := i; p < m; p++ {
				s += a[i*m+p] * x[p*n+j]
			}
			b[i*n+j] = s
		}
	}
	TrsmLeft(Upper, false, m, n, a, m, b, n)
	for i := range b {
		require.InDelta(t, x[i], b[i], 1e-10)
	}
}
