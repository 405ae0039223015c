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

// blockQ builds the dense m×m orthogonal factor Q = I - V*Tf*Vᵀ.
func blockQ(m, kr int, v, tf []float64) []float64 {
	vt := make([]float64, m*kr) // V*Tf
	naiveGemm(false, false, m, kr, kr, 1, v, kr, tf, kr, 0, vt, kr)
	q := make([]float64, m*m)
	for i := range m {
		q[i*m+i] = 1
	}
	naiveGemm(false, true, m, m, kr, -1, vt, kr, v, kr, 1, q, m)
	return q
}

func qrFactor(t *testing.T, m, n int, a []float64) (q, r []float64) {
	t.Helper()
	kr := min(m, n)
	buf := append([]float64(nil), a...)
	tau := make([]float64, kr)
	Geqrf(m, n, buf, n, tau)

	v := make([]float64, m*kr)
	ExtractV(m, kr, buf, n, v, kr)
	tf := make([]float64, kr*kr)
	Larft(m, kr, v, kr, tau, tf, kr)

	r = make([]float64, m*n)
	for i := range kr {
		for j := i; j < n; j++ {
			r[i*n+j] = buf[i*n+j]
		}
	}
	return blockQ(m, kr, v, tf), r
}

func checkQR(t *testing.T, m, n int, a, q, r []float64) {
	t.Helper()
	// Q orthogonal.
	qtq := make([]float64, m*m)
	naiveGemm(true, false, m, m, m, 1, q, m, q, m, 0, qtq, m)
	for i := range m {
		for j := range m {
			want := 0.0
			if i == j {
				want = 1
			}
			require.InDelta(t, want, qtq[i*m+j], 1e-10, "QᵀQ(%d,%d)", i, j)
		}
	}
	// Q*R reproduces A.
	qr := make([]float64, m*n)
	naiveGemm(false, false, m, n, m, 1, q, m, r, n, 0, qr, n)
	for i := range qr {
		require.InDelta(t, a[i], qr[i], 1e-10)
	}
}

func TestGeqrfTallPanel(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	m, n := 9, 4
	a := randSlice(rng, m*n)
	q, r := qrFactor(t, m, n, a)
	checkQR(t, m, n, a, q, r)
}

func TestGeqrfSquare(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := 6
	a := randSlice(rng, m*m)
	q, r := qrFactor(t, m, m, a)
	checkQR(t, m, m, a, q, r)
}

func TestGeqrfWidePanel(t *testing.T) {
	// More columns than rows: only m reflectors exist, but every trailing
	// column must still be transformed so R is upper trapezoidal.
	rng := rand.New(rand.NewSource(8))
	m, n := 3, 7
	a := randSlice(rng, m*n)
	q, r := qrFactor(t, m, n, a)
	checkQR(t, m, n, a, q, r)
}

func TestLarfgAlreadyReduced(t *testing.T) {
	beta, tau := Larfg(3.0, []float64{0, 0})
	require.Equal(t, 3.0, beta)
	require.Zero(t, tau)
}

func TestLarfgAnnihilates(t *testing.T) {
	x := []float64{3, 4}
	beta, tau := Larfg(0, x)
	// |beta| equals the norm of the full input vector.
	require.InDelta(t, 5.0, abs(beta), 1e-12)
	require.NotZero(t, tau)

	// Applying H = I - tau*v*vᵀ to [alpha; x] must yield [beta; 0; 0].
	v := []float64{1, x[0], x[1]}
	in := []float64{0, 3, 4}
	var dot float64
	for i := range v {
		dot += v[i] * in[i]
	}
	out := make([]float64, 3)
	for i := range v {
		out[i] = in[i] - tau*dot*v[i]
	}
	require.InDelta(t, beta, out[0], 1e-12)
	require.InDelta(t, 0, out[1], 1e-12)
	require.InDelta(t, 0, out[2], 1e-12)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
