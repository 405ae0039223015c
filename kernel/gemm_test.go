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

func randSlice(rng *rand.Rand, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = rng.NormFloat64()
	}
	return s
}

// naiveGemm is the unblocked reference the cache-blocked kernel must match.
func naiveGemm(transA, transB bool, m, n, k int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
	for i := range m {
		for j := range n {
			var s float64
			for p := range k {
				var av, bv float64
				if transA {
					av = a[p*lda+i]
				} else {
					av = a[i*lda+p]
				}
				if transB {
					bv = b[j*ldb+p]
				} else {
					bv = b[p*ldb+j]
				}
				s += av * bv
			}
			c[i*ldc+j] = alpha*s + beta*c[i*ldc+j]
		}
	}
}

func TestGemmMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	// Sizes straddle the cache-block edge so the k-blocking path is hit.
	m, n, k := 37, 29, 101
	for _, transA := range []bool{false, true} {
		for _, transB := range []bool{false, true} {
			asz := m * k
			a := randSlice(rng, asz)
			lda := k
			if transA {
				lda = m
			}
			b := randSlice(rng, k*n)
			ldb := n
			if transB {
				ldb = k
			}
			c0 := randSlice(rng, m*n)
			got := append([]float64(nil), c0...)
			want := append([]float64(nil), c0...)

			Gemm(transA, transB, m, n, k, 1.25, a, lda, b, ldb, -0.5, got, n)
			naiveGemm(transA, transB, m, n, k, 1.25, a, lda, b, ldb, -0.5, want, n)

			for i := range want {
				require.InDelta(t, want[i], got[i], 1e-10, "transA=%v transB=%v i=%d", transA, transB, i)
			}
		}
	}
}

func TestGemmTransposedOperandsExact(t *testing.T) {
	// Rectangular shapes with m, n, k all distinct, so any indexing mistake
	// in a transposed case either overruns the operand or misplaces values.
	const m, n, k = 2, 4, 3
	a := []float64{1, 2, 3, 4, 5, 6}  // 2x3
	at := []float64{1, 4, 2, 5, 3, 6} // 3x2, lda = m
	b := []float64{
		7, 8, 9, 10,
		11, 12, 13, 14,
		15, 16, 17, 18,
	} // 3x4
	bt := []float64{
		7, 11, 15,
		8, 12, 16,
		9, 13, 17,
		10, 14, 18,
	} // 4x3, ldb = k
	want := []float64{74, 80, 86, 92, 173, 188, 203, 218}

	cases := []struct {
		transA, transB bool
		a, b           []float64
		lda, ldb       int
	}{
		{false, false, a, b, k, n},
		{true, false, at, b, m, n},
		{false, true, a, bt, k, k},
		{true, true, at, bt, m, k},
	}
	for _, tc := range cases {
		got := make([]float64, m*n)
		Gemm(tc.transA, tc.transB, m, n, k, 1, tc.a, tc.lda, tc.b, tc.ldb, 0, got, n)
		require.Equal(t, want, got, "kernel transA=%v transB=%v", tc.transA, tc.transB)

		ref := make([]float64, m*n)
		naiveGemm(tc.transA, tc.transB, m, n, k, 1, tc.a, tc.lda, tc.b, tc.ldb, 0, ref, n)
		require.Equal(t, want, ref, "reference transA=%v transB=%v", tc.transA, tc.transB)
	}
}

func TestGemmBetaOnlyWhenKZero(t *testing.T) {
	c := []float64{2, 4}
	Gemm[float64](false, false, 1, 2, 0, 1, nil, 1, nil, 1, 0.5, c, 2)
	require.Equal(t, []float64{1, 2}, c)
}

func TestGemmFloat32(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	c := make([]float32, 4)
	Gemm[float32](false, false, 2, 2, 2, 1, a, 2, b, 2, 0, c, 2)
	require.Equal(t, []float32{19, 22, 43, 50}, c)
}

func TestHerkWritesBothTriangles(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m, k := 9, 14
	a := randSlice(rng, m*k)
	c := randSlice(rng, m*m)
	// Symmetrize the starting C so beta scaling preserves symmetry.
	for i := range m {
		for j := range i {
			c[j*m+i] = c[i*m+j]
		}
	}
	want := append([]float64(nil), c...)
	naiveGemm(false, true, m, m, k, 0.75, a, k, a, k, 0.25, want, m)

	Herk(m, k, 0.75, a, k, 0.25, c, m)
	for i := range m {
		for j := range m {
			require.InDelta(t, want[i*m+j], c[i*m+j], 1e-10)
			require.Equal(t, c[i*m+j], c[j*m+i])
		}
	}
}

func TestAdd(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{10, 20, 30, 40}
	Add(2, 2, -2, a, 2, b, 2)
	require.Equal(t, []float64{8, 16, 24, 32}, b)
}

func TestBatchesRunEveryOp(t *testing.T) {
	c1 := make([]float64, 1)
	c2 := make([]float64, 1)
	GemmBatch([]GemmOp[float64]{
		{M: 1, N: 1, K: 1, Alpha: 1, A: []float64{3}, Lda: 1, B: []float64{4}, Ldb: 1, C: c1, Ldc: 1},
		{M: 1, N: 1, K: 1, Alpha: 2, A: []float64{3}, Lda: 1, B: []float64{4}, Ldb: 1, C: c2, Ldc: 1},
	})
	require.Equal(t, []float64{12}, c1)
	require.Equal(t, []float64{24}, c2)
}
