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
	"github.com/liamscarlett/slate-d35/internal/cpuinfo"
	"github.com/liamscarlett/slate-d35/tile"
)

// Gemm computes C = alpha*op(A)*op(B) + beta*C on row-major buffers.
//
//   - op(A) is m x k (A is k x m when transA)
//   - op(B) is k x n (B is n x k when transB)
//   - C is m x n
//
// The k dimension is cache-blocked; the block edge comes from cpuinfo.
func Gemm[T tile.Floats](transA, transB bool, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int) {
	if m == 0 || n == 0 {
		return
	}
	scaleRows(beta, m, n, c, ldc)
	if k == 0 || alpha == 0 {
		return
	}
	nb := cpuinfo.BlockDim()
	for p0 := 0; p0 < k; p0 += nb {
		pEnd := min(p0+nb, k)
		for i := range m {
			ci := c[i*ldc : i*ldc+n]
			for p := p0; p < pEnd; p++ {
				var aip T
				if transA {
					aip = a[p*lda+i]
				} else {
					aip = a[i*lda+p]
				}
				if aip == 0 {
					continue
				}
				aip *= alpha
				if transB {
					for j := range n {
						ci[j] += aip * b[j*ldb+p]
					}
				} else {
					bp := b[p*ldb : p*ldb+n]
					for j := range n {
						ci[j] += aip * bp[j]
					}
				}
			}
		}
	}
}

// Herk computes the symmetric rank-k update C = alpha*A*Aᵀ + beta*C on a
// full-storage symmetric m x m tile (both triangles are written).
//
//   - A is m x k (row-major)
//   - C is m x m (row-major)
func Herk[T tile.Floats](m, k int, alpha T, a []T, lda int, beta T, c []T, ldc int) {
	scaleRows(beta, m, m, c, ldc)
	for i := range m {
		for j := 0; j <= i; j++ {
			var s T
			for p := range k {
				s += a[i*lda+p] * a[j*lda+p]
			}
			s *= alpha
			c[i*ldc+j] += s
			if i != j {
				c[j*ldc+i] += s
			}
		}
	}
}

// Add computes B = alpha*A + B element-wise on m x n row-major buffers.
func Add[T tile.Floats](m, n int, alpha T, a []T, lda int, b []T, ldb int) {
	for i := range m {
		for j := range n {
			b[i*ldb+j] += alpha * a[i*lda+j]
		}
	}
}

func scaleRows[T tile.Floats](beta T, m, n int, c []T, ldc int) {
	if beta == 1 {
		return
	}
	for i := range m {
		ci := c[i*ldc : i*ldc+n]
		if beta == 0 {
			for j := range ci {
				ci[j] = 0
			}
		} else {
			for j := range ci {
				ci[j] *= beta
			}
		}
	}
}

// GemmOp is one multiply-accumulate in a batch. Buffers are row-major.
type GemmOp[T tile.Floats] struct {
	TransA, TransB bool
	M, N, K        int
	Alpha, Beta    T
	A              []T
	Lda            int
	B              []T
	Ldb            int
	C              []T
	Ldc            int
}

// Apply runs the operation.
func (op GemmOp[T]) Apply() {
	Gemm(op.TransA, op.TransB, op.M, op.N, op.K, op.Alpha, op.A, op.Lda, op.B, op.Ldb, op.Beta, op.C, op.Ldc)
}

// GemmBatch processes a whole batch in one kernel-library call.
func GemmBatch[T tile.Floats](ops []GemmOp[T]) {
	for _, op := range ops {
		op.Apply()
	}
}

// HerkOp is one symmetric rank-k update in a batch.
type HerkOp[T tile.Floats] struct {
	M, K        int
	Alpha, Beta T
	A           []T
	Lda         int
	C           []T
	Ldc         int
}

// Apply runs the operation.
func (op HerkOp[T]) Apply() {
	Herk(op.M, op.K, op.Alpha, op.A, op.Lda, op.Beta, op.C, op.Ldc)
}

// HerkBatch processes a whole batch in one kernel-library call.
func HerkBatch[T tile.Floats](ops []HerkOp[T]) {
	for _, op := range ops {
		op.Apply()
	}
}
