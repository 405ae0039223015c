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

import "github.com/liamscarlett/slate-d35/tile"

// Getf2 factors the m x n row-major panel A = P*L*U with partial pivoting,
// n <= m. L is unit lower trapezoidal and overwrites the strictly-lower part,
// U overwrites the upper triangle. ipiv must have length n; on return
// ipiv[j] is the zero-based row swapped with row j at step j.
//
// Returns 0 on success, or the 1-based column index of the first exactly-zero
// pivot. The panel contents are unspecified after a zero pivot.
func Getf2[T tile.Floats](m, n int, a []T, lda int, ipiv []int) int {
	if len(ipiv) < n {
		panic("kernel: ipiv too short")
	}
	for j := range n {
		// Pivot search down column j.
		p := j
		pv := absT(a[j*lda+j])
		for i := j + 1; i < m; i++ {
			if v := absT(a[i*lda+j]); v > pv {
				p, pv = i, v
			}
		}
		ipiv[j] = p
		if pv == 0 {
			return j + 1
		}
		if p != j {
			SwapRowsBuf(a, lda, j, p, n)
		}
		piv := a[j*lda+j]
		for i := j + 1; i < m; i++ {
			lij := a[i*lda+j] / piv
			a[i*lda+j] = lij
			for l := j + 1; l < n; l++ {
				a[i*lda+l] -= lij * a[j*lda+l]
			}
		}
	}
	return 0
}

// SwapRowsBuf exchanges the first n elements of rows r1 and r2 of a
// row-major buffer.
func SwapRowsBuf[T tile.Floats](a []T, lda, r1, r2, n int) {
	if r1 == r2 {
		return
	}
	x := a[r1*lda : r1*lda+n]
	y := a[r2*lda : r2*lda+n]
	for i := range n {
		x[i], y[i] = y[i], x[i]
	}
}

// Uplo selects the triangle of a triangular-solve operand.
type Uplo uint8

const (
	// Lower selects the lower triangle.
	Lower Uplo = iota
	// Upper selects the upper triangle.
	Upper
)

// TrsmLeft solves op(A)*X = B in place over B, where A is the m x m
// triangular tile selected by uplo, and B is m x n row-major. Unit declares
// an implicit unit diagonal.
func TrsmLeft[T tile.Floats](uplo Uplo, unit bool, m, n int, a []T, lda int, b []T, ldb int) {
	if uplo == Lower {
		for i := range m {
			bi := b[i*ldb : i*ldb+n]
			for p := range i {
				aip := a[i*lda+p]
				if aip == 0 {
					continue
				}
				bp := b[p*ldb : p*ldb+n]
				for j := range n {
					bi[j] -= aip * bp[j]
				}
			}
			if !unit {
				d := a[i*lda+i]
				for j := range n {
					bi[j] /= d
				}
			}
		}
		return
	}
	for i := m - 1; i >= 0; i-- {
		bi := b[i*ldb : i*ldb+n]
		for p := i + 1; p < m; p++ {
			aip := a[i*lda+p]
			if aip == 0 {
				continue
			}
			bp := b[p*ldb : p*ldb+n]
			for j := range n {
				bi[j] -= aip * bp[j]
			}
		}
		if !unit {
			d := a[i*lda+i]
			for j := range n {
				bi[j] /= d
			}
		}
	}
}

// TrsmOp is one triangular solve in a batch.
type TrsmOp[T tile.Floats] struct {
	Uplo Uplo
	Unit bool
	M, N int
	A    []T
	Lda  int
	B    []T
	Ldb  int
}

// Apply runs the operation.
func (op TrsmOp[T]) Apply() {
	TrsmLeft(op.Uplo, op.Unit, op.M, op.N, op.A, op.Lda, op.B, op.Ldb)
}

// TrsmBatch processes a whole batch in one kernel-library call.
func TrsmBatch[T tile.Floats](ops []TrsmOp[T]) {
	for _, op := range ops {
		op.Apply()
	}
}

func absT[T tile.Floats](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
