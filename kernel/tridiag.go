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
	"errors"
	"math"
	"sort"

	"github.com/liamscarlett/slate-d35/tile"
)

// ErrNoConvergence is returned when the tridiagonal QL/QR iteration fails to
// deflate an eigenvalue within the iteration cap.
var ErrNoConvergence = errors.New("kernel: tridiagonal eigensolver did not converge")

// Sytd2 reduces the full-storage symmetric n x n row-major matrix A to
// tridiagonal form by unblocked Householder similarity transforms,
// A = Q*T*Qᵀ. Both triangles of A are referenced and overwritten. On return
// d (length n) holds the diagonal and e (length n-1) the off-diagonal of T.
func Sytd2[T tile.Floats](n int, a []T, lda int, d, e []T) {
	w := make([]T, n)
	v := make([]T, n)
	for i := 0; i < n-2; i++ {
		l := n - 1 - i // order of the trailing block below row i
		// Reflector annihilating A[i+2:, i].
		for r := range l - 1 {
			v[r] = a[(i+2+r)*lda+i]
		}
		beta, tau := Larfg(a[(i+1)*lda+i], v[:l-1])
		a[(i+1)*lda+i] = beta
		a[i*lda+i+1] = beta
		for r := i + 2; r < n; r++ {
			a[r*lda+i] = 0
			a[i*lda+r] = 0
		}
		if tau == 0 {
			continue
		}
		// Full reflector vector over rows i+1..n-1: shift the tail down one
		// slot and set the implicit leading 1.
		for r := l - 1; r >= 1; r-- {
			v[r] = v[r-1]
		}
		v[0] = 1
		// w = tau * A22 * v
		for r := range l {
			var s T
			ar := a[(i+1+r)*lda+i+1:]
			for c := range l {
				s += ar[c] * v[c]
			}
			w[r] = tau * s
		}
		// w -= (tau/2) * (wᵀv) * v
		var dot T
		for r := range l {
			dot += w[r] * v[r]
		}
		half := tau * dot / 2
		for r := range l {
			w[r] -= half * v[r]
		}
		// A22 -= v*wᵀ + w*vᵀ
		for r := range l {
			ar := a[(i+1+r)*lda+i+1:]
			for c := range l {
				ar[c] -= v[r]*w[c] + w[r]*v[c]
			}
		}
	}
	for i := range n {
		d[i] = a[i*lda+i]
	}
	for i := range n - 1 {
		e[i] = a[(i+1)*lda+i]
	}
}

// Sterf computes all eigenvalues of a symmetric tridiagonal matrix by the
// shifted QL/QR iteration, eigenvalues only. d (length n) holds the diagonal
// and is overwritten with the eigenvalues in ascending order; e (length n-1)
// holds the off-diagonal and is destroyed.
func Sterf[T tile.Floats](d, e []T) error {
	n := len(d)
	if n == 0 {
		return nil
	}
	if len(e) < n-1 {
		panic("kernel: off-diagonal too short")
	}
	dd := make([]float64, n)
	ee := make([]float64, n)
	for i := range n {
		dd[i] = float64(d[i])
	}
	for i := range n - 1 {
		ee[i] = float64(e[i])
	}
	ee[n-1] = 0

	const eps = 2.220446049250313e-16
	for l := 0; l < n; l++ {
		for iter := 0; ; iter++ {
			// Find the first negligible off-diagonal at or after l.
			m := l
			for ; m < n-1; m++ {
				s := math.Abs(dd[m]) + math.Abs(dd[m+1])
				if math.Abs(ee[m]) <= eps*s {
					break
				}
			}
			if m == l {
				break
			}
			if iter == 30*n {
				return ErrNoConvergence
			}
			// Wilkinson-style shift from the 2x2 at the top of the block.
			g := (dd[l+1] - dd[l]) / (2 * ee[l])
			r := math.Hypot(g, 1)
			g = dd[m] - dd[l] + ee[l]/(g+math.Copysign(r, g))
			s, c := 1.0, 1.0
			p := 0.0
			for i := m - 1; i >= l; i-- {
				f := s * ee[i]
				b := c * ee[i]
				r = math.Hypot(f, g)
				ee[i+1] = r
				if r == 0 {
					dd[i+1] -= p
					ee[m] = 0
					break
				}
				s = f / r
				c = g / r
				g = dd[i+1] - p
				r = (dd[i]-g)*s + 2*c*b
				p = s * r
				dd[i+1] = g + p
				g = c*r - b
				if i == l {
					dd[l] -= p
					ee[l] = g
					ee[m] = 0
				}
			}
		}
	}
	sort.Float64s(dd)
	for i := range n {
		d[i] = T(dd[i])
	}
	return nil
}
