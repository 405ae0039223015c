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
	"math"

	"github.com/liamscarlett/slate-d35/tile"
)

// Larfg generates an elementary Householder reflector H such that
// H * [alpha; x] = [beta; 0], with H = I - tau*v*vᵀ and v[0] = 1.
// On return x holds the tail of v. Returns beta and tau; tau is zero when
// the input is already in the target form.
func Larfg[T tile.Floats](alpha T, x []T) (beta, tau T) {
	var xnorm float64
	for _, v := range x {
		xnorm += float64(v) * float64(v)
	}
	if xnorm == 0 {
		return alpha, 0
	}
	af := float64(alpha)
	bf := -math.Copysign(math.Hypot(af, math.Sqrt(xnorm)), af)
	tau = T((bf - af) / bf)
	scale := T(1 / (af - bf))
	for i := range x {
		x[i] *= scale
	}
	return T(bf), tau
}

// Geqrf computes the unblocked Householder QR factorization of the m x n
// row-major panel A. On return the upper triangle holds R and the
// strictly-lower part holds the reflector tails; tau (length min(m, n)) holds
// the reflector scales. Wide panels (n > m) generate m reflectors and still
// update all n columns.
func Geqrf[T tile.Floats](m, n int, a []T, lda int, tau []T) {
	kr := min(m, n)
	if len(tau) < kr {
		panic("kernel: tau too short")
	}
	col := make([]T, m)
	for j := range kr {
		// Generate the reflector for column j.
		h := m - j - 1
		for i := range h {
			col[i] = a[(j+1+i)*lda+j]
		}
		beta, t := Larfg(a[j*lda+j], col[:h])
		tau[j] = t
		a[j*lda+j] = beta
		for i := range h {
			a[(j+1+i)*lda+j] = col[i]
		}
		if t == 0 {
			continue
		}
		// Apply H = I - tau*v*vᵀ to the trailing columns.
		for l := j + 1; l < n; l++ {
			w := a[j*lda+l]
			for i := j + 1; i < m; i++ {
				w += a[i*lda+j] * a[i*lda+l]
			}
			w *= t
			a[j*lda+l] -= w
			for i := j + 1; i < m; i++ {
				a[i*lda+l] -= w * a[i*lda+j]
			}
		}
	}
}

// Larft forms the upper-triangular block-reflector factor Tf (k x k,
// row-major) for the forward column-wise product of k reflectors,
// Q = I - V*Tf*Vᵀ. V is m x k row-major in explicit form: unit diagonal
// stored, zeros above the diagonal stored.
func Larft[T tile.Floats](m, k int, v []T, ldv int, tau []T, tf []T, ldt int) {
	for i := range k {
		for j := range k {
			tf[i*ldt+j] = 0
		}
	}
	for i := range k {
		if tau[i] == 0 {
			continue
		}
		tf[i*ldt+i] = tau[i]
		if i == 0 {
			continue
		}
		// w = -tau[i] * V[:,0:i]ᵀ * v_i
		w := make([]T, i)
		for c := range i {
			var s T
			for r := c; r < m; r++ {
				s += v[r*ldv+c] * v[r*ldv+i]
			}
			w[c] = -tau[i] * s
		}
		// Tf[0:i, i] = Tf[0:i, 0:i] * w
		for r := range i {
			var s T
			for c := r; c < i; c++ {
				s += tf[r*ldt+c] * w[c]
			}
			tf[r*ldt+i] = s
		}
	}
}

// ExtractV rewrites the reflector storage of a factored panel (as left by
// Geqrf) into an explicit m x n unit lower trapezoidal V: unit diagonal,
// zeros above.
func ExtractV[T tile.Floats](m, n int, a []T, lda int, v []T, ldv int) {
	for i := range m {
		for j := range n {
			switch {
			case i == j:
				v[i*ldv+j] = 1
			case i > j:
				v[i*ldv+j] = a[i*lda+j]
			default:
				v[i*ldv+j] = 0
			}
		}
	}
}
