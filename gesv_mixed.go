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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/liamscarlett/slate-d35/matrix"
	"github.com/liamscarlett/slate-d35/tile"
)

// Gesv solves A*X = B by pivoted LU at the working precision, overwriting A
// with its factors and B with the solution. Collective.
func Gesv[T tile.Floats](a, b *matrix.Matrix[T], opts ...Option) (Pivots, error) {
	piv, err := Getrf(a, opts...)
	if err != nil {
		return nil, err
	}
	return piv, Getrs(a, piv, b, opts...)
}

// GesvMixed solves A*X = B with mixed-precision iterative refinement: the
// factorization and the inner solves run in float32, residuals and corrections
// in float64. A and B are left intact on the refinement path; X receives the
// solution and must be allocated with B's distribution.
//
// The returned iteration count reports how the solution was obtained:
//
//	iter >= 0         refinement converged after iter correction steps
//	iter == -3        the reduced-precision factorization hit an exact zero
//	                  pivot
//	iter == -(cap+1)  refinement missed the tolerance within the iteration
//	                  cap set by WithMaxIterations
//
// On a negative count the full-precision fallback factors A in place and
// solves directly, unless disabled, in which case the error reports the
// failure. Convergence per right-hand side column j requires
// max|R_j| <= max|X_j| * ‖A‖∞ * tol.
func GesvMixed(a, b, x *matrix.Matrix[float64], opts ...Option) (int, Pivots, error) {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return 0, nil, err
	}
	defer release()
	defer o.record("gesv_mixed", time.Now())

	if a.Kind() != matrix.General || a.M() != a.N() {
		return 0, nil, fmt.Errorf("%w: gesv wants a square general matrix", ErrShape)
	}
	if b.M() != a.N() || x.M() != b.M() || x.N() != b.N() ||
		b.NB() != a.NB() || x.NB() != b.NB() || a.Comm() != b.Comm() || a.Comm() != x.Comm() {
		return 0, nil, fmt.Errorf("%w: gesv wants conforming right-hand sides", ErrShape)
	}

	tol := o.tol
	if tol == 0 {
		tol = 0x1p-52 * math.Sqrt(float64(a.N()))
	}

	start := time.Now()
	cte := a.NormInf(0) * tol
	o.record("gesv_mixed.norm", start)

	c := a.Comm()
	alo := matrix.New[float32](c, a.M(), a.N(), a.NB(), a.GridP(), a.GridQ())
	alo.InsertLocalTiles()
	xlo := matrix.New[float32](c, b.M(), b.N(), b.NB(), b.GridP(), b.GridQ())
	xlo.InsertLocalTiles()
	r := b.EmptyLike()
	r.InsertLocalTiles()
	d := b.EmptyLike()
	d.InsertLocalTiles()

	start = time.Now()
	matrix.Convert(alo, a)
	matrix.Convert(xlo, b)
	o.record("gesv_mixed.cast", start)

	iter := 0
	var singular *SingularError

	start = time.Now()
	piv, err := Getrf(alo, o.sub()...)
	o.record("gesv_mixed.getrf_lo", start)
	switch {
	case err == nil:
		start = time.Now()
		if err := Getrs(alo, piv, xlo, o.sub()...); err != nil {
			return 0, nil, err
		}
		o.record("gesv_mixed.getrs_lo", start)
		matrix.Convert(x, xlo)

		for i := 0; ; i++ {
			start = time.Now()
			matrix.Copy(r, b)
			if err := Gemm(-1, a, x, 1, r, o.sub()...); err != nil {
				return 0, nil, err
			}
			conv := refinementConverged(r.ColNormsMax(i), x.ColNormsMax(i), cte)
			o.record("gesv_mixed.residual", start)
			if conv {
				return i, piv, nil
			}
			if i == o.maxIter {
				break
			}

			start = time.Now()
			matrix.Convert(xlo, r)
			if err := Getrs(alo, piv, xlo, o.sub()...); err != nil {
				return 0, nil, err
			}
			o.record("gesv_mixed.getrs_lo", start)
			matrix.Convert(d, xlo)
			matrix.Add(1, d, x)
		}
		iter = -(o.maxIter + 1)

	case errors.As(err, &singular):
		iter = -3

	default:
		return 0, nil, err
	}

	if !o.fallback {
		if iter == -3 {
			return iter, nil, singular
		}
		return iter, nil, ErrNotConverged
	}

	start = time.Now()
	piv, err = Getrf(a, o.sub()...)
	o.record("gesv_mixed.getrf_hi", start)
	if err != nil {
		return iter, nil, err
	}
	matrix.Copy(x, b)
	start = time.Now()
	if err := Getrs(a, piv, x, o.sub()...); err != nil {
		return iter, nil, err
	}
	o.record("gesv_mixed.getrs_hi", start)
	return iter, piv, nil
}

// refinementConverged reports whether every right-hand side column meets the
// scaled residual bound.
func refinementConverged(rnorm, xnorm []float64, cte float64) bool {
	for j := range rnorm {
		if rnorm[j] > xnorm[j]*cte {
			return false
		}
	}
	return true
}
