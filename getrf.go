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
	"fmt"
	"time"

	"github.com/liamscarlett/slate-d35/comm"
	"github.com/liamscarlett/slate-d35/kernel"
	"github.com/liamscarlett/slate-d35/matrix"
	"github.com/liamscarlett/slate-d35/tile"
)

// Pivots records the row interchanges of an LU factorization: entry r is the
// zero-based global row that was exchanged with row r at elimination step r.
// Every rank holds the full pivot vector.
type Pivots []int

// Transport op code for the per-panel pivot broadcast.
const opPanel uint8 = 0x11

type panelMsg struct {
	piv  []int
	info int
}

// Getrf factors the general m×n matrix A (m >= n) in place as P*A = L*U with
// partial pivoting. L is unit lower trapezoidal below the diagonal, U upper
// triangular on and above it; row interchanges are applied to the whole
// matrix, so the returned pivots only need replaying on right-hand sides.
//
// Collective. Step k gathers tile column k onto the diagonal owner, factors
// the panel there, scatters the factored tiles back and broadcasts the pivots
// together with the panel status, so every rank observes a zero pivot at the
// same step and aborts symmetrically with the same *SingularError. The
// returned index is 1-based.
func Getrf[T tile.Floats](a *matrix.Matrix[T], opts ...Option) (Pivots, error) {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return nil, err
	}
	defer release()
	defer o.record("getrf", time.Now())

	if a.Kind() != matrix.General || a.M() < a.N() {
		return nil, fmt.Errorf("%w: getrf wants a general matrix with m >= n", ErrShape)
	}

	c := a.Comm()
	mt, nt, nb := a.MT(), a.NT(), a.NB()
	piv := make(Pivots, a.N())

	pl := &pipeline{
		steps:      nt,
		lookahead:  o.lookahead,
		panelBound: 1,
		disseminate: func(k int) error {
			root := a.Owner(k, k)
			panel := a.Sub(k, mt-1, k, k)
			panel.GatherTo(k, root)

			var msg panelMsg
			if c.Rank() == root {
				msg = factorPanel(panel)
			}
			tag := comm.Tag{Op: opPanel, K: k}
			msg = c.Bcast(root, tag, msg).(panelMsg)
			pn := a.TileCols(k)
			for j := range pn {
				piv[k*nb+j] = k*nb + msg.piv[j]
			}
			if msg.info > 0 {
				return &SingularError{Index: k*nb + msg.info}
			}

			panel.ScatterFrom(k, root)
			if k+1 < nt {
				for i := k; i < mt; i++ {
					a.BcastTile(k, i, k, a.RanksOf(i, i, k+1, nt-1))
				}
			}
			return nil
		},
		advance: func(k int) error {
			// Replay the panel's interchanges across the rest of the matrix.
			// The panel column itself was swapped during factorization.
			pn := a.TileCols(k)
			for j := range pn {
				r := k*nb + j
				if piv[r] == r {
					continue
				}
				if k > 0 {
					a.SwapRows(k, r, piv[r], 0, k-1)
				}
				if k+1 < nt {
					a.SwapRows(k, r, piv[r], k+1, nt-1)
				}
			}

			if k+1 < nt {
				var trsms []tileOp[T]
				for j := k + 1; j < nt; j++ {
					if a.TileIsLocal(k, j) {
						trsms = append(trsms, trsmOp(kernel.Lower, true, a.Tile(k, k), a.Tile(k, j)))
					}
				}
				dispatch(o, trsms)

				if dev := o.device(); dev != nil {
					for j := k + 1; j < nt; j++ {
						if a.TileIsLocal(k, j) {
							a.Tile(k, j).Flush(dev)
						}
					}
				}
				for j := k + 1; j < nt; j++ {
					if k+1 < mt {
						a.BcastTile(k, k, j, a.RanksOf(k+1, mt-1, j, j))
					}
				}

				var gemms []tileOp[T]
				for i := k + 1; i < mt; i++ {
					for j := k + 1; j < nt; j++ {
						if a.TileIsLocal(i, j) {
							gemms = append(gemms, gemmOp(false, false, T(-1), a.Tile(i, k), a.Tile(k, j), T(1), a.Tile(i, j)))
						}
					}
				}
				dispatch(o, gemms)
			}

			// Host copies must be current before the next panel gather and
			// the next step's row swaps.
			flushLocal(o, a)
			return nil
		},
	}
	if err := pl.run(); err != nil {
		a.ClearWorkspace(alloc(o.device()))
		return nil, err
	}

	dev := alloc(o.device())
	a.FlushToHost(dev)
	a.ClearWorkspace(dev)
	return piv, nil
}

// factorPanel runs the pivoted panel factorization on a gathered tile column
// and writes the factors back into the resident tile copies. Runs on the
// diagonal owner only.
func factorPanel[T tile.Floats](panel *matrix.Matrix[T]) panelMsg {
	mt := panel.MT()
	pn := panel.TileCols(0)
	pm := 0
	for i := range mt {
		pm += panel.TileRows(i)
	}

	buf := make([]T, pm*pn)
	r := 0
	for i := range mt {
		t := panel.Tile(i, 0)
		for rr := range t.Rows {
			copy(buf[(r+rr)*pn:(r+rr)*pn+pn], t.Data[rr*t.Stride:rr*t.Stride+pn])
		}
		r += t.Rows
	}

	ipiv := make([]int, pn)
	info := kernel.Getf2(pm, pn, buf, pn, ipiv)
	if info > 0 {
		return panelMsg{piv: ipiv, info: info}
	}

	r = 0
	for i := range mt {
		t := panel.Tile(i, 0)
		for rr := range t.Rows {
			copy(t.Data[rr*t.Stride:rr*t.Stride+pn], buf[(r+rr)*pn:(r+rr)*pn+pn])
		}
		r += t.Rows
	}
	return panelMsg{piv: ipiv}
}
