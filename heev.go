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

// Transport op codes of the eigensolver stages.
const (
	opBandPanel uint8 = 0x21
	opBandY     uint8 = 0x22
	opEigvals   uint8 = 0x23
)

// bandPanel carries one step's block reflector: V is the explicit unit lower
// trapezoidal reflector block (pm×kr row-major) and Tf the kr×kr triangular
// factor of the compact representation Q = I - V*Tf*Vᵀ.
type bandPanel[T tile.Floats] struct {
	v, tf []T
	kr    int
}

// BandFactors retains the per-step block reflectors of a band reduction, for
// a later back-transformation of eigenvectors.
type BandFactors[T tile.Floats] struct {
	panels []bandPanel[T]
}

// Steps returns the number of retained reflector blocks.
func (f *BandFactors[T]) Steps() int { return len(f.panels) }

// He2hb reduces the symmetric matrix A (lower storage) to symmetric band form
// with bandwidth equal to the tile size, overwriting A. The band consists of
// the diagonal tiles and the upper triangle of the first subdiagonal tiles;
// reflector tails remain below them and are ignored by the band readers.
//
// Collective. Step k gathers the panel below diagonal block k onto its top
// owner, QR-factors it there and broadcasts the block reflector, then applies
// the two-sided update C = QᵀCQ to the trailing submatrix. The update uses
// the compact form C - V*Wᵀ - W*Vᵀ with W = Y - ½V*S, Y = C*V*Tf and
// S = Tfᵀ*Vᵀ*Y; Y is accumulated from each rank's local tiles and summed
// across the group.
func He2hb[T tile.Floats](a *matrix.Matrix[T], opts ...Option) (*BandFactors[T], error) {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return nil, err
	}
	defer release()
	defer o.record("he2hb", time.Now())

	if a.Kind() != matrix.SymmetricLower {
		return nil, fmt.Errorf("%w: he2hb wants a symmetric matrix", ErrShape)
	}

	c := a.Comm()
	mt, nt := a.MT(), a.NT()
	steps := nt - 1
	factors := &BandFactors[T]{panels: make([]bandPanel[T], max(steps, 0))}

	pl := &pipeline{
		steps:      steps,
		lookahead:  o.lookahead,
		panelBound: 1,
		disseminate: func(k int) error {
			root := a.Owner(k+1, k)
			panel := a.Sub(k+1, mt-1, k, k)
			panel.GatherTo(k, root)

			var msg bandPanel[T]
			if c.Rank() == root {
				msg = factorBandPanel(panel)
			}
			factors.panels[k] = c.Bcast(root, comm.Tag{Op: opBandPanel, K: k}, msg).(bandPanel[T])
			panel.ScatterFrom(k, root)
			return nil
		},
		advance: func(k int) error {
			p := factors.panels[k]
			tr := a.Sub(k+1, mt-1, k+1, mt-1)
			tmt := tr.MT()
			off := make([]int, tmt+1)
			for i := range tmt {
				off[i+1] = off[i] + tr.TileRows(i)
			}
			pm, kr := off[tmt], p.kr

			// Z = V*Tf, then Y = C*Z accumulated over local tiles. Off-diagonal
			// tiles contribute to both their row and column blocks.
			z := make([]T, pm*kr)
			kernel.Gemm(false, false, pm, kr, kr, 1, p.v, kr, p.tf, kr, 0, z, kr)
			y := make([]T, pm*kr)
			for _, key := range tr.LocalTiles() {
				t := tr.Tile(key.I, key.J)
				kernel.Gemm(false, false, t.Rows, kr, t.Cols, 1, t.Data, t.Stride,
					z[off[key.J]*kr:], kr, 1, y[off[key.I]*kr:], kr)
				if key.I != key.J {
					kernel.Gemm(true, false, t.Cols, kr, t.Rows, 1, t.Data, t.Stride,
						z[off[key.I]*kr:], kr, 1, y[off[key.J]*kr:], kr)
				}
			}
			comm.AllReduceSum(c, comm.Tag{Op: opBandY, K: k}, y)

			// S = Tfᵀ*(Vᵀ*Y), W = Y - ½V*S.
			u := make([]T, kr*kr)
			kernel.Gemm(true, false, kr, kr, pm, 1, p.v, kr, y, kr, 0, u, kr)
			s := make([]T, kr*kr)
			kernel.Gemm(true, false, kr, kr, kr, 1, p.tf, kr, u, kr, 0, s, kr)
			w := append([]T(nil), y...)
			kernel.Gemm(false, false, pm, kr, kr, T(-0.5), p.v, kr, s, kr, 1, w, kr)

			vt := make([]*tile.Tile[T], tmt)
			wt := make([]*tile.Tile[T], tmt)
			for i := range tmt {
				rows := off[i+1] - off[i]
				vt[i] = wrapBlock(p.v[off[i]*kr:off[i+1]*kr], rows, kr)
				wt[i] = wrapBlock(w[off[i]*kr:off[i+1]*kr], rows, kr)
			}

			// C -= V*Wᵀ then C -= W*Vᵀ; the two passes write the same tiles,
			// so they form separate batches.
			var ops []tileOp[T]
			for _, key := range tr.LocalTiles() {
				ops = append(ops, gemmOp(false, true, T(-1), vt[key.I], wt[key.J], T(1), tr.Tile(key.I, key.J)))
			}
			dispatch(o, ops)
			ops = ops[:0]
			for _, key := range tr.LocalTiles() {
				ops = append(ops, gemmOp(false, true, T(-1), wt[key.I], vt[key.J], T(1), tr.Tile(key.I, key.J)))
			}
			dispatch(o, ops)

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
	return factors, nil
}

// factorBandPanel QR-factors a gathered panel on its root rank, writes R and
// the reflector tails back into the resident tiles and returns the explicit
// block reflector.
func factorBandPanel[T tile.Floats](panel *matrix.Matrix[T]) bandPanel[T] {
	pmt := panel.MT()
	kb := panel.TileCols(0)
	pm := 0
	for i := range pmt {
		pm += panel.TileRows(i)
	}
	kr := min(pm, kb)

	buf := make([]T, pm*kb)
	r := 0
	for i := range pmt {
		t := panel.Tile(i, 0)
		for rr := range t.Rows {
			copy(buf[(r+rr)*kb:(r+rr)*kb+kb], t.Data[rr*t.Stride:rr*t.Stride+kb])
		}
		r += t.Rows
	}

	tau := make([]T, kr)
	kernel.Geqrf(pm, kb, buf, kb, tau)
	v := make([]T, pm*kr)
	kernel.ExtractV(pm, kr, buf, kb, v, kr)
	tf := make([]T, kr*kr)
	kernel.Larft(pm, kr, v, kr, tau, tf, kr)

	r = 0
	for i := range pmt {
		t := panel.Tile(i, 0)
		for rr := range t.Rows {
			copy(t.Data[rr*t.Stride:rr*t.Stride+kb], buf[(r+rr)*kb:(r+rr)*kb+kb])
		}
		r += t.Rows
	}
	return bandPanel[T]{v: v, tf: tf, kr: kr}
}

func wrapBlock[T tile.Floats](src []T, rows, cols int) *tile.Tile[T] {
	t := tile.New[T](rows, cols)
	for r := range rows {
		copy(t.Data[r*t.Stride:r*t.Stride+cols], src[r*cols:(r+1)*cols])
	}
	return t
}

type eigMsg[T tile.Floats] struct {
	vals   []T
	failed bool
}

// Heev computes all eigenvalues of the symmetric matrix A (lower storage),
// overwriting A with its band reduction. w receives the eigenvalues in
// ascending order on every rank and must have length equal to the matrix
// dimension. Inputs are assumed well scaled; no range scaling is applied.
//
// Collective. The band reduction runs distributed; the band is then gathered
// to rank 0, reduced to tridiagonal form and solved there, and the spectrum
// is broadcast back to the group.
func Heev[T tile.Floats](a *matrix.Matrix[T], w []T, opts ...Option) error {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return err
	}
	defer release()
	defer o.record("heev", time.Now())

	n := a.N()
	if a.Kind() != matrix.SymmetricLower {
		return fmt.Errorf("%w: heev wants a symmetric matrix", ErrShape)
	}
	if len(w) != n {
		return fmt.Errorf("%w: eigenvalue buffer length %d, want %d", ErrShape, len(w), n)
	}

	start := time.Now()
	if _, err := He2hb(a, o.sub()...); err != nil {
		return err
	}
	o.record("heev.he2hb", start)

	c := a.Comm()
	nt := a.NT()
	start = time.Now()
	for j := range nt {
		i2 := min(j+1, nt-1)
		a.Sub(j, i2, j, j).GatherTo(j, 0)
	}

	var msg eigMsg[T]
	if c.Rank() == 0 {
		msg = solveBand(a)
	}
	msg = c.Bcast(0, comm.Tag{Op: opEigvals}, msg).(eigMsg[T])
	o.record("heev.band", start)

	a.ClearWorkspace(alloc(o.device()))
	if msg.failed {
		return kernel.ErrNoConvergence
	}
	copy(w, msg.vals)
	return nil
}

// solveBand assembles the gathered band into dense symmetric storage on rank
// 0, reduces it to tridiagonal form and computes the spectrum.
func solveBand[T tile.Floats](a *matrix.Matrix[T]) eigMsg[T] {
	n := a.N()
	nt := a.NT()
	dense := make([]T, n*n)
	off := 0
	for j := range nt {
		dt := a.Tile(j, j)
		for r := range dt.Rows {
			for cc := range dt.Cols {
				dense[(off+r)*n+off+cc] = dt.Data[r*dt.Stride+cc]
			}
		}
		if j+1 < nt {
			st := a.Tile(j+1, j)
			ro := off + dt.Rows
			for r := range st.Rows {
				// Only the R triangle of the subdiagonal tile is band
				// content; reflector tails sit below it.
				for cc := r; cc < st.Cols; cc++ {
					v := st.Data[r*st.Stride+cc]
					dense[(ro+r)*n+off+cc] = v
					dense[(off+cc)*n+ro+r] = v
				}
			}
		}
		off += dt.Rows
	}

	d := make([]T, n)
	e := make([]T, max(n-1, 0))
	kernel.Sytd2(n, dense, n, d, e)
	if err := kernel.Sterf(d, e); err != nil {
		return eigMsg[T]{failed: true}
	}
	return eigMsg[T]{vals: d}
}
