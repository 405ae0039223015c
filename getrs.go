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

	"github.com/liamscarlett/slate-d35/kernel"
	"github.com/liamscarlett/slate-d35/matrix"
	"github.com/liamscarlett/slate-d35/tile"
)

// Getrs solves A*X = B using the factors and pivots produced by Getrf on a
// square matrix, overwriting B with X. Collective. The pivots are replayed on
// B, then a tiled forward substitution with unit L and a tiled backward
// substitution with U run as sequential stages; tile work within each stage
// goes through the configured backend.
func Getrs[T tile.Floats](a *matrix.Matrix[T], piv Pivots, b *matrix.Matrix[T], opts ...Option) error {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return err
	}
	defer release()
	defer o.record("getrs", time.Now())

	if a.Kind() != matrix.General || b.Kind() != matrix.General ||
		a.M() != a.N() || a.M() != b.M() || a.NB() != b.NB() ||
		a.GridP() != b.GridP() || a.GridQ() != b.GridQ() || a.Comm() != b.Comm() {
		return fmt.Errorf("%w: getrs wants square factored A and conforming B", ErrShape)
	}
	if len(piv) != a.N() {
		return fmt.Errorf("%w: pivot vector length %d, want %d", ErrShape, len(piv), a.N())
	}

	nt, bnt := a.NT(), b.NT()
	dev := o.device()

	for r, p := range piv {
		if p != r {
			b.SwapRows(0, r, p, 0, bnt-1)
		}
	}

	// Forward substitution: L*Y = P*B.
	for k := range nt {
		a.BcastTile(k, k, k, b.RanksOf(k, k, 0, bnt-1))
		var trsms []tileOp[T]
		for j := range bnt {
			if b.TileIsLocal(k, j) {
				trsms = append(trsms, trsmOp(kernel.Lower, true, a.Tile(k, k), b.Tile(k, j)))
			}
		}
		dispatch(o, trsms)
		if k+1 == nt {
			continue
		}

		if dev != nil {
			for j := range bnt {
				if b.TileIsLocal(k, j) {
					b.Tile(k, j).Flush(dev)
				}
			}
		}
		for j := range bnt {
			b.BcastTile(k, k, j, b.RanksOf(k+1, nt-1, j, j))
		}
		for i := k + 1; i < nt; i++ {
			a.BcastTile(k, i, k, b.RanksOf(i, i, 0, bnt-1))
		}

		var gemms []tileOp[T]
		for i := k + 1; i < nt; i++ {
			for j := range bnt {
				if b.TileIsLocal(i, j) {
					gemms = append(gemms, gemmOp(false, false, T(-1), a.Tile(i, k), b.Tile(k, j), T(1), b.Tile(i, j)))
				}
			}
		}
		dispatch(o, gemms)
	}

	// Backward substitution: U*X = Y. Stage tags continue past the forward
	// range so the two phases' broadcasts cannot collide.
	for k := nt - 1; k >= 0; k-- {
		a.BcastTile(nt+k, k, k, b.RanksOf(k, k, 0, bnt-1))
		var trsms []tileOp[T]
		for j := range bnt {
			if b.TileIsLocal(k, j) {
				trsms = append(trsms, trsmOp(kernel.Upper, false, a.Tile(k, k), b.Tile(k, j)))
			}
		}
		dispatch(o, trsms)
		if k == 0 {
			continue
		}

		if dev != nil {
			for j := range bnt {
				if b.TileIsLocal(k, j) {
					b.Tile(k, j).Flush(dev)
				}
			}
		}
		for j := range bnt {
			b.BcastTile(nt+k, k, j, b.RanksOf(0, k-1, j, j))
		}
		for i := range k {
			a.BcastTile(nt+k, i, k, b.RanksOf(i, i, 0, bnt-1))
		}

		var gemms []tileOp[T]
		for i := range k {
			for j := range bnt {
				if b.TileIsLocal(i, j) {
					gemms = append(gemms, gemmOp(false, false, T(-1), a.Tile(i, k), b.Tile(k, j), T(1), b.Tile(i, j)))
				}
			}
		}
		dispatch(o, gemms)
	}

	ad := alloc(dev)
	b.FlushToHost(ad)
	a.ClearWorkspace(ad)
	b.ClearWorkspace(ad)
	return nil
}
