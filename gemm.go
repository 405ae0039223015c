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

	"github.com/liamscarlett/slate-d35/matrix"
	"github.com/liamscarlett/slate-d35/tile"
)

// Gemm computes C = alpha*A*B + beta*C for general distributed matrices.
// Collective. Step k broadcasts tile column k of A along the owning rows of C
// and tile row k of B along the owning columns, then accumulates one gemm per
// local C tile; beta is applied on the first step only.
func Gemm[T tile.Floats](alpha T, a, b *matrix.Matrix[T], beta T, c *matrix.Matrix[T], opts ...Option) error {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return err
	}
	defer release()
	defer o.record("gemm", time.Now())

	if a.Kind() != matrix.General || b.Kind() != matrix.General || c.Kind() != matrix.General ||
		a.M() != c.M() || b.N() != c.N() || a.N() != b.M() ||
		a.NB() != c.NB() || b.NB() != c.NB() || a.Comm() != c.Comm() || b.Comm() != c.Comm() {
		return fmt.Errorf("%w: gemm wants conforming general matrices", ErrShape)
	}

	mt, nt := c.MT(), c.NT()
	pl := &pipeline{
		steps:     a.NT(),
		lookahead: o.lookahead,
		disseminate: func(k int) error {
			for i := range mt {
				a.BcastTile(k, i, k, c.RanksOf(i, i, 0, nt-1))
			}
			for j := range nt {
				b.BcastTile(k, k, j, c.RanksOf(0, mt-1, j, j))
			}
			return nil
		},
		advance: func(k int) error {
			bk := T(1)
			if k == 0 {
				bk = beta
			}
			var ops []tileOp[T]
			for i := range mt {
				for j := range nt {
					if c.TileIsLocal(i, j) {
						ops = append(ops, gemmOp(false, false, alpha, a.Tile(i, k), b.Tile(k, j), bk, c.Tile(i, j)))
					}
				}
			}
			dispatch(o, ops)
			return nil
		},
	}
	if err := pl.run(); err != nil {
		return err
	}

	dev := alloc(o.device())
	c.FlushToHost(dev)
	a.ClearWorkspace(dev)
	b.ClearWorkspace(dev)
	return nil
}
