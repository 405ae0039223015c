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

// Herk computes the symmetric rank-k update C = alpha*A*Aᵀ + beta*C, updating
// the stored lower triangle of C in place. A is a general m×k matrix and C a
// symmetric m×m matrix on the same group and tiling.
//
// Collective: every rank of the group calls with the same arguments. Step k of
// the pipeline broadcasts tile column k of A to the ranks whose C tiles need
// it (row i and column i of the lower triangle, for each tile row i), then
// accumulates one herk per local diagonal tile and one gemm per local
// off-diagonal tile. beta is applied on the first step only.
func Herk[T tile.Floats](alpha T, a *matrix.Matrix[T], beta T, c *matrix.Matrix[T], opts ...Option) error {
	o, release, err := gatherOptions(opts)
	if err != nil {
		return err
	}
	defer release()
	defer o.record("herk", time.Now())

	if c.Kind() != matrix.SymmetricLower || a.Kind() != matrix.General ||
		a.M() != c.N() || a.NB() != c.NB() || a.Comm() != c.Comm() {
		return fmt.Errorf("%w: herk wants general A and symmetric C with rows(A) = dim(C)", ErrShape)
	}

	mt := c.MT()
	pl := &pipeline{
		steps:     a.NT(),
		lookahead: o.lookahead,
		disseminate: func(k int) error {
			for i := range mt {
				dests := matrix.MergeRanks(
					c.RanksOf(i, i, 0, i),
					c.RanksOf(i, mt-1, i, i),
				)
				a.BcastTile(k, i, k, dests)
			}
			return nil
		},
		advance: func(k int) error {
			bk := T(1)
			if k == 0 {
				bk = beta
			}
			var ops []tileOp[T]
			for j := range mt {
				for i := j; i < mt; i++ {
					if !c.TileIsLocal(i, j) {
						continue
					}
					if i == j {
						ops = append(ops, herkOp(alpha, a.Tile(i, k), bk, c.Tile(i, i)))
					} else {
						ops = append(ops, gemmOp(false, true, alpha, a.Tile(i, k), a.Tile(j, k), bk, c.Tile(i, j)))
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
	return nil
}
