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

package matrix

import (
	"github.com/liamscarlett/slate-d35/comm"
	"github.com/liamscarlett/slate-d35/tile"
)

// NormInf computes the infinity operator norm (maximum absolute row sum) of a
// general matrix. Collective; every rank returns the same value.
func (a *Matrix[T]) NormInf(step int) T {
	if a.kind != General {
		panic("matrix: NormInf requires a general matrix")
	}
	sums := make([]T, a.M())
	rowStart := 0
	for i := 0; i < a.mt; i++ {
		for j := 0; j < a.nt; j++ {
			if !a.TileIsLocal(i, j) {
				continue
			}
			t := a.Tile(i, j)
			for r := range t.Rows {
				var s T
				for c := range t.Cols {
					s += absT(t.Data[r*t.Stride+c])
				}
				sums[rowStart+r] += s
			}
		}
		rowStart += a.TileRows(i)
	}
	comm.AllReduceSum(a.c, comm.Tag{Op: opRowSums, K: step}, sums)
	var norm T
	for _, s := range sums {
		if s > norm {
			norm = s
		}
	}
	return norm
}

// ColNormsMax computes the per-column maximum absolute value (the max norm of
// each column). Collective; every rank returns the same vector.
func (a *Matrix[T]) ColNormsMax(step int) []T {
	if a.kind != General {
		panic("matrix: ColNormsMax requires a general matrix")
	}
	maxes := make([]T, a.N())
	colStart := 0
	for j := 0; j < a.nt; j++ {
		for i := 0; i < a.mt; i++ {
			if !a.TileIsLocal(i, j) {
				continue
			}
			t := a.Tile(i, j)
			for r := range t.Rows {
				for c := range t.Cols {
					if v := absT(t.Data[r*t.Stride+c]); v > maxes[colStart+c] {
						maxes[colStart+c] = v
					}
				}
			}
		}
		colStart += a.TileCols(j)
	}
	comm.AllReduceMax(a.c, comm.Tag{Op: opColMax, K: step}, maxes)
	return maxes
}

func absT[T tile.Floats](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
