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

// Transport op codes used by matrix collectives. The 0xE0 range is reserved
// for this package; algorithm layers use codes below 0x80.
const (
	opBcast uint8 = 0xE0 + iota
	opGather
	opSwapFwd
	opSwapBwd
	opRowSums
	opColMax
	opDense
)

type tileMsg[T tile.Floats] struct {
	rows, cols int
	data       []T
}

func snapshot[T tile.Floats](t *tile.Tile[T]) tileMsg[T] {
	data := make([]T, t.Rows*t.Cols)
	for i := range t.Rows {
		copy(data[i*t.Cols:(i+1)*t.Cols], t.Data[i*t.Stride:i*t.Stride+t.Cols])
	}
	return tileMsg[T]{rows: t.Rows, cols: t.Cols, data: data}
}

// BcastTile broadcasts tile (i, j) from its owner to dests, materializing a
// workspace copy on each destination. Every rank of the group must call it
// with identical arguments; step disambiguates concurrent broadcasts from
// different pipeline stages.
func (a *Matrix[T]) BcastTile(step, i, j int, dests []int) {
	gi, gj := a.roff+i, a.coff+j
	owner := a.Owner(i, j)
	tag := comm.Tag{Op: opBcast, K: step, I: gi, J: gj}
	me := a.c.Rank()
	if me == owner {
		msg := snapshot(a.Tile(i, j))
		for _, d := range dests {
			if d != owner {
				a.c.Send(d, tag, msg)
			}
		}
		return
	}
	for _, d := range dests {
		if d == me {
			msg := a.c.Recv(owner, tag).(tileMsg[T])
			a.putWorkspace(gi, gj, msg.rows, msg.cols, msg.data)
			return
		}
	}
}

// RanksOf returns the sorted distinct owners of the stored tiles in the
// inclusive tile range [i1, i2] × [j1, j2] of the view.
func (a *Matrix[T]) RanksOf(i1, i2, j1, j2 int) []int {
	seen := make(map[int]bool)
	var ranks []int
	for i := i1; i <= i2; i++ {
		for j := j1; j <= j2; j++ {
			if a.kind == SymmetricLower && a.roff+i < a.coff+j {
				continue
			}
			r := a.Owner(i, j)
			if !seen[r] {
				seen[r] = true
				ranks = append(ranks, r)
			}
		}
	}
	for x := 1; x < len(ranks); x++ {
		for y := x; y > 0 && ranks[y] < ranks[y-1]; y-- {
			ranks[y], ranks[y-1] = ranks[y-1], ranks[y]
		}
	}
	return ranks
}

// MergeRanks unions rank lists into a sorted set.
func MergeRanks(lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range lists {
		for _, r := range l {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	for x := 1; x < len(out); x++ {
		for y := x; y > 0 && out[y] < out[y-1]; y-- {
			out[y], out[y-1] = out[y-1], out[y]
		}
	}
	return out
}

// GatherTo collects every stored tile of the view onto root as workspace
// copies. Collective; after it returns, root holds a resident copy of the
// complete view while other ranks are unchanged.
func (a *Matrix[T]) GatherTo(step, root int) {
	me := a.c.Rank()
	for i := range a.mt {
		for j := range a.nt {
			if a.kind == SymmetricLower && a.roff+i < a.coff+j {
				continue
			}
			owner := a.Owner(i, j)
			if owner == root {
				continue
			}
			gi, gj := a.roff+i, a.coff+j
			tag := comm.Tag{Op: opGather, K: step, I: gi, J: gj}
			if me == owner {
				a.c.Send(root, tag, snapshot(a.Tile(i, j)))
			} else if me == root {
				msg := a.c.Recv(owner, tag).(tileMsg[T])
				a.putWorkspace(gi, gj, msg.rows, msg.cols, msg.data)
			}
		}
	}
}

// ScatterFrom distributes workspace copies held on root back to the tile
// owners, overwriting their origin contents. The inverse of GatherTo for
// tiles root has mutated.
func (a *Matrix[T]) ScatterFrom(step, root int) {
	me := a.c.Rank()
	for i := range a.mt {
		for j := range a.nt {
			if a.kind == SymmetricLower && a.roff+i < a.coff+j {
				continue
			}
			owner := a.Owner(i, j)
			if owner == root {
				continue
			}
			gi, gj := a.roff+i, a.coff+j
			tag := comm.Tag{Op: opGather, K: step, I: gi, J: gj}
			if me == root {
				a.c.Send(owner, tag, snapshot(a.Tile(i, j)))
			} else if me == owner {
				msg := a.c.Recv(root, tag).(tileMsg[T])
				t := a.Tile(i, j)
				for r := range msg.rows {
					copy(t.Data[r*t.Stride:r*t.Stride+msg.cols], msg.data[r*msg.cols:(r+1)*msg.cols])
				}
			}
		}
	}
}

// SwapRows exchanges global element rows r1 and r2 of the view across tile
// columns [j1, j2] (inclusive, view-relative). Collective; owners exchange
// row segments point-to-point. General matrices only.
func (a *Matrix[T]) SwapRows(step, r1, r2, j1, j2 int) {
	if r1 == r2 {
		return
	}
	if a.kind != General {
		panic("matrix: SwapRows requires a general matrix")
	}
	me := a.c.Rank()
	t1, o1 := r1/a.nb, r1%a.nb
	t2, o2 := r2/a.nb, r2%a.nb
	for j := j1; j <= j2; j++ {
		own1 := a.Owner(t1, j)
		own2 := a.Owner(t2, j)
		if own1 != me && own2 != me {
			continue
		}
		cols := a.TileCols(j)
		gj := a.coff + j
		if own1 == own2 {
			x := a.Tile(t1, j)
			y := a.Tile(t2, j)
			for c := range cols {
				x.Data[o1*x.Stride+c], y.Data[o2*y.Stride+c] = y.Data[o2*y.Stride+c], x.Data[o1*x.Stride+c]
			}
			continue
		}
		if me == own1 {
			t := a.Tile(t1, j)
			row := append([]T(nil), t.Data[o1*t.Stride:o1*t.Stride+cols]...)
			a.c.Send(own2, comm.Tag{Op: opSwapFwd, K: step, I: r1, J: gj}, row)
			in := a.c.Recv(own2, comm.Tag{Op: opSwapBwd, K: step, I: r1, J: gj}).([]T)
			copy(t.Data[o1*t.Stride:o1*t.Stride+cols], in)
		} else {
			t := a.Tile(t2, j)
			row := append([]T(nil), t.Data[o2*t.Stride:o2*t.Stride+cols]...)
			a.c.Send(own1, comm.Tag{Op: opSwapBwd, K: step, I: r1, J: gj}, row)
			in := a.c.Recv(own1, comm.Tag{Op: opSwapFwd, K: step, I: r1, J: gj}).([]T)
			copy(t.Data[o2*t.Stride:o2*t.Stride+cols], in)
		}
	}
}

// Dense assembles the full element contents of the view on root and returns
// the row-major result there; other ranks return nil. Collective. Symmetric
// views are mirrored into full storage.
func (a *Matrix[T]) Dense(step, root int) []T {
	me := a.c.Rank()
	m, n := a.M(), a.N()
	var out []T
	if me == root {
		out = make([]T, m*n)
	}
	rowStart := 0
	for i := 0; i < a.mt; i++ {
		colStart := 0
		for j := 0; j < a.nt; j++ {
			if a.kind == SymmetricLower && a.roff+i < a.coff+j {
				colStart += a.TileCols(j)
				continue
			}
			owner := a.Owner(i, j)
			var msg tileMsg[T]
			switch {
			case owner == root && me == root:
				msg = snapshot(a.Tile(i, j))
			case me == owner:
				a.c.Send(root, comm.Tag{Op: opDense, K: step, I: a.roff + i, J: a.coff + j}, snapshot(a.Tile(i, j)))
				colStart += a.TileCols(j)
				continue
			case me == root:
				msg = a.c.Recv(owner, comm.Tag{Op: opDense, K: step, I: a.roff + i, J: a.coff + j}).(tileMsg[T])
			default:
				colStart += a.TileCols(j)
				continue
			}
			for r := range msg.rows {
				for c := range msg.cols {
					v := msg.data[r*msg.cols+c]
					out[(rowStart+r)*n+colStart+c] = v
					if a.kind == SymmetricLower && a.roff+i != a.coff+j {
						out[(colStart+c)*n+rowStart+r] = v
					}
				}
			}
			colStart += a.TileCols(j)
		}
		rowStart += a.TileRows(i)
	}
	return out
}

// FromDense fills this rank's origin tiles from a full row-major m×n buffer.
// Every rank passes the same buffer contents; no communication happens.
func (a *Matrix[T]) FromDense(data []T) {
	n := a.N()
	rowStart := 0
	for i := 0; i < a.mt; i++ {
		colStart := 0
		for j := 0; j < a.nt; j++ {
			if a.kind == SymmetricLower && a.roff+i < a.coff+j {
				colStart += a.TileCols(j)
				continue
			}
			if a.TileIsLocal(i, j) {
				t := a.Tile(i, j)
				for r := range t.Rows {
					for c := range t.Cols {
						t.Data[r*t.Stride+c] = data[(rowStart+r)*n+colStart+c]
					}
				}
			}
			colStart += a.TileCols(j)
		}
		rowStart += a.TileRows(i)
	}
}
