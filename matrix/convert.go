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
	"github.com/liamscarlett/slate-d35/kernel"
	"github.com/liamscarlett/slate-d35/tile"
)

// Convert copies src into dst element-wise with precision casting (value
// rounding, never bit reinterpretation). The matrices must share tiling,
// kind, dimensions and grid; both operate on their locally-owned tiles, so no
// communication happens.
func Convert[D, S tile.Floats](dst *Matrix[D], src *Matrix[S]) {
	checkShapes(dst.gm, dst.gn, dst.nb, dst.p, dst.q, int(dst.kind), src.gm, src.gn, src.nb, src.p, src.q, int(src.kind))
	for _, k := range src.LocalTiles() {
		tile.Cast(dst.Tile(k.I, k.J), src.Tile(k.I, k.J))
	}
}

// Copy copies src's locally-owned tiles into dst at the same precision.
// Shape and distribution must match.
func Copy[T tile.Floats](dst, src *Matrix[T]) {
	checkShapes(dst.gm, dst.gn, dst.nb, dst.p, dst.q, int(dst.kind), src.gm, src.gn, src.nb, src.p, src.q, int(src.kind))
	for _, k := range src.LocalTiles() {
		dst.Tile(k.I, k.J).CopyFrom(src.Tile(k.I, k.J))
	}
}

// Add accumulates y += alpha*x over locally-owned tiles. Shape and
// distribution must match; no communication happens.
func Add[T tile.Floats](alpha T, x, y *Matrix[T]) {
	checkShapes(y.gm, y.gn, y.nb, y.p, y.q, int(y.kind), x.gm, x.gn, x.nb, x.p, x.q, int(x.kind))
	for _, k := range x.LocalTiles() {
		s, d := x.Tile(k.I, k.J), y.Tile(k.I, k.J)
		kernel.Add(s.Rows, s.Cols, alpha, s.Data, s.Stride, d.Data, d.Stride)
	}
}

func checkShapes(am, an, anb, ap, aq, akind, bm, bn, bnb, bp, bq, bkind int) {
	if am != bm || an != bn || anb != bnb || ap != bp || aq != bq || akind != bkind {
		panic("matrix: distribution mismatch")
	}
}
