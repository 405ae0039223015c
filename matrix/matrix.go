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

// Package matrix implements the distributed tile matrix: an M×N matrix
// partitioned into an MT×NT grid of tiles with a deterministic 2-D
// block-cyclic owner function over a p×q process grid. A rank reads a tile
// either because it owns the origin copy or because it received a workspace
// copy through an explicit broadcast; sub-matrix views alias the parent's
// tiles and never copy.
package matrix

import (
	"sort"
	"sync"

	"github.com/liamscarlett/slate-d35/comm"
	"github.com/liamscarlett/slate-d35/tile"
)

// Kind selects the stored shape of a matrix.
type Kind uint8

const (
	// General stores every tile of the grid.
	General Kind = iota
	// SymmetricLower stores only tiles with i >= j; the logical (i, j) tile
	// for i < j is the transpose of tile (j, i). Diagonal tiles hold full
	// symmetric contents.
	SymmetricLower
)

// Key addresses a tile by global grid coordinates.
type Key struct {
	I, J int
}

// store is the tile container shared between a matrix and all its views.
type store[T tile.Floats] struct {
	mu     sync.Mutex
	tiles  map[Key]*tile.Tile[T]
	origin map[Key]bool
}

// Matrix is one rank's handle onto a distributed tile matrix (or a shallow
// view of one). All ranks of the group construct it with identical global
// parameters; only locally-owned origin tiles and received workspace copies
// are materialized on a given rank.
type Matrix[T tile.Floats] struct {
	st *store[T]
	c  *comm.Comm

	kind Kind
	nb   int
	p, q int

	gm, gn int // element dims of the root matrix
	gmt    int // tile rows of the root matrix
	gnt    int // tile cols of the root matrix

	roff, coff int // tile offset of this view
	mt, nt     int // tile dims of this view
}

// New creates an m×n general matrix with square nb×nb tiles (the trailing
// tile row/column may be partial) over a p×q block-cyclic process grid.
// p*q must not exceed the group size; a 1×1 grid places every tile on rank 0,
// which stage handoffs use for rank-local working matrices.
func New[T tile.Floats](c *comm.Comm, m, n, nb, p, q int) *Matrix[T] {
	return newMatrix[T](c, General, m, n, nb, p, q)
}

// NewSymmetric creates an n×n symmetric matrix stored as its lower tile
// triangle.
func NewSymmetric[T tile.Floats](c *comm.Comm, n, nb, p, q int) *Matrix[T] {
	return newMatrix[T](c, SymmetricLower, n, n, nb, p, q)
}

func newMatrix[T tile.Floats](c *comm.Comm, kind Kind, m, n, nb, p, q int) *Matrix[T] {
	if m <= 0 || n <= 0 || nb <= 0 {
		panic("matrix: non-positive dimensions")
	}
	if p <= 0 || q <= 0 || p*q > c.Size() {
		panic("matrix: process grid does not match group size")
	}
	mt := (m + nb - 1) / nb
	nt := (n + nb - 1) / nb
	return &Matrix[T]{
		st:   &store[T]{tiles: make(map[Key]*tile.Tile[T]), origin: make(map[Key]bool)},
		c:    c,
		kind: kind,
		nb:   nb,
		p:    p,
		q:    q,
		gm:   m,
		gn:   n,
		gmt:  mt,
		gnt:  nt,
		mt:   mt,
		nt:   nt,
	}
}

// EmptyLike creates a new unpopulated matrix with the same global shape,
// tiling, kind and grid as a.
func (a *Matrix[T]) EmptyLike() *Matrix[T] {
	return newMatrix[T](a.c, a.kind, a.gm, a.gn, a.nb, a.p, a.q)
}

// Comm returns the rank endpoint the matrix was built with.
func (a *Matrix[T]) Comm() *comm.Comm { return a.c }

// Kind returns the stored shape.
func (a *Matrix[T]) Kind() Kind { return a.kind }

// M returns the element row count of the view.
func (a *Matrix[T]) M() int {
	if a.mt == 0 {
		return 0
	}
	rows := 0
	for i := range a.mt {
		rows += a.TileRows(i)
	}
	return rows
}

// N returns the element column count of the view.
func (a *Matrix[T]) N() int {
	cols := 0
	for j := range a.nt {
		cols += a.TileCols(j)
	}
	return cols
}

// NB returns the tile edge.
func (a *Matrix[T]) NB() int { return a.nb }

// MT returns the tile row count of the view.
func (a *Matrix[T]) MT() int { return a.mt }

// NT returns the tile column count of the view.
func (a *Matrix[T]) NT() int { return a.nt }

// GridP returns the process grid row count.
func (a *Matrix[T]) GridP() int { return a.p }

// GridQ returns the process grid column count.
func (a *Matrix[T]) GridQ() int { return a.q }

// TileRows returns the element row count of tile row i of the view.
func (a *Matrix[T]) TileRows(i int) int {
	gi := a.roff + i
	if gi == a.gmt-1 {
		return a.gm - gi*a.nb
	}
	return a.nb
}

// TileCols returns the element column count of tile column j of the view.
func (a *Matrix[T]) TileCols(j int) int {
	gj := a.coff + j
	if gj == a.gnt-1 {
		return a.gn - gj*a.nb
	}
	return a.nb
}

// Owner returns the rank owning tile (i, j) of the view under the 2-D
// block-cyclic map.
func (a *Matrix[T]) Owner(i, j int) int {
	gi, gj := a.roff+i, a.coff+j
	return (gi%a.p)*a.q + gj%a.q
}

// TileIsLocal reports whether this rank owns the origin copy of tile (i, j).
func (a *Matrix[T]) TileIsLocal(i, j int) bool {
	return a.Owner(i, j) == a.c.Rank()
}

// Sub returns a shallow view of tiles [i1, i2] × [j1, j2] (inclusive). The
// view aliases the parent's tiles; mutations are visible in both directions.
func (a *Matrix[T]) Sub(i1, i2, j1, j2 int) *Matrix[T] {
	if i1 < 0 || j1 < 0 || i2 >= a.mt || j2 >= a.nt || i1 > i2+1 || j1 > j2+1 {
		panic("matrix: sub-view out of range")
	}
	v := *a
	v.roff = a.roff + i1
	v.coff = a.coff + j1
	v.mt = i2 - i1 + 1
	v.nt = j2 - j1 + 1
	return &v
}

// InsertLocalTiles allocates zeroed origin tiles for every tile of the view
// this rank owns.
func (a *Matrix[T]) InsertLocalTiles() {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	for i := range a.mt {
		for j := range a.nt {
			if a.kind == SymmetricLower && a.roff+i < a.coff+j {
				continue
			}
			if a.Owner(i, j) != a.c.Rank() {
				continue
			}
			k := Key{a.roff + i, a.coff + j}
			if _, ok := a.st.tiles[k]; !ok {
				a.st.tiles[k] = tile.New[T](a.TileRows(i), a.TileCols(j))
				a.st.origin[k] = true
			}
		}
	}
}

// Tile returns the resident copy of tile (i, j): the origin if this rank owns
// it, or a received workspace copy. It panics if the tile is not resident;
// reading a tile that was never broadcast here is a bug in the caller.
func (a *Matrix[T]) Tile(i, j int) *tile.Tile[T] {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	t, ok := a.st.tiles[Key{a.roff + i, a.coff + j}]
	if !ok {
		panic("matrix: tile not resident on this rank")
	}
	return t
}

// TileResident reports whether any copy of tile (i, j) is resident here.
func (a *Matrix[T]) TileResident(i, j int) bool {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	_, ok := a.st.tiles[Key{a.roff + i, a.coff + j}]
	return ok
}

// putWorkspace installs a received copy of tile (gi, gj).
func (a *Matrix[T]) putWorkspace(gi, gj, rows, cols int, data []T) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	k := Key{gi, gj}
	t, ok := a.st.tiles[k]
	if !ok {
		t = tile.New[T](rows, cols)
		a.st.tiles[k] = t
		a.st.origin[k] = false
	}
	for i := range rows {
		copy(t.Data[i*t.Stride:i*t.Stride+cols], data[i*cols:(i+1)*cols])
	}
}

// LocalTiles returns the view-relative coordinates of every origin tile of
// the view on this rank, in deterministic order.
func (a *Matrix[T]) LocalTiles() []Key {
	var keys []Key
	a.st.mu.Lock()
	for k, org := range a.st.origin {
		if !org {
			continue
		}
		i, j := k.I-a.roff, k.J-a.coff
		if i < 0 || i >= a.mt || j < 0 || j >= a.nt {
			continue
		}
		keys = append(keys, Key{i, j})
	}
	a.st.mu.Unlock()
	sort.Slice(keys, func(x, y int) bool {
		if keys[x].I != keys[y].I {
			return keys[x].I < keys[y].I
		}
		return keys[x].J < keys[y].J
	})
	return keys
}

// ClearWorkspace drops every received (non-origin) tile copy of the whole
// matrix, discarding any device copies they hold against dev (nil when no
// device backend was used).
func (a *Matrix[T]) ClearWorkspace(dev tile.Allocator) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	for k, org := range a.st.origin {
		if org {
			continue
		}
		if dev != nil {
			a.st.tiles[k].Discard(dev)
		}
		delete(a.st.tiles, k)
		delete(a.st.origin, k)
	}
}

// FlushToHost reconciles every dirty device copy of the matrix's origin tiles
// back to the host and releases the device buffers. This is the pipeline
// flush invariant: no dirty device-only state survives past an engine call.
func (a *Matrix[T]) FlushToHost(dev tile.Allocator) {
	if dev == nil {
		return
	}
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	for k, t := range a.st.tiles {
		if a.st.origin[k] {
			t.Flush(dev)
		} else {
			t.Discard(dev)
		}
	}
}
