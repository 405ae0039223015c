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

// Package tile provides the dense rectangular tile that is the unit of
// distribution and scheduling for the engine. A tile has one authoritative
// host copy (the origin) plus optional per-device workspace copies that must
// be reconciled back to the host before the owning structure is stable.
package tile

import "sync"

// Floats is the scalar element constraint for all tile contents.
type Floats interface {
	~float32 | ~float64
}

// Layout tags the element order of a tile buffer.
type Layout uint8

const (
	// RowMajor stores element (i, j) at Data[i*Stride+j].
	RowMajor Layout = iota
	// ColMajor stores element (i, j) at Data[j*Stride+i].
	ColMajor
)

// Allocator is the device memory ledger a tile charges workspace copies
// against. Implemented by device.Device.
type Allocator interface {
	// Alloc records an allocation of n scalar elements.
	Alloc(n int)
	// Free records the release of n scalar elements.
	Free(n int)
	// ID identifies the device for residency bookkeeping.
	ID() int
}

// Tile is a dense Rows×Cols block in row-major order. The zero value is not
// usable; create tiles with New.
//
// Data is the host copy. Device copies are managed through DeviceGet,
// MarkDeviceDirty and Flush; while a device copy is dirty the host copy is
// stale and must not be read until flushed.
type Tile[T Floats] struct {
	Rows, Cols int
	Stride     int
	Data       []T

	mu       sync.Mutex
	dev      map[int][]T
	devDirty map[int]bool
}

// New creates a zeroed rows×cols tile with Stride == cols.
func New[T Floats](rows, cols int) *Tile[T] {
	if rows <= 0 || cols <= 0 {
		panic("tile: non-positive dimensions")
	}
	return &Tile[T]{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]T, rows*cols),
	}
}

// At returns element (i, j) of the host copy.
func (t *Tile[T]) At(i, j int) T {
	return t.Data[i*t.Stride+j]
}

// Set stores v at element (i, j) of the host copy.
func (t *Tile[T]) Set(i, j int, v T) {
	t.Data[i*t.Stride+j] = v
}

// CopyFrom overwrites the host copy with src's host copy.
// Dimensions must match.
func (t *Tile[T]) CopyFrom(src *Tile[T]) {
	if t.Rows != src.Rows || t.Cols != src.Cols {
		panic("tile: dimension mismatch in CopyFrom")
	}
	for i := range t.Rows {
		copy(t.Data[i*t.Stride:i*t.Stride+t.Cols], src.Data[i*src.Stride:i*src.Stride+src.Cols])
	}
}

// Clone returns a deep copy of the host data.
func (t *Tile[T]) Clone() *Tile[T] {
	c := New[T](t.Rows, t.Cols)
	c.CopyFrom(t)
	return c
}

// DeviceGet returns the workspace copy of the tile on dev, uploading the host
// copy on first use. The returned slice is Rows*Cols row-major with stride
// Cols. The allocation is charged to dev's ledger until Flush or Discard.
func (t *Tile[T]) DeviceGet(dev Allocator) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		t.dev = make(map[int][]T)
		t.devDirty = make(map[int]bool)
	}
	buf, ok := t.dev[dev.ID()]
	if !ok {
		buf = make([]T, t.Rows*t.Cols)
		for i := range t.Rows {
			copy(buf[i*t.Cols:(i+1)*t.Cols], t.Data[i*t.Stride:i*t.Stride+t.Cols])
		}
		dev.Alloc(len(buf))
		t.dev[dev.ID()] = buf
	}
	return buf
}

// MarkDeviceDirty records that the copy on dev is newer than the host copy.
func (t *Tile[T]) MarkDeviceDirty(dev Allocator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devDirty[dev.ID()] = true
}

// DeviceResident reports whether the tile currently holds a copy on dev.
func (t *Tile[T]) DeviceResident(dev Allocator) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.dev[dev.ID()]
	return ok
}

// Flush reconciles a dirty device copy back into the host origin and releases
// the device buffer. It is a no-op if the tile has no copy on dev.
func (t *Tile[T]) Flush(dev Allocator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf, ok := t.dev[dev.ID()]
	if !ok {
		return
	}
	if t.devDirty[dev.ID()] {
		for i := range t.Rows {
			copy(t.Data[i*t.Stride:i*t.Stride+t.Cols], buf[i*t.Cols:(i+1)*t.Cols])
		}
	}
	dev.Free(len(buf))
	delete(t.dev, dev.ID())
	delete(t.devDirty, dev.ID())
}

// Discard drops the device copy without reconciling it. Used for read-only
// workspace copies on exit paths where the host copy is already current.
func (t *Tile[T]) Discard(dev Allocator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf, ok := t.dev[dev.ID()]
	if !ok {
		return
	}
	dev.Free(len(buf))
	delete(t.dev, dev.ID())
	delete(t.devDirty, dev.ID())
}

// Cast converts src into dst element-wise with value (rounding) conversion,
// never bit reinterpretation. Dimensions must match.
func Cast[D, S Floats](dst *Tile[D], src *Tile[S]) {
	if dst.Rows != src.Rows || dst.Cols != src.Cols {
		panic("tile: dimension mismatch in Cast")
	}
	for i := range src.Rows {
		for j := range src.Cols {
			dst.Data[i*dst.Stride+j] = D(src.Data[i*src.Stride+j])
		}
	}
}
