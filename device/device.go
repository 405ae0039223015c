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

// Package device models an accelerator for the device-batched backend: an
// allocation ledger for workspace buffers plus batched kernel entry points
// that operate on device-resident tile copies. Execution happens on the host
// CPU; what the package enforces is the residency and acquire/release
// discipline a real accelerator would require.
package device

import (
	"sync"

	"github.com/liamscarlett/slate-d35/kernel"
	"github.com/liamscarlett/slate-d35/tile"
)

// Device is one accelerator. It implements tile.Allocator so tiles can charge
// workspace copies against its ledger; tests use the ledger to prove that
// every buffer acquired during a call is released or flushed on exit.
type Device struct {
	id int

	mu     sync.Mutex
	inUse  int64
	peak   int64
	allocs int64
}

// New creates a device with the given index.
func New(id int) *Device {
	return &Device{id: id}
}

// ID returns the device index.
func (d *Device) ID() int { return d.id }

// Alloc records an allocation of n scalar elements.
func (d *Device) Alloc(n int) {
	d.mu.Lock()
	d.inUse += int64(n)
	d.allocs++
	if d.inUse > d.peak {
		d.peak = d.inUse
	}
	d.mu.Unlock()
}

// Free records the release of n scalar elements.
func (d *Device) Free(n int) {
	d.mu.Lock()
	d.inUse -= int64(n)
	if d.inUse < 0 {
		panic("device: ledger underflow")
	}
	d.mu.Unlock()
}

// InUse returns the currently outstanding workspace in scalar elements.
func (d *Device) InUse() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inUse
}

// Peak returns the allocation high-water mark in scalar elements.
func (d *Device) Peak() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peak
}

// GemmBatch runs a batch of multiply-accumulates on device buffers. Every
// buffer in ops must already be resident on d (obtained via Workspace).
func GemmBatch[T tile.Floats](d *Device, ops []kernel.GemmOp[T]) {
	kernel.GemmBatch(ops)
}

// HerkBatch runs a batch of symmetric rank-k updates on device buffers.
func HerkBatch[T tile.Floats](d *Device, ops []kernel.HerkOp[T]) {
	kernel.HerkBatch(ops)
}

// TrsmBatch runs a batch of triangular solves on device buffers.
func TrsmBatch[T tile.Floats](d *Device, ops []kernel.TrsmOp[T]) {
	kernel.TrsmBatch(ops)
}

// Workspace brackets the device buffers of one batched stage. Inputs are
// uploaded on first use and dropped at Release; outputs are marked dirty and
// stay device-resident until the owning matrix reconciles them to host.
// Release must run on every exit path, including failures:
//
//	ws := device.NewWorkspace[float64](dev)
//	defer ws.Release()
type Workspace[T tile.Floats] struct {
	d       *Device
	inputs  []*tile.Tile[T]
	outputs []*tile.Tile[T]
}

// NewWorkspace creates an empty workspace guard for d.
func NewWorkspace[T tile.Floats](d *Device) *Workspace[T] {
	return &Workspace[T]{d: d}
}

// Input returns t's device buffer for read access.
func (w *Workspace[T]) Input(t *tile.Tile[T]) []T {
	buf := t.DeviceGet(w.d)
	w.inputs = append(w.inputs, t)
	return buf
}

// Output returns t's device buffer for write access and marks the device copy
// as the newest version of the tile.
func (w *Workspace[T]) Output(t *tile.Tile[T]) []T {
	buf := t.DeviceGet(w.d)
	t.MarkDeviceDirty(w.d)
	w.outputs = append(w.outputs, t)
	return buf
}

// Release drops the read-only input copies. Output copies remain resident
// (they are the authoritative workspace version) and are reconciled by the
// matrix-level flush at the end of the enclosing pipeline.
func (w *Workspace[T]) Release() {
	for _, t := range w.inputs {
		if !contains(w.outputs, t) {
			t.Discard(w.d)
		}
	}
	w.inputs = w.inputs[:0]
}

func contains[T tile.Floats](ts []*tile.Tile[T], t *tile.Tile[T]) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}
