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
	"sync"

	"github.com/liamscarlett/slate-d35/device"
	"github.com/liamscarlett/slate-d35/kernel"
	"github.com/liamscarlett/slate-d35/tile"
	"github.com/liamscarlett/slate-d35/workerpool"
)

// Target selects how a logical "apply kernel to tile-set" request executes.
// All strategies are semantically interchangeable; they differ only in
// scheduling granularity and residency.
type Target uint8

const (
	// HostTask issues one independent pool task per tile.
	HostTask Target = iota
	// HostNest issues one outer task that fans out over tiles with a second
	// level of parallelism.
	HostNest
	// HostBatch coalesces the tile-set into one batched host kernel call.
	HostBatch
	// Devices stages tiles onto an accelerator and runs one device-batched
	// call; results stay device-resident until the pipeline flush.
	Devices
)

// String names the target for diagnostics.
func (t Target) String() string {
	switch t {
	case HostTask:
		return "host-task"
	case HostNest:
		return "host-nest"
	case HostBatch:
		return "host-batch"
	case Devices:
		return "devices"
	default:
		return "unknown"
	}
}

// tileOp is one tile-level kernel application: a multiply-accumulate, a
// symmetric rank-k update or a triangular solve. Exactly one of the op
// structs is populated; out is the tile the op mutates.
type tileOp[T tile.Floats] struct {
	gemm *kernel.GemmOp[T]
	herk *kernel.HerkOp[T]
	trsm *kernel.TrsmOp[T]

	ins []*tile.Tile[T]
	out *tile.Tile[T]
}

func gemmOp[T tile.Floats](transA, transB bool, alpha T, a, b *tile.Tile[T], beta T, c *tile.Tile[T]) tileOp[T] {
	m, k := a.Rows, a.Cols
	if transA {
		m, k = a.Cols, a.Rows
	}
	n := b.Cols
	if transB {
		n = b.Rows
	}
	return tileOp[T]{
		gemm: &kernel.GemmOp[T]{
			TransA: transA, TransB: transB,
			M: m, N: n, K: k,
			Alpha: alpha, Beta: beta,
			Lda: a.Stride, Ldb: b.Stride, Ldc: c.Stride,
		},
		ins: []*tile.Tile[T]{a, b},
		out: c,
	}
}

func herkOp[T tile.Floats](alpha T, a *tile.Tile[T], beta T, c *tile.Tile[T]) tileOp[T] {
	return tileOp[T]{
		herk: &kernel.HerkOp[T]{
			M: c.Rows, K: a.Cols,
			Alpha: alpha, Beta: beta,
			Lda: a.Stride, Ldc: c.Stride,
		},
		ins: []*tile.Tile[T]{a},
		out: c,
	}
}

func trsmOp[T tile.Floats](uplo kernel.Uplo, unit bool, a, b *tile.Tile[T]) tileOp[T] {
	return tileOp[T]{
		trsm: &kernel.TrsmOp[T]{
			Uplo: uplo, Unit: unit,
			M: b.Rows, N: b.Cols,
			Lda: a.Stride, Ldb: b.Stride,
		},
		ins: []*tile.Tile[T]{a},
		out: b,
	}
}

// bind fills the op's buffer fields from host data.
func (op *tileOp[T]) bindHost() {
	switch {
	case op.gemm != nil:
		op.gemm.A, op.gemm.B, op.gemm.C = op.ins[0].Data, op.ins[1].Data, op.out.Data
	case op.herk != nil:
		op.herk.A, op.herk.C = op.ins[0].Data, op.out.Data
	case op.trsm != nil:
		op.trsm.A, op.trsm.B = op.ins[0].Data, op.out.Data
	}
}

// bindDevice fills the op's buffer fields from device workspace copies.
// Device buffers are dense, so the leading dimensions are rewritten.
func (op *tileOp[T]) bindDevice(ws *device.Workspace[T]) {
	switch {
	case op.gemm != nil:
		op.gemm.A, op.gemm.B = ws.Input(op.ins[0]), ws.Input(op.ins[1])
		op.gemm.C = ws.Output(op.out)
		op.gemm.Lda, op.gemm.Ldb, op.gemm.Ldc = op.ins[0].Cols, op.ins[1].Cols, op.out.Cols
	case op.herk != nil:
		op.herk.A = ws.Input(op.ins[0])
		op.herk.C = ws.Output(op.out)
		op.herk.Lda, op.herk.Ldc = op.ins[0].Cols, op.out.Cols
	case op.trsm != nil:
		op.trsm.A = ws.Input(op.ins[0])
		op.trsm.B = ws.Output(op.out)
		op.trsm.Lda, op.trsm.Ldb = op.ins[0].Cols, op.out.Cols
	}
}

func (op *tileOp[T]) apply() {
	switch {
	case op.gemm != nil:
		op.gemm.Apply()
	case op.herk != nil:
		op.herk.Apply()
	case op.trsm != nil:
		op.trsm.Apply()
	}
}

// dispatch applies a set of independent tile ops using the configured
// strategy. Ops in one batch must touch disjoint output tiles.
func dispatch[T tile.Floats](o *options, ops []tileOp[T]) {
	if len(ops) == 0 {
		return
	}
	switch o.target {
	case HostTask:
		var wg sync.WaitGroup
		for i := range ops {
			op := &ops[i]
			op.bindHost()
			wg.Add(1)
			o.pool.Go(func() {
				defer wg.Done()
				op.apply()
			})
		}
		wg.Wait()

	case HostNest:
		for i := range ops {
			ops[i].bindHost()
		}
		workerpool.Parallel(o.pool, len(ops), func(i int) {
			ops[i].apply()
		})

	case HostBatch:
		gemms, herks, trsms := splitBatch(ops, func(op *tileOp[T]) { op.bindHost() })
		kernel.GemmBatch(gemms)
		kernel.HerkBatch(herks)
		kernel.TrsmBatch(trsms)

	case Devices:
		ws := device.NewWorkspace[T](o.dev)
		defer ws.Release()
		gemms, herks, trsms := splitBatch(ops, func(op *tileOp[T]) { op.bindDevice(ws) })
		device.GemmBatch(o.dev, gemms)
		device.HerkBatch(o.dev, herks)
		device.TrsmBatch(o.dev, trsms)
	}
}

func splitBatch[T tile.Floats](ops []tileOp[T], bind func(*tileOp[T])) (
	gemms []kernel.GemmOp[T], herks []kernel.HerkOp[T], trsms []kernel.TrsmOp[T]) {
	for i := range ops {
		op := &ops[i]
		bind(op)
		switch {
		case op.gemm != nil:
			gemms = append(gemms, *op.gemm)
		case op.herk != nil:
			herks = append(herks, *op.herk)
		case op.trsm != nil:
			trsms = append(trsms, *op.trsm)
		}
	}
	return
}
