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

// Package slate is a distributed tile-based dense linear algebra engine.
// Matrices are partitioned into tiles distributed 2-D block-cyclically over a
// group of SPMD ranks; algorithms are organized as lookahead pipelines that
// overlap tile broadcasts with trailing-matrix updates, and tile-level kernel
// work executes through one of four interchangeable backend strategies
// (per-tile tasks, nested parallel loops, host batches, or device batches).
//
// The engine provides the symmetric rank-k update (Herk), general matrix
// multiply (Gemm), pivoted LU factorization and solve (Getrf, Getrs, Gesv),
// a mixed-precision iterative-refinement solver (GesvMixed) and a staged
// symmetric eigensolver (He2hb, Heev).
//
// Every top-level operation is collective: all ranks of the group call it
// with the same arguments, and results are deterministic regardless of the
// lookahead depth and backend strategy chosen.
package slate
