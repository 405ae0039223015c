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

// Package cpuinfo probes CPU features to pick cache-blocking parameters for
// the host kernels.
package cpuinfo

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// WideVectors reports whether the CPU has 256-bit or wider SIMD units.
// Wider units favor larger cache blocks in the kernel inner loops.
func WideVectors() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAVX2 || cpu.X86.HasAVX512F
	case "arm64":
		return cpu.ARM64.HasSVE
	default:
		return false
	}
}

// BlockDim returns the cache-block edge used by the blocked matrix kernels.
// Sized so three blocks of float64 stay within a typical 32KB L1:
// 48*48*8*3 ≈ 54KB exceeds it, so narrow-vector machines use 32.
func BlockDim() int {
	if WideVectors() {
		return 48
	}
	return 32
}
