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

// Command slateinfo prints the CPU features and kernel tuning parameters the
// engine would pick on this machine.
package main

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/liamscarlett/slate-d35/internal/cpuinfo"
)

func main() {
	fmt.Printf("GOOS: %s\n", runtime.GOOS)
	fmt.Printf("GOARCH: %s\n", runtime.GOARCH)
	fmt.Printf("NumCPU: %d\n", runtime.NumCPU())

	switch runtime.GOARCH {
	case "amd64":
		fmt.Printf("AVX2: %v\n", cpu.X86.HasAVX2)
		fmt.Printf("AVX512F: %v\n", cpu.X86.HasAVX512F)
	case "arm64":
		fmt.Printf("NEON: %v\n", cpu.ARM64.HasASIMD)
		fmt.Printf("SVE: %v\n", cpu.ARM64.HasSVE)
	}

	fmt.Printf("wide vectors: %v\n", cpuinfo.WideVectors())
	fmt.Printf("kernel block dim: %d\n", cpuinfo.BlockDim())
}
