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
	"github.com/liamscarlett/slate-d35/device"
	"github.com/liamscarlett/slate-d35/matrix"
	"github.com/liamscarlett/slate-d35/tile"
)

// alloc adapts a possibly-nil device handle to the tile allocator interface
// without producing a typed-nil interface value.
func alloc(dev *device.Device) tile.Allocator {
	if dev == nil {
		return nil
	}
	return dev
}

// flushLocal reconciles dirty device copies of the view's origin tiles back to
// the host. Stages that read, swap or transmit tile contents on the host must
// call it first when the Devices target may have left results device-resident.
func flushLocal[T tile.Floats](o *options, a *matrix.Matrix[T]) {
	dev := o.device()
	if dev == nil {
		return
	}
	for _, k := range a.LocalTiles() {
		a.Tile(k.I, k.J).Flush(dev)
	}
}
