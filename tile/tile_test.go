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

package tile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ledger is a minimal allocator recording outstanding elements.
type ledger struct {
	id    int
	inUse int
}

func (l *ledger) Alloc(n int) { l.inUse += n }
func (l *ledger) Free(n int)  { l.inUse -= n }
func (l *ledger) ID() int     { return l.id }

func TestNewZeroed(t *testing.T) {
	tl := New[float64](3, 5)
	require.Equal(t, 3, tl.Rows)
	require.Equal(t, 5, tl.Cols)
	require.Equal(t, 5, tl.Stride)
	require.Len(t, tl.Data, 15)
	for _, v := range tl.Data {
		require.Zero(t, v)
	}
}

func TestAtSet(t *testing.T) {
	tl := New[float32](4, 4)
	tl.Set(2, 3, 7.5)
	require.Equal(t, float32(7.5), tl.At(2, 3))
	require.Zero(t, tl.At(3, 2))
}

func TestCopyFromAndClone(t *testing.T) {
	src := New[float64](2, 3)
	for i := range src.Data {
		src.Data[i] = float64(i + 1)
	}
	dst := New[float64](2, 3)
	dst.CopyFrom(src)
	require.Equal(t, src.Data, dst.Data)

	c := src.Clone()
	c.Set(0, 0, -1)
	require.Equal(t, float64(1), src.At(0, 0))

	require.Panics(t, func() { New[float64](3, 2).CopyFrom(src) })
}

func TestCastRounds(t *testing.T) {
	src := New[float64](2, 2)
	src.Set(0, 0, 1.0000000001)
	src.Set(1, 1, -3.5)
	dst := New[float32](2, 2)
	Cast(dst, src)
	require.Equal(t, float32(1), dst.At(0, 0))
	require.Equal(t, float32(-3.5), dst.At(1, 1))
}

func TestDeviceRoundTrip(t *testing.T) {
	dev := &ledger{id: 0}
	tl := New[float64](2, 2)
	tl.Set(0, 0, 1)
	tl.Set(1, 1, 2)

	buf := tl.DeviceGet(dev)
	require.Equal(t, []float64{1, 0, 0, 2}, buf)
	require.Equal(t, 4, dev.inUse)
	require.True(t, tl.DeviceResident(dev))

	// Repeated acquisition reuses the buffer without a second charge.
	again := tl.DeviceGet(dev)
	require.Same(t, &buf[0], &again[0])
	require.Equal(t, 4, dev.inUse)

	buf[1] = 9
	tl.MarkDeviceDirty(dev)
	tl.Flush(dev)
	require.Equal(t, float64(9), tl.At(0, 1))
	require.Zero(t, dev.inUse)
	require.False(t, tl.DeviceResident(dev))
}

func TestDiscardKeepsHost(t *testing.T) {
	dev := &ledger{id: 1}
	tl := New[float64](2, 2)
	tl.Set(0, 0, 5)

	buf := tl.DeviceGet(dev)
	buf[0] = -5
	tl.MarkDeviceDirty(dev)
	tl.Discard(dev)

	require.Equal(t, float64(5), tl.At(0, 0))
	require.Zero(t, dev.inUse)
}

func TestFlushWithoutCopyIsNoop(t *testing.T) {
	dev := &ledger{id: 2}
	tl := New[float64](1, 1)
	tl.Flush(dev)
	require.Zero(t, dev.inUse)
}

func TestCleanFlushSkipsDownload(t *testing.T) {
	dev := &ledger{id: 3}
	tl := New[float64](1, 2)
	tl.Set(0, 0, 4)
	buf := tl.DeviceGet(dev)
	buf[0] = 8 // never marked dirty
	tl.Flush(dev)
	require.Equal(t, float64(4), tl.At(0, 0))
	require.Zero(t, dev.inUse)
}
