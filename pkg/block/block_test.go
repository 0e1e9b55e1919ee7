// Copyright 2019 Intel Corporation. All Rights Reserved.
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

package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/ftlsim/pkg/badpage"
	"github.com/intel/ftlsim/pkg/bitset"
	"github.com/intel/ftlsim/internal/randsrc"
)

// sequencePER is a test double for errormodel.Model that returns a fixed
// per-call sequence of page error rates, so construction-time badness can
// be pinned deterministically without depending on the RNG draw.
type sequencePER struct {
	ber    float64
	values []float64
	pos    int
}

func (m *sequencePER) Ber() float64      { return m.ber }
func (m *sequencePER) SetBer(b float64)  { m.ber = b }
func (m *sequencePER) String() string    { return "sequencePER" }
func (m *sequencePER) Per() float64 {
	v := m.values[m.pos%len(m.values)]
	m.pos++
	return v
}

func TestNewBlockNoSalvationAllWritable(t *testing.T) {
	b := New(0, 16, 1, nil)
	require.Equal(t, uint32(0), b.UnavailablePageCount())
	require.Equal(t, uint32(0), b.NextWritePageIndex(0))
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	b := New(0, 4, 1, nil)
	b.Write(0, 42, 0, 10)

	require.Equal(t, uint32(1), b.ValidPageCount())
	require.Equal(t, uint32(1), b.NextWritePageIndex(0))

	mask := bitset.New(1)
	lpns := make([]uint64, 1)
	ok := b.GetPageInfo(0, lpns, &mask)
	require.True(t, ok)
	require.Equal(t, uint64(42), lpns[0])
}

func TestWriteOutOfOrderPanics(t *testing.T) {
	b := New(0, 4, 1, nil)
	require.Panics(t, func() {
		b.Write(1, 1, 0, 0)
	})
}

func TestInvalidateThenDirty(t *testing.T) {
	b := New(0, 4, 1, nil)
	b.Write(0, 1, 0, 0)
	b.Invalidate(0, 0)

	require.Equal(t, uint32(0), b.ValidPageCount())
	require.Equal(t, uint32(1), b.DirtyPageCount())
}

func TestInvalidateNotValidPanics(t *testing.T) {
	b := New(0, 4, 1, nil)
	require.Panics(t, func() {
		b.Invalidate(0, 0)
	})
}

func TestEraseRestoresCapacity(t *testing.T) {
	b := New(0, 4, 1, nil)
	b.Write(0, 1, 0, 0)
	b.Write(1, 2, 0, 0)
	b.Invalidate(0, 0)
	b.Invalidate(1, 0)

	b.Erase()

	require.Equal(t, uint32(0), b.ValidPageCount())
	require.Equal(t, uint32(0), b.NextWritePageIndex(0))
	require.Equal(t, uint32(1), b.EraseCount())
}

func TestUnavailablePagesSkippedByCursor(t *testing.T) {
	salv := &Salvation{
		Enabled:  true,
		Model:    &sequencePER{values: []float64{1, 0, 0, 0}},
		Rng:      randsrc.NewFromSeed(1),
		BadPages: badpage.New(),
	}
	b := New(0, 4, 1, salv)

	require.Equal(t, uint32(1), b.UnavailablePageCount())
	require.Equal(t, uint32(1), b.NextWritePageIndex(0)) // skips page 0

	b.Write(1, 99, 0, 0)
	require.Equal(t, uint32(2), b.NextWritePageIndex(0))

	require.True(t, b.IsUnavailable(0))
	require.False(t, b.IsUnavailable(1))
}

func TestIsErasedTracksWriteAndErase(t *testing.T) {
	b := New(0, 4, 1, nil)
	require.True(t, b.IsErased(0, 0))

	b.Write(0, 1, 0, 0)
	require.False(t, b.IsErased(0, 0))
	require.True(t, b.IsValid(0, 0))

	b.Invalidate(0, 0)
	require.False(t, b.IsErased(0, 0))
	require.False(t, b.IsValid(0, 0))

	b.Erase()
	require.True(t, b.IsErased(0, 0))
}

func TestPagesInBlockAndIOUnitInPageReportGeometry(t *testing.T) {
	b := New(0, 8, 2, nil)
	require.Equal(t, uint32(8), b.PagesInBlock())
	require.Equal(t, uint32(2), b.IOUnitInPage())
}
