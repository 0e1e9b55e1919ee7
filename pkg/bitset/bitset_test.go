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

package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetBitCount(t *testing.T) {
	b := New(5)
	require.Equal(t, uint32(0), b.Count())

	b.SetBit(0)
	b.SetBit(4)
	require.True(t, b.Test(0))
	require.True(t, b.Test(4))
	require.False(t, b.Test(1))
	require.Equal(t, uint32(2), b.Count())
}

func TestSetAllMasksTail(t *testing.T) {
	b := New(5)
	b.Set()
	require.Equal(t, uint32(5), b.Count())
	require.True(t, b.All())
}

func TestFlipMasksTail(t *testing.T) {
	b := New(5)
	b.Flip()
	require.Equal(t, uint32(5), b.Count())
}

func TestAndOrIntersects(t *testing.T) {
	a := New(8)
	b := New(8)

	a.SetBit(1)
	a.SetBit(2)
	b.SetBit(2)
	b.SetBit(3)

	require.True(t, a.Intersects(b))

	clone := a.Clone()
	clone.And(b)
	require.True(t, clone.Test(2))
	require.False(t, clone.Test(1))

	a.Or(b)
	require.True(t, a.Test(1))
	require.True(t, a.Test(3))
}

func TestAnyNone(t *testing.T) {
	b := New(3)
	require.True(t, b.None())
	require.False(t, b.Any())

	b.SetBit(1)
	require.True(t, b.Any())
	require.False(t, b.None())
}

func TestWordBoundaryCrossing(t *testing.T) {
	b := New(130)
	b.SetBit(63)
	b.SetBit(64)
	b.SetBit(129)
	require.Equal(t, uint32(3), b.Count())
	b.ClearBit(64)
	require.Equal(t, uint32(2), b.Count())
}
