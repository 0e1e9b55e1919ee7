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

package hotaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecondTouchPromotesToHot(t *testing.T) {
	tbl := New(1)
	tbl.Update(1) // fills the only hot slot, so 10 has to wait as a candidate
	tbl.Update(10)
	require.False(t, tbl.Contains(10))

	tbl.Update(10)
	require.True(t, tbl.Contains(10))
}

func TestCapacityEviction(t *testing.T) {
	tbl := New(1)
	tbl.Update(1)
	tbl.Update(1) // hot
	tbl.Update(2)
	tbl.Update(2) // hot, evicts 1 to candidate since capacity is 1

	require.True(t, tbl.Contains(2))
	require.False(t, tbl.Contains(1))
}

func TestSetSizeZeroClearsHot(t *testing.T) {
	tbl := New(4)
	tbl.Update(1)
	tbl.Update(1)
	require.True(t, tbl.Contains(1))

	tbl.SetSize(0)
	require.False(t, tbl.Contains(1))
}

func TestSetSizeGrowthPromotesCandidates(t *testing.T) {
	tbl := New(1)
	tbl.Update(1) // takes the only hot slot
	tbl.Update(5) // candidate
	require.False(t, tbl.Contains(5))

	tbl.SetSize(2)
	require.True(t, tbl.Contains(5))
}

func TestCandidateAndHotAreDisjoint(t *testing.T) {
	tbl := New(1)
	tbl.Update(1)
	tbl.Update(1) // hot
	tbl.Update(2) // candidate only

	require.True(t, tbl.Contains(1))
	require.False(t, tbl.ContainsCandidate(1))
	require.True(t, tbl.ContainsCandidate(2))
	require.False(t, tbl.Contains(2))
}

func TestEachHotAndEachCandidateEnumerateMembers(t *testing.T) {
	tbl := New(4)
	tbl.Update(1)
	tbl.Update(1) // hot
	tbl.Update(2) // candidate

	var hot, candidate []uint64
	tbl.EachHot(func(lpn uint64) bool { hot = append(hot, lpn); return true })
	tbl.EachCandidate(func(lpn uint64) bool { candidate = append(candidate, lpn); return true })

	require.Equal(t, []uint64{1}, hot)
	require.Equal(t, []uint64{2}, candidate)
}
