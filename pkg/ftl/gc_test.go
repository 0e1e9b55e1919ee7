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

package ftl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateVictimWeightOnlyConsidersFullBlocks(t *testing.T) {
	pm := newSmallMapping(t)

	weights := pm.calculateVictimWeight(PolicyGreedy, 0, pm.pools.Cold)
	require.Empty(t, weights, "no block has been written yet, none should be full")
}

func TestEraseInternalPanicsOnLiveBlock(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	req := Request{LPN: 0, IOFlag: oneFlag()}
	pm.Write(&req, &tick)

	mapping := pm.table[0]
	require.Panics(t, func() {
		pm.eraseInternal(mapping[0].block, &tick)
	})
}

func TestEraseInternalReturnsBlockToFreeList(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	req := Request{LPN: 0, IOFlag: oneFlag()}
	pm.Write(&req, &tick)
	pm.Trim(&req, &tick)

	mapping := pm.table // should no longer contain lpn 0
	require.NotContains(t, mapping, uint64(0))

	// Recover the block index the write landed on from the audit-safe path:
	// re-derive by scanning the cold cluster for the block this LPN used.
	var blockIdx uint32
	found := false
	for idx, b := range pm.pools.Cold.Blocks {
		if b.DirtyPageCount() > 0 {
			blockIdx = idx
			found = true
			break
		}
	}
	require.True(t, found)

	b := pm.pools.Cold.Blocks[blockIdx]
	require.Equal(t, uint32(0), b.ValidPageCount())

	before := len(pm.pools.Cold.FreeBlocks)
	pm.eraseInternal(blockIdx, &tick)
	require.NotContains(t, pm.pools.Cold.Blocks, blockIdx)
	require.Equal(t, before+1, len(pm.pools.Cold.FreeBlocks))

	require.NoError(t, pm.AuditInvariants())
}

func TestDoGarbageCollectionNoopOnEmptyList(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	before := pm.stat.gcCount
	pm.doGarbageCollection([]uint32{}, &tick)
	require.Equal(t, before, pm.stat.gcCount)
	require.Equal(t, uint64(0), tick)
}

func TestSampleWeightsReturnsAllWhenNExceedsLength(t *testing.T) {
	pm := newSmallMapping(t)
	weights := []weighted{{block: 0, weight: 1}, {block: 1, weight: 2}}
	got := pm.sampleWeights(weights, 5)
	require.Len(t, got, 2)
}

func TestSampleWeightsDrawsDistinctEntries(t *testing.T) {
	pm := newSmallMapping(t)
	weights := []weighted{
		{block: 0, weight: 1}, {block: 1, weight: 2},
		{block: 2, weight: 3}, {block: 3, weight: 4},
	}
	got := pm.sampleWeights(weights, 2)
	require.Len(t, got, 2)
	require.NotEqual(t, got[0].block, got[1].block)
}

// countingDRAM wraps the fake DRAM's latency model while counting calls, so
// a test can assert how many times the mapping-table DRAM access was
// charged without caring about the exact tick cost.
type countingDRAM struct {
	reads int
}

func (d *countingDRAM) Read(nBytes uint64, tick *uint64)  { d.reads++; *tick++ }
func (d *countingDRAM) Write(nBytes uint64, tick *uint64) { *tick++ }

func TestDoGarbageCollectionChargesDRAMReadPerRelocatedMapping(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	// Writes rotate across the planes, so filling one block per plane takes
	// PagesInBlock writes per plane.
	for lpn := uint64(0); lpn < uint64(pm.params.PagesInBlock*pm.params.PageCountToMaxPerf); lpn++ {
		req := Request{LPN: lpn, IOFlag: oneFlag()}
		pm.Write(&req, &tick)
	}

	var victim uint32
	found := false
	var wantCopies uint32
	for idx, b := range pm.pools.Cold.Blocks {
		if b.IsFull() && b.ValidPageCountRaw() > 0 {
			victim = idx
			wantCopies = b.ValidPageCountRaw()
			found = true
			break
		}
	}
	require.True(t, found, "expected a full block with live data after filling every plane's frontier exactly")

	dram := &countingDRAM{}
	pm.dram = dram

	pm.doGarbageCollection([]uint32{victim}, &tick)

	require.Equal(t, int(wantCopies), dram.reads)
}
