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
	"sort"

	"github.com/intel/ftlsim/pkg/bitset"
	blk "github.com/intel/ftlsim/pkg/block"
	"github.com/intel/ftlsim/pkg/pal"
)

type weighted struct {
	block  uint32
	weight float64
}

// calculateVictimWeight scores every fully-written block in c under
// policy; a lower weight makes a block a better GC candidate.
func (pm *PageMapping) calculateVictimWeight(policy EvictPolicy, tick uint64, c *blk.Cluster) []weighted {
	var out []weighted

	for idx, b := range c.Blocks {
		if !b.IsFull() {
			continue
		}

		switch policy {
		case PolicyGreedy, PolicyRandom, PolicyDChoice:
			out = append(out, weighted{block: idx, weight: float64(b.ValidPageCountRaw())})
		case PolicyCostBenefit:
			u := float64(b.ValidPageCountRaw()) / float64(pm.params.PagesInBlock)
			age := float64(tick - b.LastAccessed())
			out = append(out, weighted{block: idx, weight: u / ((1 - u) * age)})
		default:
			panic("ftl: invalid evict policy")
		}
	}

	return out
}

// selectVictimBlock picks the blocks to reclaim from both pools, following
// the configured GC mode, evict policy and reclaim-block count.
func (pm *PageMapping) selectVictimBlock(tick uint64) []uint32 {
	nBlocks := pm.params.GCReclaimBlock

	switch pm.params.GCMode {
	case GCModeFixed:
		// nBlocks already set.
	case GCModeThreshold:
		target := int64(float64(pm.params.TotalPhysicalBlocks)*pm.params.GCReclaimThreshold) - int64(pm.pools.FreeCount())
		if target < 0 {
			target = 0
		}
		nBlocks = uint64(target)
	default:
		panic("ftl: invalid GC mode")
	}

	if pm.pools.BReclaimMore {
		nBlocks += uint64(pm.params.PageCountToMaxPerf)
		pm.pools.BReclaimMore = false
	}

	var result []uint32

	for _, c := range []*blk.Cluster{pm.pools.Cold, pm.pools.Hot} {
		weights := pm.calculateVictimWeight(pm.params.EvictPolicy, tick, c)

		n := nBlocks
		if pm.params.EvictPolicy == PolicyRandom || pm.params.EvictPolicy == PolicyDChoice {
			randomRange := n
			if pm.params.EvictPolicy == PolicyDChoice {
				randomRange = uint64(pm.params.GCDChoiceParam) * n
			}
			weights = pm.sampleWeights(weights, randomRange)
		}

		sort.Slice(weights, func(i, j int) bool { return weights[i].weight < weights[j].weight })

		if n > uint64(len(weights)) {
			n = uint64(len(weights))
		}
		for i := uint64(0); i < n; i++ {
			result = append(result, weights[i].block)
		}
	}

	return result
}

// sampleWeights draws up to n distinct entries uniformly from weights,
// without replacement.
func (pm *PageMapping) sampleWeights(weights []weighted, n uint64) []weighted {
	if n >= uint64(len(weights)) {
		return weights
	}

	pool := make([]weighted, len(weights))
	copy(pool, weights)

	selected := make([]weighted, 0, n)
	for uint64(len(selected)) < n && len(pool) > 0 {
		i := pm.rng.Intn(len(pool))
		selected = append(selected, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return selected
}

// doGarbageCollection relocates every valid page of each block in
// blocksToReclaim to the cold cluster's frontier, then erases the
// reclaimed blocks. If blocksToReclaim is nil, victims are chosen via
// selectVictimBlock first — the path a threshold-triggered write takes;
// Format instead passes an explicit, already-determined block list.
func (pm *PageMapping) doGarbageCollection(blocksToReclaim []uint32, tick *uint64) {
	if blocksToReclaim == nil {
		blocksToReclaim = pm.selectVictimBlock(*tick)
	}
	if len(blocksToReclaim) == 0 {
		return
	}

	pm.stat.gcCount++

	type ioOp struct {
		req     pal.Request
		beginAt uint64
	}
	var reads, writes, erases []ioOp

	bit := bitset.New(pm.params.IOUnitInPage)
	lpns := make([]uint64, pm.bitsetSize)

	for _, blockIdx := range blocksToReclaim {
		c := pm.findOwningCluster(blockIdx)
		if c == nil {
			panic("ftl: invalid block in reclaim list")
		}
		victim := c.Blocks[blockIdx]

		pm.validPageAcc += uint64(victim.ValidPageCountRaw())
		pm.validPageCnt++

		for page := uint32(0); page < pm.params.PagesInBlock; page++ {
			bit.Reset()
			if !victim.GetPageInfo(page, lpns, &bit) {
				continue
			}
			if !pm.params.UseRandomIOTweak {
				bit.Set()
			}

			frontier := pm.pools.GetFrontier(bit, pm.pools.Cold)

			reads = append(reads, ioOp{req: pal.Request{BlockIndex: blockIdx, PageIndex: page}})

			for i := uint32(0); i < pm.bitsetSize; i++ {
				if !bit.Test(i) {
					continue
				}

				victim.Invalidate(page, i)

				mapping, ok := pm.table[lpns[i]]
				if !ok {
					panic("ftl: invalid mapping table entry during GC")
				}

				pm.dram.Read(8*uint64(pm.params.IOUnitInPage), tick)

				newPage := frontier.NextWritePageIndex(i)
				mapping[i] = slot{block: frontier.Index(), page: newPage}

				frontier.Write(newPage, lpns[i], i, *tick)

				writes = append(writes, ioOp{req: pal.Request{BlockIndex: frontier.Index(), PageIndex: newPage}})

				pm.stat.validPageCopies++
			}

			pm.stat.validSuperPageCopies++
		}

		erases = append(erases, ioOp{req: pal.Request{BlockIndex: blockIdx}})
	}

	readFinishedAt := *tick
	for i := range reads {
		beginAt := *tick
		pm.pal.Read(reads[i].req, &beginAt)
		if beginAt > readFinishedAt {
			readFinishedAt = beginAt
		}
	}

	writeFinishedAt := readFinishedAt
	for i := range writes {
		beginAt := readFinishedAt
		pm.pal.Write(writes[i].req, &beginAt)
		if beginAt > writeFinishedAt {
			writeFinishedAt = beginAt
		}
	}

	eraseFinishedAt := readFinishedAt
	for i := range erases {
		beginAt := readFinishedAt
		pm.eraseInternal(erases[i].req.BlockIndex, &beginAt)
		if beginAt > eraseFinishedAt {
			eraseFinishedAt = beginAt
		}
	}

	if writeFinishedAt > eraseFinishedAt {
		*tick = writeFinishedAt
	} else {
		*tick = eraseFinishedAt
	}

	pm.stat.reclaimedBlocks += uint64(len(blocksToReclaim))
}

// eraseInternal erases blockIdx and either returns it to its cluster's
// free list or drops it permanently, depending on the salvation policy.
func (pm *PageMapping) eraseInternal(blockIdx uint32, tick *uint64) {
	c := pm.findOwningCluster(blockIdx)
	if c == nil {
		panic("ftl: erase of a block not in any cluster")
	}
	b := c.Blocks[blockIdx]

	if b.ValidPageCount() != 0 {
		panic("ftl: erase of a block with live pages")
	}

	pm.pal.Erase(pal.Request{BlockIndex: blockIdx}, tick)

	b.Erase()
	delete(c.Blocks, blockIdx)

	alive := false
	if pm.salvation.Enabled {
		alive = b.UnavailablePageRatio() < pm.salvation.UnavailablePageRatio
	} else {
		alive = b.UnavailablePageCount() == 0
	}

	if !alive {
		return
	}

	dest := pm.pools.Cold
	if pm.hotAddressTable.Enabled && b.UnavailablePageCount() > 0 {
		dest = pm.pools.Hot
	}
	dest.InsertFree(*b)
}
