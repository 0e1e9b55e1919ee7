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

import "github.com/intel/ftlsim/pkg/bitset"

// Pools owns the exactly-two clusters (cold, hot), the cross-pool lending
// between them and the allocation frontier. The clusters' FreeBlocks lists
// are exported and may also be filled directly by the caller.
type Pools struct {
	Cold *Cluster
	Hot  *Cluster

	BRandomTweak bool
	BReclaimMore bool
	pagesInBlock uint32
}

// NewPools builds the cold/hot pair with planeCount write frontiers each.
func NewPools(planeCount, ioUnitInPage, pagesInBlock uint32, bRandomTweak bool) *Pools {
	return &Pools{
		Cold:         NewCluster(Cold, planeCount, ioUnitInPage),
		Hot:          NewCluster(Hot, planeCount, ioUnitInPage),
		BRandomTweak: bRandomTweak,
		pagesInBlock: pagesInBlock,
	}
}

// Cluster returns the named pool's cluster.
func (p *Pools) Cluster(pool Pool) *Cluster {
	if pool == Hot {
		return p.Hot
	}
	return p.Cold
}

func (p *Pools) opposite(c *Cluster) *Cluster {
	if c == p.Cold {
		return p.Hot
	}
	return p.Cold
}

// FreeCount returns the total number of free blocks across both pools.
func (p *Pools) FreeCount() int {
	return len(p.Cold.FreeBlocks) + len(p.Hot.FreeBlocks)
}

// GetFreeBlock pops a free block for the given plane from c, borrowing one
// from the opposite pool first if c has none free, and moves it into
// c.Blocks. Returns the block index. Panics if both pools are exhausted —
// a configuration-fatal condition, since the simulator cannot continue
// accepting writes with no free blocks anywhere.
func (p *Pools) GetFreeBlock(plane uint32, c *Cluster) uint32 {
	if len(c.FreeBlocks) == 0 {
		p.BorrowFreeBlocks(p.opposite(c), c, 1)
	}

	blk, ok := c.takeFreeBlockForPlane(plane)
	if !ok {
		panic("block: no free block left in either pool")
	}

	idx := blk.Index()
	if _, exists := c.Blocks[idx]; exists {
		panic("block: getFreeBlock: block already in use")
	}
	c.Blocks[idx] = &blk

	return idx
}

// BorrowFreeBlocks splices up to n free blocks from src's free list into
// dst's, taking the lowest-erase-count blocks first. It is a no-op if src
// itself has nothing to lend.
func (p *Pools) BorrowFreeBlocks(src, dst *Cluster, n int) {
	if n > len(src.FreeBlocks) {
		n = len(src.FreeBlocks)
	}
	for i := 0; i < n; i++ {
		blk := src.FreeBlocks[0]
		src.FreeBlocks = src.FreeBlocks[1:]
		dst.InsertFree(blk)
	}
}

// GetFrontier returns the block that the next write at sub-units iomap
// should land in, advancing the round-robin plane cursor per the rule in
// §4.5: when bRandomTweak is off, or the active frontier's io-map already
// overlaps iomap, rotate to the next plane and reset the io-map; otherwise
// accumulate iomap into the current plane's tracked mask and keep it.
func (p *Pools) GetFrontier(iomap bitset.Bitset, c *Cluster) *Block {
	idx := p.getLastFreeBlockIdx(iomap, c)
	blk, ok := c.Blocks[idx]
	if !ok {
		panic("block: getFrontier: frontier block missing from cluster")
	}
	return blk
}

func (p *Pools) getLastFreeBlockIdx(iomap bitset.Bitset, c *Cluster) uint32 {
	rotate := !p.BRandomTweak
	if p.BRandomTweak && c.lastFreeBlockIOMap.Intersects(iomap) {
		rotate = true
	}

	if rotate {
		c.lastFreeBlockIndex++
		if c.lastFreeBlockIndex == uint32(len(c.lastFreeBlock)) {
			c.lastFreeBlockIndex = 0
		}
		c.lastFreeBlockIOMap = iomap.Clone()
	} else {
		c.lastFreeBlockIOMap.Or(iomap)
	}

	result := c.lastFreeBlock[c.lastFreeBlockIndex]

	blk, ok := c.Blocks[result]
	if !ok {
		panic("block: getLastFreeBlock: frontier corrupted")
	}

	if blk.NextWritePageIndex(0)+1 == p.pagesInBlock {
		c.lastFreeBlock[c.lastFreeBlockIndex] = p.GetFreeBlock(c.lastFreeBlockIndex, c)
		p.BReclaimMore = true
	}

	return result
}

// PrimeFrontiers assigns each plane's initial frontier block by calling
// GetFreeBlock once per plane. Skips the hot cluster when hotColdEnabled
// is false, matching initialization's "skip hot if disabled" rule.
func (p *Pools) PrimeFrontiers(hotColdEnabled bool) {
	planeCount := uint32(len(p.Cold.lastFreeBlock))
	for i := uint32(0); i < planeCount; i++ {
		p.Cold.lastFreeBlock[i] = p.GetFreeBlock(i, p.Cold)
		if hotColdEnabled {
			p.Hot.lastFreeBlock[i] = p.GetFreeBlock(i, p.Hot)
		}
	}
}
