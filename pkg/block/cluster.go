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

// Pool names the two block clusters; the source iterates a fixed
// two-element array via pointer arithmetic on cluster addresses, which
// this enum/array pairing replaces.
type Pool int

const (
	Cold Pool = iota
	Hot
)

// Cluster is a pool partition: blocks currently in use, blocks free for
// allocation (kept sorted ascending by erase count), and one write
// frontier per parallel plane.
type Cluster struct {
	Pool Pool

	Blocks     map[uint32]*Block
	FreeBlocks []Block // ascending by EraseCount

	lastFreeBlock      []uint32
	lastFreeBlockIOMap bitset.Bitset
	lastFreeBlockIndex uint32

	pageCountToMaxPerf uint32
}

// NewCluster returns an empty cluster with planeCount write frontiers.
func NewCluster(pool Pool, planeCount, ioUnitInPage uint32) *Cluster {
	return &Cluster{
		Pool:               pool,
		Blocks:             map[uint32]*Block{},
		lastFreeBlock:      make([]uint32, planeCount),
		lastFreeBlockIOMap: bitset.New(ioUnitInPage),
		pageCountToMaxPerf: planeCount,
	}
}

// InsertFree inserts blk into FreeBlocks preserving the ascending-by-
// EraseCount invariant, scanning from the tail so ties keep arrival order
// (mirrors reverse-scan-then-insert in the source).
func (c *Cluster) InsertFree(blk Block) {
	i := len(c.FreeBlocks)
	for i > 0 && c.FreeBlocks[i-1].EraseCount() > blk.EraseCount() {
		i--
	}
	c.FreeBlocks = append(c.FreeBlocks, Block{})
	copy(c.FreeBlocks[i+1:], c.FreeBlocks[i:len(c.FreeBlocks)-1])
	c.FreeBlocks[i] = blk
}

// takeFreeBlockForPlane removes and returns the free block whose index
// equals plane modulo the cluster's plane count, falling back to the
// lowest-erase-count free block (FreeBlocks[0]) if none matches.
func (c *Cluster) takeFreeBlockForPlane(plane uint32) (Block, bool) {
	if len(c.FreeBlocks) == 0 {
		return Block{}, false
	}

	idx := -1
	for i := range c.FreeBlocks {
		if c.FreeBlocks[i].Index()%c.pageCountToMaxPerf == plane {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
	}

	blk := c.FreeBlocks[idx]
	c.FreeBlocks = append(c.FreeBlocks[:idx], c.FreeBlocks[idx+1:]...)
	return blk, true
}
