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
	"fmt"

	"github.com/hashicorp/go-multierror"

	blk "github.com/intel/ftlsim/pkg/block"
)

// AuditInvariants walks the whole mapping and pool state and returns every
// violation it finds of the structural invariants a correct FTL must
// maintain at rest (between calls, never mid-operation), combined into a
// single error (nil if none). It does not mutate anything; intended for
// tests and debugging, not the hot path.
func (pm *PageMapping) AuditInvariants() error {
	var result *multierror.Error

	seen := map[uint32]bool{}
	result = multierror.Append(result, pm.auditNoBlockInTwoPlaces(seen)...)
	result = multierror.Append(result, pm.auditFreeListOrder("cold", pm.pools.Cold)...)
	result = multierror.Append(result, pm.auditFreeListOrder("hot", pm.pools.Hot)...)
	result = multierror.Append(result, pm.auditMappingBackrefs()...)
	result = multierror.Append(result, pm.auditPagePartition("cold", pm.pools.Cold)...)
	result = multierror.Append(result, pm.auditPagePartition("hot", pm.pools.Hot)...)
	result = multierror.Append(result, pm.auditBadPageRuns()...)
	result = multierror.Append(result, pm.auditHotCandidateDisjoint()...)

	if pm.hotAddressTable.Size() > pm.hotAddressTable.Capacity() {
		result = multierror.Append(result, fmt.Errorf("hot address table size %d exceeds capacity %d",
			pm.hotAddressTable.Size(), pm.hotAddressTable.Capacity()))
	}

	return result.ErrorOrNil()
}

// auditNoBlockInTwoPlaces checks that every physical block index appears in
// at most one of {cold.Blocks, cold.FreeBlocks, hot.Blocks, hot.FreeBlocks}.
func (pm *PageMapping) auditNoBlockInTwoPlaces(seen map[uint32]bool) []error {
	var errs []error

	mark := func(idx uint32, where string) {
		if seen[idx] {
			errs = append(errs, fmt.Errorf("block %d present in more than one pool location (%s)", idx, where))
			return
		}
		seen[idx] = true
	}

	for idx := range pm.pools.Cold.Blocks {
		mark(idx, "cold.Blocks")
	}
	for idx := range pm.pools.Hot.Blocks {
		mark(idx, "hot.Blocks")
	}
	for _, b := range pm.pools.Cold.FreeBlocks {
		mark(b.Index(), "cold.FreeBlocks")
	}
	for _, b := range pm.pools.Hot.FreeBlocks {
		mark(b.Index(), "hot.FreeBlocks")
	}

	return errs
}

// auditFreeListOrder checks the free list is sorted ascending by erase
// count, the invariant every InsertFree call is supposed to preserve.
func (pm *PageMapping) auditFreeListOrder(name string, c *blk.Cluster) []error {
	var errs []error
	for i := 0; i+1 < len(c.FreeBlocks); i++ {
		if c.FreeBlocks[i].EraseCount() > c.FreeBlocks[i+1].EraseCount() {
			errs = append(errs, fmt.Errorf("%s free list out of order at index %d: %d > %d",
				name, i, c.FreeBlocks[i].EraseCount(), c.FreeBlocks[i+1].EraseCount()))
		}
	}
	return errs
}

// auditMappingBackrefs checks that every mapped (non-sentinel) slot points
// at a block that is actually in use by some cluster, and that the page it
// names is reported valid by that block.
func (pm *PageMapping) auditMappingBackrefs() []error {
	var errs []error

	for lpn, mapping := range pm.table {
		for i, m := range mapping {
			if !m.isMapped(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock) {
				continue
			}

			c := pm.findOwningCluster(m.block)
			if c == nil {
				errs = append(errs, fmt.Errorf("lpn %d sub-unit %d maps to block %d which is in no cluster", lpn, i, m.block))
				continue
			}

			b := c.Blocks[m.block]
			if !b.IsValid(m.page, uint32(i)) {
				errs = append(errs, fmt.Errorf("lpn %d sub-unit %d maps to block %d page %d which is not valid", lpn, i, m.block, m.page))
				continue
			}
			if got := b.LPNAt(m.page, uint32(i)); got != lpn {
				errs = append(errs, fmt.Errorf("lpn %d sub-unit %d maps to block %d page %d which is tagged for lpn %d", lpn, i, m.block, m.page, got))
			}
		}
	}

	return errs
}

// auditPagePartition checks, for every (page, sub-unit) of every block in c
// (in use or free), that the page's state is consistent: a page can never be
// both valid and erased at once, and a page permanently marked unavailable
// can never hold live data.
func (pm *PageMapping) auditPagePartition(name string, c *blk.Cluster) []error {
	var errs []error

	check := func(where string, b *blk.Block) {
		for i := uint32(0); i < b.IOUnitInPage(); i++ {
			for p := uint32(0); p < b.PagesInBlock(); p++ {
				valid := b.IsValid(p, i)
				erased := b.IsErased(p, i)
				unavailable := b.IsUnavailable(p)

				if valid && erased {
					errs = append(errs, fmt.Errorf("%s %s block %d page %d sub-unit %d is both valid and erased",
						name, where, b.Index(), p, i))
				}
				if valid && unavailable {
					errs = append(errs, fmt.Errorf("%s %s block %d page %d sub-unit %d is valid but marked unavailable",
						name, where, b.Index(), p, i))
				}
			}
		}
	}

	for idx := range c.Blocks {
		check("in-use", c.Blocks[idx])
	}
	for i := range c.FreeBlocks {
		check("free", &c.FreeBlocks[i])
	}

	return errs
}

// auditBadPageRuns checks that every block's bad-page runs are non-empty,
// in range, sorted and not adjacent (Insert is supposed to bridge any two
// runs that touch into one, so two unmerged adjacent runs indicate a bug).
func (pm *PageMapping) auditBadPageRuns() []error {
	var errs []error

	for _, blkNo := range pm.badPages.BlockIndices() {
		runs := pm.badPages.Runs(blkNo)
		for i, r := range runs {
			if r.Length == 0 {
				errs = append(errs, fmt.Errorf("block %d has an empty bad-page run at %d", blkNo, r.Start))
			}
			if r.Start+r.Length > pm.params.PagesInBlock {
				errs = append(errs, fmt.Errorf("block %d bad-page run [%d,%d) exceeds %d pages",
					blkNo, r.Start, r.Start+r.Length, pm.params.PagesInBlock))
			}
			if i+1 < len(runs) && r.Start+r.Length >= runs[i+1].Start {
				errs = append(errs, fmt.Errorf("block %d bad-page runs [%d,%d) and [%d,%d) should have been merged",
					blkNo, r.Start, r.Start+r.Length, runs[i+1].Start, runs[i+1].Start+runs[i+1].Length))
			}
		}
	}

	return errs
}

// auditHotCandidateDisjoint checks that no LPN is classified both hot and
// candidate at once.
func (pm *PageMapping) auditHotCandidateDisjoint() []error {
	var errs []error

	pm.hotAddressTable.EachCandidate(func(lpn uint64) bool {
		if pm.hotAddressTable.Contains(lpn) {
			errs = append(errs, fmt.Errorf("lpn %d is classified both hot and candidate", lpn))
		}
		return true
	})

	return errs
}
