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
	"math/rand"

	"github.com/intel/ftlsim/internal/randsrc"
	"github.com/intel/ftlsim/pkg/badpage"
	"github.com/intel/ftlsim/pkg/bitset"
	blk "github.com/intel/ftlsim/pkg/block"
	"github.com/intel/ftlsim/pkg/errormodel"
	"github.com/intel/ftlsim/pkg/hotaddr"
	logger "github.com/intel/ftlsim/pkg/log"
	"github.com/intel/ftlsim/pkg/pal"
)

var log = logger.NewLogger("ftl.page_mapping")

type gcStats struct {
	gcCount           uint64
	reclaimedBlocks   uint64
	validSuperPageCopies uint64
	validPageCopies   uint64
}

// PageMapping is the FTL proper: the LPN mapping table, the read/write/
// trim/format entry points, and the garbage collector that keeps the
// free-block ratio above threshold.
type PageMapping struct {
	params Params

	pal  pal.PAL
	dram pal.DRAM

	pools *blk.Pools

	table map[uint64][]slot

	badPages        *badpage.Table
	hotAddressTable *hotaddr.Table
	errorModel      errormodel.Model
	salvation       *blk.Salvation
	rng             *randsrc.Source

	bitsetSize uint32

	validPageAcc uint64
	validPageCnt uint64

	stat gcStats
}

// NewPageMapping constructs a PageMapping from a loaded Params, a PAL, and a
// DRAM model, placing every physical block into the cold/hot free pools (or
// dropping it) per the salvation policy, then priming each plane's write
// frontier. It does not perform warm-up fill; call Initialize for that.
func NewPageMapping(params Params, p pal.PAL, d pal.DRAM) *PageMapping {
	rng := randsrc.NewFromSeed(params.Seed)

	pm := &PageMapping{
		params: params,
		pal:    p,
		dram:   d,
		table:  map[uint64][]slot{},
		rng:    rng,
	}

	pm.badPages = badpage.New()
	pm.hotAddressTable = hotaddr.New(0)
	pm.hotAddressTable.Enabled = params.EnableHotCold

	pm.errorModel = errormodel.NewLogNormal(params.Ber, params.Sigma, params.PageSize, rng)

	pm.salvation = &blk.Salvation{
		Enabled:              params.UseBadBlockSalvation,
		UnavailablePageRatio: params.UnavailablePageThreshold,
		Model:                pm.errorModel,
		HotAddressTable:      pm.hotAddressTable,
		BadPages:             pm.badPages,
		Rng:                  rng,
	}

	pm.pools = blk.NewPools(params.PageCountToMaxPerf, params.IOUnitInPage, params.PagesInBlock, params.UseRandomIOTweak)

	pm.bitsetSize = 1
	if params.UseRandomIOTweak {
		pm.bitsetSize = params.IOUnitInPage
	}

	pm.populateBlocks()

	var hotFreePages uint64
	for _, b := range pm.pools.Hot.FreeBlocks {
		hotFreePages += uint64(params.PagesInBlock - b.UnavailablePageCount())
	}
	pm.hotAddressTable.SetSize(uint64(float64(hotFreePages) * params.HotColdCapacityRatio))

	pm.pools.PrimeFrontiers(params.EnableHotCold)

	return pm
}

func (pm *PageMapping) populateBlocks() {
	for i := uint32(0); i < pm.params.TotalPhysicalBlocks; i++ {
		b := blk.New(i, pm.params.PagesInBlock, pm.params.IOUnitInPage, pm.salvation)

		switch {
		case !pm.salvation.Enabled:
			if b.UnavailablePageCount() == 0 {
				pm.pools.Cold.FreeBlocks = append(pm.pools.Cold.FreeBlocks, b)
			}
		case pm.hotAddressTable.Enabled:
			switch {
			case b.UnavailablePageCount() == 0:
				pm.pools.Cold.FreeBlocks = append(pm.pools.Cold.FreeBlocks, b)
			case b.UnavailablePageRatio() < pm.salvation.UnavailablePageRatio:
				pm.pools.Hot.FreeBlocks = append(pm.pools.Hot.FreeBlocks, b)
			}
		default:
			if b.UnavailablePageRatio() < pm.salvation.UnavailablePageRatio {
				pm.pools.Cold.FreeBlocks = append(pm.pools.Cold.FreeBlocks, b)
			}
		}
	}

	sortFreeByEraseCount(pm.pools.Cold.FreeBlocks)
	sortFreeByEraseCount(pm.pools.Hot.FreeBlocks)
}

func sortFreeByEraseCount(blocks []blk.Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].EraseCount() < blocks[j].EraseCount()
	})
}

// totalLogicalPages returns the logical page count the mapping table
// addresses.
func (pm *PageMapping) totalLogicalPages() uint64 {
	return uint64(pm.params.TotalLogicalBlocks) * uint64(pm.params.PagesInBlock)
}

// Initialize runs the warm-up fill/invalidate passes described in §4.8,
// never triggering GC. Safe to call at most once, immediately after New.
func (pm *PageMapping) Initialize() {
	total := pm.totalLogicalPages()
	nFill := uint64(float64(total) * pm.params.FillRatio)
	nInvalidate := uint64(float64(total) * pm.params.InvalidPageRatio)

	maxPagesBeforeGC := uint64(pm.params.PagesInBlock) *
		(uint64(float64(pm.params.TotalPhysicalBlocks)*(1-pm.params.GCThresholdRatio)) - uint64(pm.params.PageCountToMaxPerf))

	if nFill+nInvalidate > maxPagesBeforeGC {
		log.Warn("too high filling ratio, clamping invalid page ratio")
		if nFill > maxPagesBeforeGC {
			nInvalidate = 0
		} else {
			nInvalidate = maxPagesBeforeGC - nFill
		}
	}

	fillRng := rand.New(rand.NewSource(pm.params.Seed ^ 0x51a7))

	req := Request{IOFlag: bitset.New(pm.params.IOUnitInPage)}
	req.IOFlag.Set()
	var tick uint64

	// Step 1: filling.
	switch pm.params.FillingMode {
	case FillingMode0, FillingMode1:
		for i := uint64(0); i < nFill; i++ {
			req.LPN = i
			pm.writeInternal(&req, &tick, false)
		}
	default:
		for i := uint64(0); i < nFill; i++ {
			req.LPN = uint64(fillRng.Int63n(int64(total)))
			pm.writeInternal(&req, &tick, false)
		}
	}

	// Step 2: invalidating.
	switch pm.params.FillingMode {
	case FillingMode0:
		for i := uint64(0); i < nInvalidate; i++ {
			req.LPN = i
			pm.writeInternal(&req, &tick, false)
		}
	case FillingMode1:
		bound := nFill
		if bound == 0 {
			bound = 1
		}
		for i := uint64(0); i < nInvalidate; i++ {
			req.LPN = uint64(fillRng.Int63n(int64(bound)))
			pm.writeInternal(&req, &tick, false)
		}
	default:
		for i := uint64(0); i < nInvalidate; i++ {
			req.LPN = uint64(fillRng.Int63n(int64(total)))
			pm.writeInternal(&req, &tick, false)
		}
	}
}

// Read resolves req.LPN to its mapped physical pages and issues a PAL read
// for each active sub-unit, folding completion times into tick.
func (pm *PageMapping) Read(req *Request, tick *uint64) {
	if req.IOFlag.Count() == 0 {
		log.Warn("ftl got empty read request")
		return
	}
	pm.readInternal(req, tick)
}

func (pm *PageMapping) readInternal(req *Request, tick *uint64) {
	mapping, ok := pm.table[req.LPN]
	if !ok {
		return
	}

	finishedAt := *tick
	pm.dram.Read(8*uint64(req.IOFlag.Count()), tick)

	for i := uint32(0); i < pm.bitsetSize; i++ {
		if !req.IOFlag.Test(i) && pm.params.UseRandomIOTweak {
			continue
		}
		m := mapping[i]
		if !m.isMapped(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock) {
			continue
		}

		c := pm.findOwningCluster(m.block)
		if c == nil {
			panic("ftl: block is not in use")
		}
		b := c.Blocks[m.block]

		beginAt := *tick
		b.Read(m.page, i, beginAt)
		pm.pal.Read(pal.Request{BlockIndex: m.block, PageIndex: m.page}, &beginAt)

		if beginAt > finishedAt {
			finishedAt = beginAt
		}
	}

	*tick = finishedAt
}

// Write invalidates any previous mapping for req.LPN, routes the new write
// to the hot or cold frontier depending on the hot-address table, and runs
// GC inline if the free-block ratio then falls below threshold.
func (pm *PageMapping) Write(req *Request, tick *uint64) {
	if req.IOFlag.Count() == 0 {
		log.Warn("ftl got empty write request")
		return
	}
	pm.writeInternal(req, tick, true)
}

func (pm *PageMapping) writeInternal(req *Request, tick *uint64, sendToPAL bool) {
	if pm.hotAddressTable.Enabled {
		pm.hotAddressTable.Update(req.LPN)
	}

	mapping, existed := pm.table[req.LPN]
	if existed {
		for i := uint32(0); i < pm.bitsetSize; i++ {
			if !req.IOFlag.Test(i) && pm.params.UseRandomIOTweak {
				continue
			}
			m := mapping[i]
			if m.isMapped(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock) {
				c := pm.findOwningCluster(m.block)
				if c == nil {
					panic("ftl: block is not in use")
				}
				c.Blocks[m.block].Invalidate(m.page, i)
			}
		}
	} else {
		mapping = make([]slot, pm.bitsetSize)
		sentinel := unmappedSlot(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock)
		for i := range mapping {
			mapping[i] = sentinel
		}
		pm.table[req.LPN] = mapping
	}

	isHot := pm.hotAddressTable.Enabled && pm.hotAddressTable.Contains(req.LPN)
	cluster := pm.pools.Cold
	if isHot {
		cluster = pm.pools.Hot
	}

	frontier := pm.pools.GetFrontier(req.IOFlag, cluster)

	if sendToPAL {
		n := uint64(8)
		if pm.params.UseRandomIOTweak {
			n = 8 * uint64(req.IOFlag.Count())
		}
		pm.dram.Read(n, tick)
		pm.dram.Write(n, tick)
	}

	// A non-random-tweak partial write only supplies data for some
	// sub-units; the rest of the superpage has to be read from its old
	// location before the mapping table forgets where that was.
	readBeforeWrite := !pm.params.UseRandomIOTweak && !req.IOFlag.All()

	finishedAt := *tick
	for i := uint32(0); i < pm.bitsetSize; i++ {
		if !req.IOFlag.Test(i) && pm.params.UseRandomIOTweak {
			continue
		}

		pageIndex := frontier.NextWritePageIndex(i)
		beginAt := *tick

		frontier.Write(pageIndex, req.LPN, i, beginAt)

		if readBeforeWrite && sendToPAL {
			old := mapping[i]
			if old.isMapped(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock) {
				pm.pal.Read(pal.Request{BlockIndex: old.block, PageIndex: old.page}, &beginAt)
			}
		}

		mapping[i] = slot{block: frontier.Index(), page: pageIndex}

		if sendToPAL {
			pm.pal.Write(pal.Request{BlockIndex: frontier.Index(), PageIndex: pageIndex}, &beginAt)
		}

		if beginAt > finishedAt {
			finishedAt = beginAt
		}
	}

	if sendToPAL {
		*tick = finishedAt
	}

	if sendToPAL && pm.freeBlockRatio() < pm.params.GCThresholdRatio {
		pm.doGarbageCollection(nil, tick)
	}
}

// Trim invalidates every physical page mapped to req.LPN and removes the
// mapping entry; it issues no PAL I/O.
func (pm *PageMapping) Trim(req *Request, tick *uint64) {
	pm.trimInternal(req, tick)
}

func (pm *PageMapping) trimInternal(req *Request, tick *uint64) {
	mapping, ok := pm.table[req.LPN]
	if !ok {
		return
	}

	for i, m := range mapping {
		if !m.isMapped(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock) {
			continue
		}
		c := pm.findOwningCluster(m.block)
		if c == nil {
			panic("ftl: block is not in use")
		}
		c.Blocks[m.block].Invalidate(m.page, uint32(i))
	}

	delete(pm.table, req.LPN)
}

// Format invalidates every mapping in [range.SLPN, range.SLPN+range.NLP),
// then runs GC restricted to the set of blocks it touched.
func (pm *PageMapping) Format(r LPNRange, tick *uint64) {
	touched := map[uint32]bool{}

	for lpn, mapping := range pm.table {
		if lpn < r.SLPN || lpn >= r.SLPN+r.NLP {
			continue
		}

		for i, m := range mapping {
			if !m.isMapped(pm.params.TotalPhysicalBlocks, pm.params.PagesInBlock) {
				continue
			}
			c := pm.findOwningCluster(m.block)
			if c == nil {
				panic("ftl: block is not in use")
			}
			c.Blocks[m.block].Invalidate(m.page, uint32(i))
			touched[m.block] = true
		}

		delete(pm.table, lpn)
	}

	list := make([]uint32, 0, len(touched))
	for b := range touched {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })

	pm.doGarbageCollection(list, tick)
}

func (pm *PageMapping) findOwningCluster(blockIdx uint32) *blk.Cluster {
	if _, ok := pm.pools.Cold.Blocks[blockIdx]; ok {
		return pm.pools.Cold
	}
	if _, ok := pm.pools.Hot.Blocks[blockIdx]; ok {
		return pm.pools.Hot
	}
	return nil
}

// freeBlockRatio is the fraction of physical blocks currently free, summed
// across both pools.
func (pm *PageMapping) freeBlockRatio() float64 {
	return float64(pm.pools.FreeCount()) / float64(pm.params.TotalPhysicalBlocks)
}
