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

// Package block models one physical flash block: its valid/erased
// bitmaps, logical-page backrefs, per-plane write cursor, erase count and
// bad-page mask, plus the cluster that groups blocks into free and in-use
// pools per hot/cold partition.
package block

import (
	"github.com/intel/ftlsim/pkg/badpage"
	"github.com/intel/ftlsim/pkg/bitset"
	"github.com/intel/ftlsim/pkg/errormodel"
	"github.com/intel/ftlsim/pkg/hotaddr"
	"github.com/intel/ftlsim/internal/randsrc"
)

// NotMapped is the sentinel block index stored in a mapping slot that has
// never been written.
const NotMapped = ^uint32(0)

// Salvation binds the shared policy and collaborators that decide, at
// block-construction and erase time, which pages are permanently bad and
// whether a block stays in service despite them. New reads it and Block
// keeps no reference to it (only the resulting unavailable-page mask), so the
// salvation/hot-address/error-model cycle the original source has between
// Block, the FTL and its excluded SMT component does not reappear here.
type Salvation struct {
	Enabled              bool
	UnavailablePageRatio float64
	Model                errormodel.Model
	HotAddressTable      *hotaddr.Table
	BadPages             *badpage.Table
	Rng                  *randsrc.Source
}

// Block is the state of one physical block.
type Block struct {
	idx          uint32
	pagesInBlock uint32
	ioUnitInPage uint32

	nextWritePageIndex []uint32
	valid              []bitset.Bitset // one per sub-unit, width pagesInBlock
	erased             []bitset.Bitset
	lpns               [][]uint64 // [page][subUnit]
	unavailable        bitset.Bitset

	lastAccessed uint64
	eraseCount   uint32
}

// New constructs a block of pagesInBlock pages split into ioUnitInPage
// sub-units. When salvation is enabled, each page is independently drawn
// bad with probability salvation.Model.Per() and, if so, registered in the
// shared BadPageTable.
func New(idx, pagesInBlock, ioUnitInPage uint32, salvation *Salvation) Block {
	b := Block{
		idx:                idx,
		pagesInBlock:       pagesInBlock,
		ioUnitInPage:       ioUnitInPage,
		nextWritePageIndex: make([]uint32, ioUnitInPage),
		valid:              make([]bitset.Bitset, ioUnitInPage),
		erased:             make([]bitset.Bitset, ioUnitInPage),
		lpns:               make([][]uint64, pagesInBlock),
		unavailable:        bitset.New(pagesInBlock),
	}

	for i := uint32(0); i < ioUnitInPage; i++ {
		b.valid[i] = bitset.New(pagesInBlock)
		b.erased[i] = bitset.New(pagesInBlock)
		b.erased[i].Set()
	}
	for p := range b.lpns {
		b.lpns[p] = make([]uint64, ioUnitInPage)
	}

	if salvation != nil && salvation.Enabled {
		for p := uint32(0); p < pagesInBlock; p++ {
			per := salvation.Model.Per()
			if salvation.Rng.Float64() < per {
				b.unavailable.SetBit(p)
				salvation.BadPages.Insert(idx, p)
			}
		}
	}

	for i := uint32(0); i < ioUnitInPage; i++ {
		b.setCursor(i, 0)
	}

	return b
}

// Index returns the block's immutable physical index.
func (b *Block) Index() uint32 { return b.idx }

// LastAccessed returns the tick of the most recent read or write.
func (b *Block) LastAccessed() uint64 { return b.lastAccessed }

// EraseCount returns the number of times the block has been erased.
func (b *Block) EraseCount() uint32 { return b.eraseCount }

// ValidPageCount returns the number of valid (page,subUnit) slots, summed
// over every sub-unit.
func (b *Block) ValidPageCount() uint32 {
	var n uint32
	for i := range b.valid {
		n += b.valid[i].Count()
	}
	return n
}

// ValidPageCountRaw is an alias of ValidPageCount kept separate because the
// source distinguishes a "raw" count (summed over sub-units) from a
// super-page count; with ioUnitInPage==1 the two coincide, and callers that
// want the super-page count should divide by ioUnitInPage themselves.
func (b *Block) ValidPageCountRaw() uint32 {
	return b.ValidPageCount()
}

// DirtyPageCount returns the number of pages that were written and later
// invalidated but not yet erased: written (not erased) and not valid.
func (b *Block) DirtyPageCount() uint32 {
	var n uint32
	for i := range b.valid {
		for p := uint32(0); p < b.pagesInBlock; p++ {
			if !b.erased[i].Test(p) && !b.valid[i].Test(p) && !b.unavailable.Test(p) {
				n++
			}
		}
	}
	return n
}

// UnavailablePageCount returns the number of pages permanently marked bad.
func (b *Block) UnavailablePageCount() uint32 {
	return b.unavailable.Count()
}

// UnavailablePageRatio returns UnavailablePageCount / pagesInBlock.
func (b *Block) UnavailablePageRatio() float64 {
	return float64(b.unavailable.Count()) / float64(b.pagesInBlock)
}

// NextWritePageIndex returns the next page the given sub-unit will write.
func (b *Block) NextWritePageIndex(subUnit uint32) uint32 {
	return b.nextWritePageIndex[subUnit]
}

// IsFull reports whether every sub-unit has exhausted its write cursor.
func (b *Block) IsFull() bool {
	for _, n := range b.nextWritePageIndex {
		if n != b.pagesInBlock {
			return false
		}
	}
	return true
}

// advanceCursor moves subUnit's write cursor past page, skipping over any
// run of unavailable pages immediately following it so bad regions are
// traversed atomically rather than being offered to writes one at a time.
func (b *Block) advanceCursor(subUnit, page uint32) {
	b.setCursor(subUnit, page+1)
}

// setCursor sets subUnit's write cursor to from, then skips forward over
// any immediately-following run of unavailable pages.
func (b *Block) setCursor(subUnit, from uint32) {
	next := from
	for next < b.pagesInBlock && b.unavailable.Test(next) {
		next++
	}
	b.nextWritePageIndex[subUnit] = next
}

// Read bumps the block's last-accessed time; it changes no other state.
func (b *Block) Read(page, subUnit uint32, tick uint64) {
	b.lastAccessed = tick
}

// Write commits lpn at (page, subUnit). page must equal the sub-unit's
// current write cursor and must have been erased since the last write;
// callers are expected to have checked this via NextWritePageIndex, so a
// violation here is a programmer error in the caller, not a runtime
// condition to recover from.
func (b *Block) Write(page uint32, lpn uint64, subUnit uint32, tick uint64) {
	if page != b.nextWritePageIndex[subUnit] {
		panic("block: write out of order with the write cursor")
	}
	if !b.erased[subUnit].Test(page) {
		panic("block: write to a page not in the erased state")
	}

	b.valid[subUnit].SetBit(page)
	b.erased[subUnit].ClearBit(page)
	b.lpns[page][subUnit] = lpn
	b.lastAccessed = tick

	b.advanceCursor(subUnit, page)
}

// Invalidate marks (page, subUnit) no longer live. The page remains
// allocated (not erased) until the block is reclaimed.
func (b *Block) Invalidate(page, subUnit uint32) {
	if !b.valid[subUnit].Test(page) {
		panic("block: invalidate of a page that is not valid")
	}
	b.valid[subUnit].ClearBit(page)
}

// Erase resets valid/erased state and write cursors and bumps the erase
// count. The unavailable mask is untouched: defects are permanent.
func (b *Block) Erase() {
	for i := range b.valid {
		b.valid[i].Reset()
		b.erased[i].Set()
		b.setCursor(i, 0)
	}
	b.eraseCount++
}

// IsValid reports whether (page, subUnit) currently holds live data.
func (b *Block) IsValid(page, subUnit uint32) bool {
	return b.valid[subUnit].Test(page)
}

// LPNAt returns the logical page number last written at (page, subUnit),
// meaningful only when IsValid(page, subUnit) is true.
func (b *Block) LPNAt(page, subUnit uint32) uint64 {
	return b.lpns[page][subUnit]
}

// IsErased reports whether (page, subUnit) is free to write.
func (b *Block) IsErased(page, subUnit uint32) bool {
	return b.erased[subUnit].Test(page)
}

// IsUnavailable reports whether page is permanently marked bad. Unlike
// valid/erased, this is tracked per page, not per sub-unit.
func (b *Block) IsUnavailable(page uint32) bool {
	return b.unavailable.Test(page)
}

// PagesInBlock returns the block's page count, for callers that need to
// range over every page without a separate geometry reference.
func (b *Block) PagesInBlock() uint32 {
	return b.pagesInBlock
}

// IOUnitInPage returns the number of sub-units each page is split into.
func (b *Block) IOUnitInPage() uint32 {
	return b.ioUnitInPage
}

// GetPageInfo reports whether any sub-unit at page is valid; when it is,
// validMask carries per-sub-unit validity and lpnsOut carries the stored
// LPNs (valid only at positions flagged in validMask).
func (b *Block) GetPageInfo(page uint32, lpnsOut []uint64, validMask *bitset.Bitset) bool {
	any := false
	for i := uint32(0); i < b.ioUnitInPage; i++ {
		if b.valid[i].Test(page) {
			validMask.SetBit(i)
			lpnsOut[i] = b.lpns[page][i]
			any = true
		} else {
			validMask.ClearBit(i)
		}
	}
	return any
}
