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

// Package badpage records bad pages per block as coalesced runs, so a
// contiguous span of unusable pages costs one table entry rather than one
// per page.
package badpage

import (
	"fmt"
	"sort"
)

// run maps the first bad page number of a sequential span to the span's
// length, within a single block.
type run map[uint32]uint32

// Run is a single bad-page span, [Start, Start+Length).
type Run struct {
	Start  uint32
	Length uint32
}

// Table is a run-length encoded bad-page map, keyed by block number.
type Table struct {
	blocks map[uint32]run
}

// New returns an empty Table.
func New() *Table {
	return &Table{blocks: map[uint32]run{}}
}

// Insert records pageNo as bad within blkNo, merging it into any
// sequential run of bad pages already adjacent to it. Cost is O(pagesPerBlock)
// in the worst case, since finding the start of the preceding run walks
// backward page by page.
func (t *Table) Insert(blkNo, pageNo uint32) {
	bpt, ok := t.blocks[blkNo]
	if !ok {
		bpt = run{}
		t.blocks[blkNo] = bpt
	}

	prevPageNo := int64(pageNo) - 1
	for ; prevPageNo >= 0; prevPageNo-- {
		if _, found := bpt[uint32(prevPageNo)]; found {
			break
		}
	}

	if prevPageNo >= 0 && uint32(prevPageNo)+bpt[uint32(prevPageNo)] == pageNo {
		bpt[uint32(prevPageNo)]++
	} else {
		bpt[pageNo] = 1
		prevPageNo = int64(pageNo)
	}

	start := uint32(prevPageNo)
	nextPageNo := start + bpt[start]
	if length, found := bpt[nextPageNo]; found {
		bpt[start] += length
		delete(bpt, nextPageNo)
	}
}

// Count returns the total number of bad pages recorded for blkNo.
func (t *Table) Count(blkNo uint32) uint32 {
	var acc uint32
	for _, length := range t.blocks[blkNo] {
		acc += length
	}
	return acc
}

// Get returns the length of the sequential bad-page run starting exactly at
// pageNo within blkNo, or 0 if pageNo does not begin a run.
func (t *Table) Get(blkNo, pageNo uint32) uint32 {
	bpt, ok := t.blocks[blkNo]
	if !ok {
		return 0
	}
	return bpt[pageNo]
}

// BlockIndices returns every block number with at least one recorded run.
func (t *Table) BlockIndices() []uint32 {
	out := make([]uint32, 0, len(t.blocks))
	for blkNo := range t.blocks {
		out = append(out, blkNo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Runs returns blkNo's bad-page runs sorted ascending by start, for
// inspection (auditing, diagnostics); Insert maintains the table itself and
// never needs this ordering.
func (t *Table) Runs(blkNo uint32) []Run {
	bpt := t.blocks[blkNo]
	out := make([]Run, 0, len(bpt))
	for start, length := range bpt {
		out = append(out, Run{Start: start, Length: length})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// String renders the table for diagnostics, not for use in the simulation
// hot path.
func (t *Table) String() string {
	s := ""
	for blk, bpt := range t.blocks {
		s += fmt.Sprintf("block %d:", blk)
		for start, length := range bpt {
			s += fmt.Sprintf(" [%d,%d)", start, start+length)
		}
		s += "\n"
	}
	return s
}
