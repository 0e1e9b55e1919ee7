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

// Package hotaddr tracks which logical pages are hot, using a two-tier LRU:
// a first touch puts a page on the candidate list, a second touch promotes it
// into the hot list. While the hot list is below capacity, candidates are
// also promoted into it without waiting for a second touch.
package hotaddr

import "github.com/intel/ftlsim/pkg/lru"

// Table is a two-tier hot/candidate LRU over logical page numbers. Unlike
// the original source's process-wide enabled flag, Enabled is per-instance so
// multiple FTLs in the same process can disagree, per the design note on
// instance-level state.
type Table struct {
	Enabled bool

	hotList       *lru.LRU[uint64]
	candidateList *lru.LRU[uint64]
	capacity      uint64
}

// New returns a Table with room for capacity hot entries.
func New(capacity uint64) *Table {
	return &Table{
		Enabled:       true,
		hotList:       lru.New[uint64](),
		candidateList: lru.New[uint64](),
		capacity:      capacity,
	}
}

// Update records a touch of lpn, promoting it from candidate to hot on its
// second touch and refreshing its position if already hot, then rebalances
// the lists (which promotes candidates while the hot list has room).
func (t *Table) Update(lpn uint64) {
	switch {
	case t.hotList.Contains(lpn):
		t.hotList.Update(lpn)
	case t.candidateList.Contains(lpn):
		t.candidateList.Erase(lpn)
		t.hotList.Insert(lpn)
	default:
		t.candidateList.Insert(lpn)
	}

	t.shrinkToSize()
}

// Contains reports whether lpn is currently classified hot.
func (t *Table) Contains(lpn uint64) bool {
	return t.hotList.Contains(lpn)
}

// Size returns the number of LPNs currently classified hot.
func (t *Table) Size() uint64 {
	return t.hotList.Size()
}

// Capacity returns the configured hot-list capacity.
func (t *Table) Capacity() uint64 {
	return t.capacity
}

// ContainsCandidate reports whether lpn is currently on the candidate list,
// awaiting a second touch before promotion to hot.
func (t *Table) ContainsCandidate(lpn uint64) bool {
	return t.candidateList.Contains(lpn)
}

// EachHot calls fn for every LPN currently classified hot, most- to
// least-recently-used, stopping early if fn returns false.
func (t *Table) EachHot(fn func(uint64) bool) {
	t.hotList.Each(fn)
}

// EachCandidate calls fn for every LPN currently on the candidate list,
// most- to least-recently-used, stopping early if fn returns false.
func (t *Table) EachCandidate(fn func(uint64) bool) {
	t.candidateList.Each(fn)
}

// SetSize resizes the hot list's capacity, immediately rebalancing entries
// between the hot and candidate lists.
func (t *Table) SetSize(size uint64) {
	t.capacity = size
	t.shrinkToSize()
}

func (t *Table) shrinkToSize() {
	for t.hotList.Size() < t.capacity && t.candidateList.Size() > 0 {
		entry, _ := t.candidateList.PopFront()
		t.hotList.Insert(entry)
	}
	for t.hotList.Size() > t.capacity {
		entry, _ := t.hotList.PopBack()
		t.candidateList.Insert(entry)
	}
	for t.candidateList.Size() > t.capacity {
		t.candidateList.PopBack()
	}
}
