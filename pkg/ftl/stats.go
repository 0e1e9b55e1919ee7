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

import "github.com/intel/ftlsim/pkg/stats"

// StatList implements stats.Provider, reporting the named values spec §6
// lists, each prefixed by prefix + "page_mapping.".
func (pm *PageMapping) StatList(prefix string) []stats.Stat {
	p := prefix + "page_mapping."
	return []stats.Stat{
		{Name: p + "gc.count", Desc: "number of garbage collection cycles run"},
		{Name: p + "gc.reclaimed_blocks", Desc: "total blocks reclaimed by GC"},
		{Name: p + "gc.superpage_copies", Desc: "super-page copies performed during GC"},
		{Name: p + "gc.page_copies", Desc: "sub-page copies performed during GC"},
		{Name: p + "wear_leveling", Desc: "wear-leveling index E^2/(N*Q), -1 if undefined"},
		{Name: p + "valid_pages", Desc: "average valid pages per GC'd block"},
		{Name: p + "hot", Desc: "number of LPNs currently classified hot"},
		{Name: p + "hot_capacity", Desc: "configured capacity of the hot address table"},
	}
}

// StatValues returns the current value of every stat StatList names, in
// the same order.
func (pm *PageMapping) StatValues() []float64 {
	avgValid := 0.0
	if pm.validPageCnt > 0 {
		avgValid = float64(pm.validPageAcc) / float64(pm.validPageCnt)
	}

	return []float64{
		float64(pm.stat.gcCount),
		float64(pm.stat.reclaimedBlocks),
		float64(pm.stat.validSuperPageCopies),
		float64(pm.stat.validPageCopies),
		pm.wearLeveling(),
		avgValid,
		float64(pm.hotAddressTable.Size()),
		float64(pm.hotAddressTable.Capacity()),
	}
}

// ResetStatValues zeroes every accumulating counter without disturbing
// mapping or block state.
func (pm *PageMapping) ResetStatValues() {
	pm.stat = gcStats{}
	pm.validPageAcc = 0
	pm.validPageCnt = 0
}

// wearLeveling computes E^2/(N*Q) over in-use and previously-erased free
// blocks, per §6; returns -1 when Q is zero (no block has ever been
// erased), matching the design note that leaves this denominator
// undefined otherwise.
func (pm *PageMapping) wearLeveling() float64 {
	var e, q float64

	accumulate := func(ec uint32) {
		if ec == 0 {
			return
		}
		e += float64(ec)
		q += float64(ec) * float64(ec)
	}

	for _, b := range pm.pools.Cold.Blocks {
		accumulate(b.EraseCount())
	}
	for _, b := range pm.pools.Hot.Blocks {
		accumulate(b.EraseCount())
	}
	for _, b := range pm.pools.Cold.FreeBlocks {
		accumulate(b.EraseCount())
	}
	for _, b := range pm.pools.Hot.FreeBlocks {
		accumulate(b.EraseCount())
	}

	if q == 0 {
		return -1
	}

	n := float64(pm.params.TotalLogicalBlocks)
	return (e * e) / (n * q)
}
