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

import "github.com/intel/ftlsim/pkg/bitset"

// Request is a host I/O addressed to one logical page, potentially
// spanning several sub-units of a super-page.
type Request struct {
	LPN    uint64
	IOFlag bitset.Bitset
}

// LPNRange names a half-open range of logical page numbers, used by
// Format.
type LPNRange struct {
	SLPN uint64
	NLP  uint64
}

// slot is one (block, page) coordinate inside a MappingEntry. A slot equal
// to the unmapped sentinel means "not yet mapped".
type slot struct {
	block uint32
	page  uint32
}

func unmappedSlot(totalPhysicalBlocks, pagesInBlock uint32) slot {
	return slot{block: totalPhysicalBlocks, page: pagesInBlock}
}

func (s slot) isMapped(totalPhysicalBlocks, pagesInBlock uint32) bool {
	return s.block < totalPhysicalBlocks && s.page < pagesInBlock
}
