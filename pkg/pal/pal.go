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

// Package pal declares the downstream collaborators the FTL issues timed
// requests to: the physical abstraction layer (read/write/erase latency)
// and the DRAM model (mapping-table access latency). Neither is
// implemented here; callers inject whichever model they like, and this
// package also offers a deterministic in-memory stand-in for tests.
package pal

// Request describes a single physical-plane operation in flight.
type Request struct {
	BlockIndex uint32
	PageIndex  uint32
	IOFlag     uint64 // bitmask over sub-units, mirrors bitset.Bitset.Test semantics
}

// Parameter reports the physical geometry the PAL was built with.
type Parameter struct {
	SuperBlock      uint32
	Block           uint32
	Page            uint32
	SuperPageSize   uint32
	PageInSuperPage uint32
}

// PAL performs timed read/write/erase operations against physical storage.
// Implementations advance tick by however long the operation takes; this
// package does not constrain the latency model.
type PAL interface {
	Read(req Request, tick *uint64)
	Write(req Request, tick *uint64)
	Erase(req Request, tick *uint64)
	GetInfo() Parameter
}

// DRAM accounts for the latency of touching the mapping table itself.
type DRAM interface {
	Read(nBytes uint64, tick *uint64)
	Write(nBytes uint64, tick *uint64)
}
