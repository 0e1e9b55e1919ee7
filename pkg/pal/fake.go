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

package pal

// Latencies configures the fixed per-operation cost of the Fake PAL/DRAM.
// A real PAL would derive these from a NAND timing model; the fake applies
// a flat cost per call, which is enough to drive tick accounting in tests
// and warm-up runs without modeling die-level contention.
type Latencies struct {
	Read  uint64
	Write uint64
	Erase uint64

	DRAMRead  uint64
	DRAMWrite uint64
}

// DefaultLatencies mirrors the order-of-magnitude a commodity NAND page
// operation takes, in arbitrary tick units: reads are cheap, writes costlier,
// erases the most expensive of the three.
var DefaultLatencies = Latencies{
	Read:      25,
	Write:     200,
	Erase:     1500,
	DRAMRead:  1,
	DRAMWrite: 1,
}

// Fake is a deterministic, in-memory PAL stand-in (NewFakeDRAM supplies
// the matching DRAM model): it advances
// tick by a fixed per-operation cost and otherwise performs no I/O. It
// exists so the FTL core can be exercised and tested without a real
// physical-layer implementation, which is out of scope for this module.
type Fake struct {
	param     Parameter
	latencies Latencies
}

// NewFake builds a Fake PAL reporting the given geometry.
func NewFake(param Parameter, latencies Latencies) *Fake {
	return &Fake{param: param, latencies: latencies}
}

func (f *Fake) Read(req Request, tick *uint64)  { *tick += f.latencies.Read }
func (f *Fake) Write(req Request, tick *uint64) { *tick += f.latencies.Write }
func (f *Fake) Erase(req Request, tick *uint64) { *tick += f.latencies.Erase }

func (f *Fake) GetInfo() Parameter { return f.param }

// fakeDRAM is the DRAM half of the fake physical layer, kept as a separate
// type since DRAM and PAL each need their own Read/Write signatures.
type fakeDRAM struct {
	latencies Latencies
}

// NewFakeDRAM builds a Fake DRAM model sharing the same flat-cost approach
// as NewFake.
func NewFakeDRAM(latencies Latencies) DRAM {
	return &fakeDRAM{latencies: latencies}
}

func (d *fakeDRAM) Read(nBytes uint64, tick *uint64)  { *tick += d.latencies.DRAMRead }
func (d *fakeDRAM) Write(nBytes uint64, tick *uint64) { *tick += d.latencies.DRAMWrite }
