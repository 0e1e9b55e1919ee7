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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/intel/ftlsim/pkg/bitset"
	"github.com/intel/ftlsim/pkg/pal"
)

// smallParams returns a tiny 16-block (8 logical) x 16-page, single-sub-unit,
// two-plane device small enough to drive GC and wraparound within a few
// hundred writes.
func smallParams() Params {
	return Params{
		Geometry: Geometry{
			TotalPhysicalBlocks: 16,
			PagesInBlock:        16,
			PageSize:            4096,
			IOUnitInPage:        1,
			PageCountToMaxPerf:  2,
		},
		TotalLogicalBlocks: 8,

		GCMode:             GCModeThreshold,
		EvictPolicy:        PolicyGreedy,
		GCReclaimBlock:     1,
		GCReclaimThreshold: 0.25,
		GCThresholdRatio:   0.125,

		UseRandomIOTweak:     false,
		UseBadBlockSalvation: false,
		EnableHotCold:        false,
		HotColdCapacityRatio: 0.1,
		Ber:                  1e-9,
		Sigma:                0.5,

		FillRatio:        0,
		InvalidPageRatio: 0,
		FillingMode:      FillingMode0,

		Seed: 7,
	}
}

func newSmallMapping(t *testing.T) *PageMapping {
	t.Helper()
	params := smallParams()
	p := pal.NewFake(pal.Parameter{
		SuperBlock:      params.TotalPhysicalBlocks,
		Block:           params.TotalPhysicalBlocks / params.PageCountToMaxPerf,
		Page:            params.PagesInBlock,
		SuperPageSize:   params.PageSize,
		PageInSuperPage: params.IOUnitInPage,
	}, pal.DefaultLatencies)
	d := pal.NewFakeDRAM(pal.DefaultLatencies)
	return NewPageMapping(params, p, d)
}

func oneFlag() bitset.Bitset {
	f := bitset.New(1)
	f.Set()
	return f
}

// countingPAL wraps a Fake PAL, counting Read calls so a test can assert a
// PAL read was (or wasn't) issued without depending on tick arithmetic.
type countingPAL struct {
	*pal.Fake
	reads int
}

func (p *countingPAL) Read(req pal.Request, tick *uint64) {
	p.reads++
	p.Fake.Read(req, tick)
}

func TestPartialWriteWithoutRandomTweakReadsOldComplement(t *testing.T) {
	params := smallParams()
	params.IOUnitInPage = 2
	params.UseRandomIOTweak = false

	fake := pal.NewFake(pal.Parameter{
		SuperBlock:      params.TotalPhysicalBlocks,
		Block:           params.TotalPhysicalBlocks / params.PageCountToMaxPerf,
		Page:            params.PagesInBlock,
		SuperPageSize:   params.PageSize,
		PageInSuperPage: params.IOUnitInPage,
	}, pal.DefaultLatencies)
	p := &countingPAL{Fake: fake}
	d := pal.NewFakeDRAM(pal.DefaultLatencies)
	pm := NewPageMapping(params, p, d)

	var tick uint64
	full := bitset.New(2)
	full.Set()
	req := Request{LPN: 4, IOFlag: full}
	pm.Write(&req, &tick)

	before := p.reads
	partial := bitset.New(2)
	partial.SetBit(0)
	req2 := Request{LPN: 4, IOFlag: partial}
	pm.Write(&req2, &tick)

	require.Greater(t, p.reads, before, "partial write under UseRandomIOTweak=false should read the old location")
	require.NoError(t, pm.AuditInvariants())
}

func TestFullWriteWithoutRandomTweakSkipsOldComplementRead(t *testing.T) {
	params := smallParams()
	params.IOUnitInPage = 2
	params.UseRandomIOTweak = false

	fake := pal.NewFake(pal.Parameter{
		SuperBlock:      params.TotalPhysicalBlocks,
		Block:           params.TotalPhysicalBlocks / params.PageCountToMaxPerf,
		Page:            params.PagesInBlock,
		SuperPageSize:   params.PageSize,
		PageInSuperPage: params.IOUnitInPage,
	}, pal.DefaultLatencies)
	p := &countingPAL{Fake: fake}
	d := pal.NewFakeDRAM(pal.DefaultLatencies)
	pm := NewPageMapping(params, p, d)

	var tick uint64
	full := bitset.New(2)
	full.Set()
	req := Request{LPN: 4, IOFlag: full}
	pm.Write(&req, &tick)

	before := p.reads
	req2 := Request{LPN: 4, IOFlag: full}
	pm.Write(&req2, &tick)

	require.Equal(t, before, p.reads, "a full-superpage write never needs the old-complement read")
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	wreq := Request{LPN: 5, IOFlag: oneFlag()}
	pm.Write(&wreq, &tick)
	require.Greater(t, tick, uint64(0))

	rreq := Request{LPN: 5, IOFlag: oneFlag()}
	beforeRead := tick
	pm.Read(&rreq, &tick)
	require.GreaterOrEqual(t, tick, beforeRead)

	require.NoError(t, pm.AuditInvariants())
}

func TestReadOfUnmappedLPNIsNoop(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	rreq := Request{LPN: 99, IOFlag: oneFlag()}
	pm.Read(&rreq, &tick)
	require.Equal(t, uint64(0), tick)
}

func TestWriteTwiceInvalidatesOldMapping(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	req := Request{LPN: 3, IOFlag: oneFlag()}
	pm.Write(&req, &tick)

	mapping := pm.table[3]
	oldBlock, oldPage := mapping[0].block, mapping[0].page

	pm.Write(&req, &tick)
	newMapping := pm.table[3]
	require.NotEqual(t, []slot{{oldBlock, oldPage}}, []slot{newMapping[0]})

	c := pm.findOwningCluster(oldBlock)
	require.NotNil(t, c)
	require.False(t, c.Blocks[oldBlock].IsValid(oldPage, 0))

	require.NoError(t, pm.AuditInvariants())
}

func TestTrimRemovesMapping(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	req := Request{LPN: 1, IOFlag: oneFlag()}
	pm.Write(&req, &tick)
	require.Contains(t, pm.table, uint64(1))

	pm.Trim(&req, &tick)
	require.NotContains(t, pm.table, uint64(1))

	require.NoError(t, pm.AuditInvariants())
}

func TestFormatReclaimsTouchedBlocks(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	for lpn := uint64(0); lpn < 8; lpn++ {
		req := Request{LPN: lpn, IOFlag: oneFlag()}
		pm.Write(&req, &tick)
	}

	pm.Format(LPNRange{SLPN: 0, NLP: 8}, &tick)

	for lpn := uint64(0); lpn < 8; lpn++ {
		require.NotContains(t, pm.table, lpn)
	}
	require.NoError(t, pm.AuditInvariants())
}

func TestSustainedWritesTriggerGCWithoutLosingLiveData(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	const totalLogicalPages = 8 * 16 // TotalLogicalBlocks * PagesInBlock

	// Repeatedly rewrite the same small working set so old copies keep
	// turning into GC-reclaimable garbage.
	for round := 0; round < 6; round++ {
		for lpn := uint64(0); lpn < uint64(totalLogicalPages)/2; lpn++ {
			req := Request{LPN: lpn, IOFlag: oneFlag()}
			pm.Write(&req, &tick)
		}
	}

	require.NoError(t, pm.AuditInvariants())
	require.Greater(t, pm.stat.gcCount, uint64(0))

	// Every live LPN must still read back without panicking.
	for lpn := uint64(0); lpn < uint64(totalLogicalPages)/2; lpn++ {
		req := Request{LPN: lpn, IOFlag: oneFlag()}
		pm.Read(&req, &tick)
	}
}

func TestStatValuesMatchStatList(t *testing.T) {
	pm := newSmallMapping(t)
	list := pm.StatList("")
	values := pm.StatValues()
	require.Len(t, values, len(list))

	wantNames := []string{
		"page_mapping.gc.count",
		"page_mapping.gc.reclaimed_blocks",
		"page_mapping.gc.superpage_copies",
		"page_mapping.gc.page_copies",
		"page_mapping.wear_leveling",
		"page_mapping.valid_pages",
		"page_mapping.hot",
		"page_mapping.hot_capacity",
	}
	gotNames := make([]string, len(list))
	for i, s := range list {
		gotNames[i] = s.Name
	}
	if diff := cmp.Diff(wantNames, gotNames); diff != "" {
		t.Errorf("stat list names mismatch (-want +got):\n%s", diff)
	}
}

func TestResetStatValuesZeroesCounters(t *testing.T) {
	pm := newSmallMapping(t)

	var tick uint64
	// 256 writes over a 64-LPN working set use up enough free blocks to
	// push the free-block ratio below GCThresholdRatio at least once.
	for i := uint64(0); i < 256; i++ {
		req := Request{LPN: i % 64, IOFlag: oneFlag()}
		pm.Write(&req, &tick)
	}
	require.Greater(t, pm.stat.gcCount, uint64(0))

	pm.ResetStatValues()
	require.Equal(t, uint64(0), pm.stat.gcCount)
	require.Equal(t, uint64(0), pm.validPageAcc)
	require.Equal(t, uint64(0), pm.validPageCnt)
}
