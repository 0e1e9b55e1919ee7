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

	"github.com/intel/ftlsim/pkg/config"
	"github.com/intel/ftlsim/pkg/pal"
	"github.com/intel/ftlsim/pkg/stats"
)

// FTL is the facade a host program drives: it binds a PageMapping to the
// PAL/DRAM pair that back it, the way the original FTL class wraps
// PageMapping behind a mapping-scheme-agnostic interface.
type FTL struct {
	params  Params
	mapping *PageMapping
}

// New loads Params from r against pal's reported geometry, validates the
// over-provisioning ratio leaves room for the GC reserve, builds the
// mapping table and runs its warm-up fill. A ratio that leaves no room is
// a configuration error and panics, matching the original constructor's
// "not enough blocks" abort.
func New(r *config.Reader, p pal.PAL, d pal.DRAM) *FTL {
	info := p.GetInfo()
	geom := Geometry{
		TotalPhysicalBlocks: info.SuperBlock,
		PagesInBlock:        info.Page,
		PageSize:            info.SuperPageSize,
		IOUnitInPage:        info.PageInSuperPage,
		PageCountToMaxPerf:  info.SuperBlock / info.Block,
	}

	params := LoadParams(r, geom)

	if params.TotalPhysicalBlocks <= params.TotalLogicalBlocks+params.PageCountToMaxPerf {
		panic(fmt.Sprintf(
			"ftl: overprovision_ratio %.4f leaves no room for the GC reserve (physical=%d, logical=%d, reserve=%d)",
			params.OverprovisionRatio, params.TotalPhysicalBlocks, params.TotalLogicalBlocks, params.PageCountToMaxPerf))
	}

	mapping := NewPageMapping(params, p, d)
	mapping.Initialize()

	return &FTL{params: params, mapping: mapping}
}

// Read issues req against the mapping table.
func (f *FTL) Read(req *Request, tick *uint64) { f.mapping.Read(req, tick) }

// Write issues req against the mapping table.
func (f *FTL) Write(req *Request, tick *uint64) { f.mapping.Write(req, tick) }

// Trim drops the mapping for req.LPN.
func (f *FTL) Trim(req *Request, tick *uint64) { f.mapping.Trim(req, tick) }

// Format drops every mapping in r and reclaims the blocks it touched.
func (f *FTL) Format(r LPNRange, tick *uint64) { f.mapping.Format(r, tick) }

// GetUsedPageCount returns the number of logical pages with a live mapping
// inside [slpn, slpn+nlp).
func (f *FTL) GetUsedPageCount(slpn, nlp uint64) uint64 {
	var n uint64
	for lpn, mapping := range f.mapping.table {
		if lpn < slpn || lpn >= slpn+nlp {
			continue
		}
		for _, m := range mapping {
			if m.isMapped(f.params.TotalPhysicalBlocks, f.params.PagesInBlock) {
				n++
				break
			}
		}
	}
	return n
}

// StatList, StatValues and ResetStatValues implement stats.Provider by
// delegating to the underlying mapping.
func (f *FTL) StatList(prefix string) []stats.Stat { return f.mapping.StatList(prefix) }
func (f *FTL) StatValues() []float64               { return f.mapping.StatValues() }
func (f *FTL) ResetStatValues()                    { f.mapping.ResetStatValues() }

// AuditInvariants exposes the mapping's structural self-check.
func (f *FTL) AuditInvariants() error { return f.mapping.AuditInvariants() }

var _ stats.Provider = (*FTL)(nil)
