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

// Package ftl is the flash translation layer proper: the page-mapping
// table, the read/write/trim/format entry points, the garbage collector,
// and the facade that binds them to a PAL/DRAM pair.
package ftl

import "github.com/intel/ftlsim/pkg/config"

// ConfigSection groups every FTL_* key recognized by this package.
const ConfigSection config.Section = "ftl"

// Configuration keys, named after the FTL_* constants the original
// simulator reads from its config file.
const (
	KeyOverprovisionRatio   = "overprovision_ratio"
	KeyMappingMode          = "mapping_mode"
	KeyGCMode               = "gc_mode"
	KeyGCEvictPolicy        = "gc_evict_policy"
	KeyGCDChoiceParam       = "gc_d_choice_param"
	KeyGCReclaimBlock       = "gc_reclaim_block"
	KeyGCReclaimThreshold   = "gc_reclaim_threshold"
	KeyGCThresholdRatio     = "gc_threshold_ratio"
	KeyUseRandomIOTweak     = "use_random_io_tweak"
	KeyUseBadBlockSalvation = "use_bad_block_salvation"
	KeyUnavailablePageThreshold = "unavailable_page_threshold"
	KeyEnableHotCold        = "enable_hot_cold"
	KeyHotColdCapacityRatio = "hot_cold_capacity_ratio"
	KeyBer                  = "ber"
	KeySigma                = "sigma"
	KeyFillRatio            = "fill_ratio"
	KeyInvalidPageRatio     = "invalid_page_ratio"
	KeyFillingMode          = "filling_mode"
	KeySeed                 = "seed"
)

// MappingMode selects the FTL's mapping scheme. PageMapping is the only
// one implemented here.
type MappingMode int

const (
	PageMappingMode MappingMode = iota
)

// GCMode decides how the number of blocks to reclaim per cycle is computed.
type GCMode int

const (
	GCModeFixed GCMode = iota
	GCModeThreshold
)

// EvictPolicy selects how GC weighs victim candidates.
type EvictPolicy int

const (
	PolicyGreedy EvictPolicy = iota
	PolicyRandom
	PolicyCostBenefit
	PolicyDChoice
)

// FillingMode controls the ordering of the warm-up fill/invalidate passes.
type FillingMode int

const (
	FillingMode0 FillingMode = iota // sequential / sequential
	FillingMode1                    // sequential / bounded-random
	FillingMode2                    // random / unbounded-random
)

// Geometry is the physical layout the FTL was built against — analogous to
// PAL::Parameter in the original source.
type Geometry struct {
	TotalPhysicalBlocks uint32
	PagesInBlock        uint32
	PageSize            uint32
	IOUnitInPage        uint32
	PageCountToMaxPerf  uint32
}

// Params bundles a Geometry with every FTL_* configuration value.
type Params struct {
	Geometry

	TotalLogicalBlocks uint32

	OverprovisionRatio float64
	MappingMode        MappingMode

	GCMode             GCMode
	EvictPolicy        EvictPolicy
	GCDChoiceParam     uint32
	GCReclaimBlock     uint64
	GCReclaimThreshold float64
	GCThresholdRatio   float64

	UseRandomIOTweak bool

	UseBadBlockSalvation    bool
	UnavailablePageThreshold float64
	EnableHotCold           bool
	HotColdCapacityRatio    float64
	Ber                     float64
	Sigma                   float64

	FillRatio        float64
	InvalidPageRatio float64
	FillingMode      FillingMode

	Seed int64
}

// LoadParams reads every FTL_* key from r, combining it with a physical
// geometry supplied by the PAL. TotalLogicalBlocks is derived from
// geometry and the overprovision ratio, mirroring FTL::FTL in the
// original source.
func LoadParams(r *config.Reader, geom Geometry) Params {
	p := Params{
		Geometry:           geom,
		OverprovisionRatio: r.ReadDouble(ConfigSection, KeyOverprovisionRatio),
		MappingMode:        MappingMode(r.ReadInt(ConfigSection, KeyMappingMode)),

		GCMode:             GCMode(r.ReadInt(ConfigSection, KeyGCMode)),
		EvictPolicy:        EvictPolicy(r.ReadInt(ConfigSection, KeyGCEvictPolicy)),
		GCDChoiceParam:     uint32(r.ReadUint(ConfigSection, KeyGCDChoiceParam)),
		GCReclaimBlock:     r.ReadUint(ConfigSection, KeyGCReclaimBlock),
		GCReclaimThreshold: r.ReadDouble(ConfigSection, KeyGCReclaimThreshold),
		GCThresholdRatio:   r.ReadDouble(ConfigSection, KeyGCThresholdRatio),

		UseRandomIOTweak: r.ReadBoolean(ConfigSection, KeyUseRandomIOTweak),

		UseBadBlockSalvation:     r.ReadBoolean(ConfigSection, KeyUseBadBlockSalvation),
		UnavailablePageThreshold: r.ReadDouble(ConfigSection, KeyUnavailablePageThreshold),
		EnableHotCold:            r.ReadBoolean(ConfigSection, KeyEnableHotCold),
		HotColdCapacityRatio:     r.ReadDouble(ConfigSection, KeyHotColdCapacityRatio),
		Ber:                      r.ReadDouble(ConfigSection, KeyBer),
		Sigma:                    r.ReadDouble(ConfigSection, KeySigma),

		FillRatio:        r.ReadDouble(ConfigSection, KeyFillRatio),
		InvalidPageRatio: r.ReadDouble(ConfigSection, KeyInvalidPageRatio),
		FillingMode:      FillingMode(r.ReadUint(ConfigSection, KeyFillingMode)),

		Seed: r.ReadInt(ConfigSection, KeySeed),
	}

	p.TotalLogicalBlocks = uint32(float64(geom.TotalPhysicalBlocks) * (1 - p.OverprovisionRatio))

	return p
}

func init() {
	config.RegisterDefault(string(ConfigSection)+"."+KeyMappingMode, 0)
	config.RegisterDefault(string(ConfigSection)+"."+KeyGCMode, 0)
	config.RegisterDefault(string(ConfigSection)+"."+KeyGCEvictPolicy, 0)
	config.RegisterDefault(string(ConfigSection)+"."+KeyGCDChoiceParam, 2)
	config.RegisterDefault(string(ConfigSection)+"."+KeyGCReclaimBlock, 1)
	config.RegisterDefault(string(ConfigSection)+"."+KeyGCReclaimThreshold, 0.1)
	config.RegisterDefault(string(ConfigSection)+"."+KeyGCThresholdRatio, 0.05)
	config.RegisterDefault(string(ConfigSection)+"."+KeyUseRandomIOTweak, false)
	config.RegisterDefault(string(ConfigSection)+"."+KeyUseBadBlockSalvation, false)
	config.RegisterDefault(string(ConfigSection)+"."+KeyUnavailablePageThreshold, 0.25)
	config.RegisterDefault(string(ConfigSection)+"."+KeyEnableHotCold, false)
	config.RegisterDefault(string(ConfigSection)+"."+KeyHotColdCapacityRatio, 0.1)
	config.RegisterDefault(string(ConfigSection)+"."+KeyBer, 1e-6)
	config.RegisterDefault(string(ConfigSection)+"."+KeySigma, 0.5)
	config.RegisterDefault(string(ConfigSection)+"."+KeyFillRatio, 0.0)
	config.RegisterDefault(string(ConfigSection)+"."+KeyInvalidPageRatio, 0.0)
	config.RegisterDefault(string(ConfigSection)+"."+KeyFillingMode, 0)
	config.RegisterDefault(string(ConfigSection)+"."+KeySeed, 1)
}
