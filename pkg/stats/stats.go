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

// Package stats carries the named statistics spec.md §6 lists
// (ftl.page_mapping.gc.count, .wear_leveling, ...) from a Provider to a
// prometheus gatherer, the way the teacher's pkg/metrics wires built-in
// collectors into a prometheus.Registry.
package stats

import "fmt"

// Stat names one reported value.
type Stat struct {
	Name string
	Desc string
}

// Provider is implemented by anything that can report a fixed list of named
// statistics and their current values, in the same order, on demand. This is
// the Go shape of SimpleSSD's getStatList/getStatValues/resetStatValues trio.
type Provider interface {
	StatList(prefix string) []Stat
	StatValues() []float64
	ResetStatValues()
}

var (
	builtInCollectors    = make(map[string]func() (Provider, error))
	registeredCollectors = []Provider{}
)

// RegisterCollector registers a named Provider factory, mirroring the
// teacher's metrics.RegisterCollector.
func RegisterCollector(name string, init func() (Provider, error)) error {
	if _, found := builtInCollectors[name]; found {
		return fmt.Errorf("collector %s already registered", name)
	}
	builtInCollectors[name] = init
	return nil
}

// Gather instantiates every registered collector and flattens the result
// into name->value pairs. A host program that wants a prometheus.Gatherer
// uses NewGatherer instead.
func Gather(prefix string) (map[string]float64, error) {
	out := map[string]float64{}

	for _, cb := range builtInCollectors {
		p, err := cb()
		if err != nil {
			return nil, err
		}
		registeredCollectors = append(registeredCollectors, p)

		list := p.StatList(prefix)
		values := p.StatValues()
		for i, s := range list {
			if i < len(values) {
				out[s.Name] = values[i]
			}
		}
	}

	return out, nil
}
