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

package stats

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// providerCollector adapts a single Provider to prometheus.Collector,
// sampling StatValues() on every Collect() the way a live gauge would.
type providerCollector struct {
	prefix   string
	provider Provider
	descs    []*prometheus.Desc
}

// NewPrometheusCollector wraps a Provider so its named values can be
// scraped as prometheus gauges.
func NewPrometheusCollector(prefix string, p Provider) prometheus.Collector {
	list := p.StatList(prefix)
	descs := make([]*prometheus.Desc, len(list))
	for i, s := range list {
		fqName := "ftlsim_" + strings.ReplaceAll(s.Name, ".", "_")
		descs[i] = prometheus.NewDesc(fqName, s.Desc, nil, nil)
	}
	return &providerCollector{prefix: prefix, provider: p, descs: descs}
}

func (c *providerCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *providerCollector) Collect(ch chan<- prometheus.Metric) {
	values := c.provider.StatValues()
	for i, d := range c.descs {
		if i >= len(values) {
			break
		}
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, values[i])
	}
}

// NewGatherer builds a prometheus.Gatherer exposing every Provider
// registered with RegisterCollector, mirroring the teacher's
// metrics.NewMetricGatherer.
func NewGatherer(prefix string) (prometheus.Gatherer, error) {
	reg := prometheus.NewPedanticRegistry()

	for _, cb := range builtInCollectors {
		p, err := cb()
		if err != nil {
			return nil, err
		}
		reg.MustRegister(NewPrometheusCollector(prefix, p))
	}

	return reg, nil
}
