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

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intel/ftlsim/pkg/bitset"
	"github.com/intel/ftlsim/pkg/config"
	"github.com/intel/ftlsim/pkg/ftl"
	logger "github.com/intel/ftlsim/pkg/log"
	"github.com/intel/ftlsim/pkg/pal"
	"github.com/intel/ftlsim/pkg/stats"
)

var log = logger.NewLogger("ftlsim")

const palSection config.Section = "pal"

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "ftlsim: "+format+"\n", a...)
	os.Exit(1)
}

func main() {
	optConfig := flag.String("config", "", "YAML file with ftl.* and pal.* configuration keys")
	optOps := flag.Uint64("ops", 10000, "number of write/read/trim operations to replay")
	optListen := flag.String("listen", "", "address to serve /metrics on after the run (empty: don't serve)")
	optDebug := flag.Bool("debug", false, "enable debug logging")

	flag.Parse()

	if *optDebug {
		logger.EnableDebug("*")
	}

	if *optConfig == "" {
		exit("-config is required")
	}

	r, err := config.ParseYAMLFile(*optConfig)
	if err != nil {
		exit("%s", err)
	}

	p := pal.NewFake(pal.Parameter{
		SuperBlock:      uint32(r.ReadUintOr(palSection, "super_block", 256)),
		Block:           uint32(r.ReadUintOr(palSection, "block", 8)),
		Page:            uint32(r.ReadUintOr(palSection, "page", 256)),
		SuperPageSize:   uint32(r.ReadUintOr(palSection, "super_page_size", 4096)),
		PageInSuperPage: uint32(r.ReadUintOr(palSection, "page_in_super_page", 1)),
	}, pal.DefaultLatencies)
	d := pal.NewFakeDRAM(pal.DefaultLatencies)

	f := ftl.New(r, p, d)
	log.Info("ftl ready, replaying %d operations", *optOps)

	var tick uint64
	ioFlag := oneSubUnitFlag()
	for i := uint64(0); i < *optOps; i++ {
		lpn := i % 4096
		req := ftl.Request{LPN: lpn, IOFlag: ioFlag}
		if i%5 == 0 {
			f.Trim(&req, &tick)
		} else if i%3 == 0 {
			f.Read(&req, &tick)
		} else {
			f.Write(&req, &tick)
		}
	}

	if err := f.AuditInvariants(); err != nil {
		log.Error("invariant audit failed: %v", err)
	}

	printStats(f)

	if *optListen != "" {
		if err := stats.RegisterCollector("ftl", func() (stats.Provider, error) { return f, nil }); err != nil {
			exit("%s", err)
		}
		serveMetrics(*optListen)
	}
}

func oneSubUnitFlag() bitset.Bitset {
	b := bitset.New(1)
	b.Set()
	return b
}

func printStats(p stats.Provider) {
	list := p.StatList("")
	values := p.StatValues()

	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	sort.Strings(names)

	for _, name := range names {
		for i, s := range list {
			if s.Name == name && i < len(values) {
				fmt.Printf("%-40s %v\n", name, values[i])
			}
		}
	}
}

func serveMetrics(addr string) {
	gatherer, err := stats.NewGatherer("")
	if err != nil {
		exit("%s", err)
	}
	http.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	log.Info("serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		exit("%s", err)
	}
}
