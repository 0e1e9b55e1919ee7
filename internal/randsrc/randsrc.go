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

// Package randsrc gives every randomized component of the simulator (the
// error model, block salvation, D_CHOICE victim selection) its own seeded
// source instead of sharing Go's process-global generator, so a run with a
// fixed seed replays identically regardless of what else runs in the same
// process.
package randsrc

import (
	"math"
	"math/rand"
)

// Source is a seeded random source. The zero value is not usable; construct
// one with New or NewFromSeed.
type Source struct {
	rnd *rand.Rand
}

// NewFromSeed returns a Source seeded deterministically.
func NewFromSeed(seed int64) *Source {
	return &Source{rnd: rand.New(rand.NewSource(seed))}
}

// New returns a Source seeded from an OS entropy-derived value, for runs
// that do not require replay.
func New() *Source {
	return NewFromSeed(rand.Int63())
}

// Float64 returns a pseudo-random number in [0.0, 1.0).
func (s *Source) Float64() float64 {
	return s.rnd.Float64()
}

// NormFloat64 returns a normally distributed float64 with mean 0, stddev 1.
func (s *Source) NormFloat64() float64 {
	return s.rnd.NormFloat64()
}

// Intn returns a pseudo-random number in [0, n).
func (s *Source) Intn(n int) int {
	return s.rnd.Intn(n)
}

// LogNormal returns a sample from a log-normal distribution with the given
// underlying normal mean mu and standard deviation sigma: exp(mu + sigma*Z)
// for Z drawn from the standard normal.
func (s *Source) LogNormal(mu, sigma float64) float64 {
	return math.Exp(mu + sigma*s.rnd.NormFloat64())
}
