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

// Package errormodel estimates the per-page error rate a block would see
// at a given bit error rate, for block salvation to decide which pages of
// a worn block are still usable.
package errormodel

import (
	"fmt"
	"math"

	"github.com/intel/ftlsim/internal/randsrc"
)

// BitsPerByte is the width used to turn a per-bit error rate into a
// per-page one.
const BitsPerByte = 8

// Model reports a page error rate for a configured bit error rate.
type Model interface {
	Ber() float64
	SetBer(ber float64)
	Per() float64
	String() string
}

// ApproxPER linearizes the bit error rate into a page error rate, ber *
// pageSize * BitsPerByte, valid only while ber is small; diagnostic
// convenience, not used by LogNormal's own Per().
func ApproxPER(ber float64, pageSize uint32) float64 {
	return ber * float64(pageSize) * BitsPerByte
}

func toPER(ber float64, pageSize uint32) float64 {
	return 1. - math.Pow(1.-ber, float64(pageSize)*BitsPerByte)
}

// base holds the bit error rate shared by every Model implementation.
type base struct {
	ber float64
}

func (b *base) Ber() float64      { return b.ber }
func (b *base) SetBer(ber float64) { b.ber = ber }

// LogNormal draws the page error rate from a log-normal distribution whose
// mode equals the page error rate implied by ber, so most samples cluster
// near the nominal rate with an occasional high-error tail.
type LogNormal struct {
	base

	mu    float64
	mode  float64
	sigma float64

	rng *randsrc.Source
}

// NewLogNormal builds a LogNormal error model for a page of pageSize
// bytes at the given bit error rate and log-normal spread sigma. rng is
// the caller-owned seeded source sampled on every Per() call; passing the
// same seed across runs reproduces the same error sequence.
func NewLogNormal(ber, sigma float64, pageSize uint32, rng *randsrc.Source) *LogNormal {
	mode := toPER(ber, pageSize)
	mu := math.Log(mode) + sigma*sigma

	m := &LogNormal{
		mode:  mode,
		sigma: sigma,
		mu:    mu,
		rng:   rng,
	}
	m.SetBer(ber)
	return m
}

// Per draws a fresh page error rate sample.
func (m *LogNormal) Per() float64 {
	return m.rng.LogNormal(m.mu, m.sigma)
}

func (m *LogNormal) String() string {
	return fmt.Sprintf("LogNormal. BER: %g Mode: %g Mean: %g Sigma: %g", m.Ber(), m.mode, m.mu, m.sigma)
}
