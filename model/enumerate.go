// svGenotyper: a tool for genotyping structural variants in sequencing pipelines.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/svgenotyper/blob/master/LICENSE.txt>.

package model

import (
	"math"

	"github.com/exascience/svgenotyper/evidence"

	"gonum.org/v1/gonum/floats"
)

// A Combo is one joint assignment of the per-variant support indicators.
// Indicators of channels the variant class does not use stay false.
type Combo struct {
	MPE, MSR1, MSR2, MRD bool
}

/*
An Enumeration holds, for one variant and one setting of the continuous
parameters, everything needed to reason exactly about that variant's
discrete latents: per-channel negative-binomial log-likelihood tables for
both values of the support indicator, the log Bernoulli weights of the
indicators, and the two candidate genotype-state priors (derived and
read-depth-overridden). Given the continuous parameters, the variant is
independent of all other variants, so enumerations can be built and used
concurrently, one per variant.
*/
type Enumeration struct {
	m          *Model
	data       *evidence.Bundle
	v          int
	nSamples   int
	k          int
	lambda     [evidence.NumCountChannels]float64
	phi        [evidence.NumCountChannels]float64
	eps        [evidence.NumCountChannels]float64
	ll         [evidence.NumCountChannels][2][]float64
	logPi      [evidence.NumCountChannels][2]float64
	logPiRD    [2]float64
	zLogPrior  []float64
	rdLogPrior []float64
	combos     []Combo
	scratch    []float64
}

var (
	channelPiSites     = [evidence.NumCountChannels]string{SitePiPE, SitePiSR1, SitePiSR2}
	channelLambdaSites = [evidence.NumCountChannels]string{SiteLambdaPE, SiteLambdaSR1, SiteLambdaSR2}
	channelPhiSites    = [evidence.NumCountChannels]string{SitePhiPE, SitePhiSR1, SitePhiSR2}
	channelEpsSites    = [evidence.NumCountChannels]string{SiteEpsPE, SiteEpsSR1, SiteEpsSR2}
)

// channelActive reports whether the class uses the count channel.
func (m *Model) channelActive(ch evidence.Channel) bool {
	return ch != evidence.PE || m.HasPE()
}

/*
Enumerate prepares the exact discrete enumeration of one variant under
the continuous parameters of the trace. It fails with a DegeneracyError
if any cell's emission is left undefined by the negative-binomial
reparameterization.
*/
func (m *Model) Enumerate(tr *Trace, data *evidence.Bundle, v int) (*Enumeration, error) {
	nSamples := data.NumSamples()
	k := m.K
	enum := &Enumeration{
		m:        m,
		data:     data,
		v:        v,
		nSamples: nSamples,
		k:        k,
		scratch:  make([]float64, k),
	}

	for ch := evidence.PE; ch < evidence.NumCountChannels; ch++ {
		if !m.channelActive(ch) {
			continue
		}
		pi := tr.Global[channelPiSites[ch]]
		enum.logPi[ch][0] = math.Log1p(-pi)
		enum.logPi[ch][1] = math.Log(pi)
		enum.lambda[ch] = tr.Global[channelLambdaSites[ch]] * m.siteScale(channelLambdaSites[ch])
		enum.phi[ch] = tr.Variant[channelPhiSites[ch]][v]
		enum.eps[ch] = tr.Variant[channelEpsSites[ch]][v] * m.siteScale(channelEpsSites[ch])

		counts := data.Counts(ch)
		for mVal := 0; mVal < 2; mVal++ {
			table := make([]float64, nSamples*k)
			for s := 0; s < nSamples; s++ {
				cell := data.Cell(v, s)
				depth := data.Depth[cell]
				obs := counts[cell]
				for state := 0; state < k; state++ {
					mu := EmissionMean(depth, enum.phi[ch], enum.eps[ch], state, mVal == 1)
					r, p, ok := NBParams(mu, enum.lambda[ch])
					if !ok {
						return nil, &DegeneracyError{
							Variant: v, Sample: s, Channel: ch.String(),
							Mean: mu, Variance: mu * (1 + enum.lambda[ch]),
						}
					}
					table[s*k+state] = nbLogProb(obs, r, p)
				}
			}
			enum.ll[ch][mVal] = table
		}
	}

	enum.zLogPrior = m.GenotypePrior(tr, v)
	for i, p := range enum.zLogPrior {
		enum.zLogPrior[i] = math.Log(p)
	}

	if m.HasRD() {
		pi := tr.Global[SitePiRD]
		enum.logPiRD[0] = math.Log1p(-pi)
		enum.logPiRD[1] = math.Log(pi)
		enum.rdLogPrior = make([]float64, nSamples*k)
		for s := 0; s < nSamples; s++ {
			row := data.RdGtProbRow(v, s)
			for state := 0; state < k; state++ {
				enum.rdLogPrior[s*k+state] = math.Log(row[state])
			}
		}
	}

	enum.combos = m.enumerateCombos()
	return enum, nil
}

// enumerateCombos lists the joint assignments of the support indicators
// the class can realize.
func (m *Model) enumerateCombos() []Combo {
	combos := []Combo{{}}
	extend := func(set func(*Combo)) {
		extended := make([]Combo, 0, 2*len(combos))
		for _, c := range combos {
			extended = append(extended, c)
			set(&c)
			extended = append(extended, c)
		}
		combos = extended
	}
	extend(func(c *Combo) { c.MSR1 = true })
	extend(func(c *Combo) { c.MSR2 = true })
	if m.HasPE() {
		extend(func(c *Combo) { c.MPE = true })
	}
	if m.HasRD() {
		extend(func(c *Combo) { c.MRD = true })
	}
	return combos
}

// Combos returns the support-indicator assignments being enumerated.
func (e *Enumeration) Combos() []Combo {
	return e.combos
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ZLogPosterior fills dst with the unnormalized log posterior over the
// genotype state of one sample cell, under the given support indicators:
// the (possibly overridden) state prior plus the active channels'
// count likelihoods.
func (e *Enumeration) ZLogPosterior(s int, c Combo, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, e.k)
	}
	for state := 0; state < e.k; state++ {
		if c.MRD {
			dst[state] = e.rdLogPrior[s*e.k+state]
		} else {
			dst[state] = e.zLogPrior[state]
		}
	}
	for ch := evidence.PE; ch < evidence.NumCountChannels; ch++ {
		table := e.ll[ch][boolIdx(e.comboIndicator(c, ch))]
		if table == nil {
			continue
		}
		for state := 0; state < e.k; state++ {
			dst[state] += table[s*e.k+state]
		}
	}
	return dst
}

func (e *Enumeration) comboIndicator(c Combo, ch evidence.Channel) bool {
	switch ch {
	case evidence.PE:
		return c.MPE
	case evidence.SR1:
		return c.MSR1
	default:
		return c.MSR2
	}
}

// ComboLogWeight is the unnormalized log posterior weight of one joint
// support-indicator assignment: its Bernoulli priors plus the per-sample
// count evidence with the genotype state summed out.
func (e *Enumeration) ComboLogWeight(c Combo) float64 {
	var logw float64
	for ch := evidence.PE; ch < evidence.NumCountChannels; ch++ {
		if e.ll[ch][0] == nil {
			continue
		}
		logw += e.logPi[ch][boolIdx(e.comboIndicator(c, ch))]
	}
	if e.m.HasRD() {
		logw += e.logPiRD[boolIdx(c.MRD)]
	}
	for s := 0; s < e.nSamples; s++ {
		logw += floats.LogSumExp(e.ZLogPosterior(s, c, e.scratch))
	}
	return logw
}

// ComboLogWeights returns the unnormalized log posterior weights of all
// enumerated support-indicator assignments, aligned with Combos.
func (e *Enumeration) ComboLogWeights() []float64 {
	weights := make([]float64, len(e.combos))
	for i, c := range e.combos {
		weights[i] = e.ComboLogWeight(c)
	}
	return weights
}

// LogEvidence is the log marginal likelihood of the variant's observed
// counts given the continuous parameters, with all discrete latents
// summed out.
func (e *Enumeration) LogEvidence() float64 {
	return floats.LogSumExp(e.ComboLogWeights())
}

// EmissionNB returns the negative-binomial parameters realized by one
// cell of a count channel at the given genotype state and support value.
func (e *Enumeration) EmissionNB(ch evidence.Channel, s, state int, supported bool) (r, p float64, err error) {
	cell := e.data.Cell(e.v, s)
	mu := EmissionMean(e.data.Depth[cell], e.phi[ch], e.eps[ch], state, supported)
	r, p, ok := NBParams(mu, e.lambda[ch])
	if !ok {
		return 0, 0, &DegeneracyError{
			Variant: e.v, Sample: s, Channel: ch.String(),
			Mean: mu, Variance: mu * (1 + e.lambda[ch]),
		}
	}
	return r, p, nil
}
