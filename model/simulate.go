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
	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/internal"

	"gonum.org/v1/gonum/stat/distuv"
)

// SamplePrior draws all continuous latent sites of the model from their
// priors, for a cohort of nVariants variants.
func (m *Model) SamplePrior(nVariants int, rnd *internal.Rand) *Trace {
	tr := NewTrace(m, nVariants)
	for _, site := range m.globalSites {
		if SiteOnUnitInterval(site) {
			tr.Global[site] = distuv.Beta{Alpha: 1, Beta: 1, Src: rnd}.Rand()
		} else {
			tr.Global[site] = distuv.Exponential{Rate: 1, Src: rnd}.Rand()
		}
	}
	for _, site := range m.variantSites {
		values := tr.Variant[site]
		if sigma := m.phiSigma(site); sigma > 0 {
			dist := distuv.LogNormal{Mu: 0, Sigma: sigma, Src: rnd}
			for v := range values {
				values[v] = dist.Rand()
			}
		} else {
			dist := distuv.Exponential{Rate: 1, Src: rnd}
			for v := range values {
				values[v] = dist.Rand()
			}
		}
	}
	return tr
}

// SimCounts is one forward simulation of the discrete latents and the
// emission layer: counts and genotype states per cell, support
// indicators per variant.
type SimCounts struct {
	PE, SR1, SR2         []float64
	Z                    []int32
	MPE, MSR1, MSR2, MRD []bool
}

// Counts returns the simulated count grid of the given channel.
func (sim *SimCounts) Counts(ch evidence.Channel) []float64 {
	switch ch {
	case evidence.PE:
		return sim.PE
	case evidence.SR1:
		return sim.SR1
	case evidence.SR2:
		return sim.SR2
	default:
		return nil
	}
}

/*
SimulateCounts runs the generative model forward from the continuous
parameters of the trace: it draws the per-variant support indicators,
the per-cell genotype states (honoring the read-depth override), and
negative-binomial counts for every active channel. The depth and
rdGtProb grids have the same layout as in an evidence bundle. Channels
the class does not use yield all-zero counts.
*/
func (m *Model) SimulateCounts(tr *Trace, depth, rdGtProb []float64, nSamples int, rnd *internal.Rand) (*SimCounts, error) {
	nVariants := len(depth) / nSamples
	cells := nVariants * nSamples
	sim := &SimCounts{
		PE:   make([]float64, cells),
		SR1:  make([]float64, cells),
		SR2:  make([]float64, cells),
		Z:    make([]int32, cells),
		MPE:  make([]bool, nVariants),
		MSR1: make([]bool, nVariants),
		MSR2: make([]bool, nVariants),
		MRD:  make([]bool, nVariants),
	}

	for v := 0; v < nVariants; v++ {
		for ch := evidence.PE; ch < evidence.NumCountChannels; ch++ {
			if !m.channelActive(ch) {
				continue
			}
			supported := distuv.Bernoulli{P: tr.Global[channelPiSites[ch]], Src: rnd}.Rand() > 0
			switch ch {
			case evidence.PE:
				sim.MPE[v] = supported
			case evidence.SR1:
				sim.MSR1[v] = supported
			case evidence.SR2:
				sim.MSR2[v] = supported
			}
		}
		if m.HasRD() {
			sim.MRD[v] = distuv.Bernoulli{P: tr.Global[SitePiRD], Src: rnd}.Rand() > 0
		}

		zPrior := m.GenotypePrior(tr, v)
		for s := 0; s < nSamples; s++ {
			cell := v*nSamples + s
			weights := zPrior
			if sim.MRD[v] {
				weights = rdGtProb[cell*m.K : (cell+1)*m.K]
			}
			zDist := distuv.NewCategorical(weights, rnd)
			state := int(zDist.Rand())
			sim.Z[cell] = int32(state)

			for ch := evidence.PE; ch < evidence.NumCountChannels; ch++ {
				if !m.channelActive(ch) {
					continue
				}
				supported := false
				switch ch {
				case evidence.PE:
					supported = sim.MPE[v]
				case evidence.SR1:
					supported = sim.MSR1[v]
				case evidence.SR2:
					supported = sim.MSR2[v]
				}
				phi := tr.Variant[channelPhiSites[ch]][v]
				eps := tr.Variant[channelEpsSites[ch]][v] * m.siteScale(channelEpsSites[ch])
				lambda := tr.Global[channelLambdaSites[ch]] * m.siteScale(channelLambdaSites[ch])
				mu := EmissionMean(depth[cell], phi, eps, state, supported)
				r, p, ok := NBParams(mu, lambda)
				if !ok {
					return nil, &DegeneracyError{
						Variant: v, Sample: s, Channel: ch.String(),
						Mean: mu, Variance: mu * (1 + lambda),
					}
				}
				sim.Counts(ch)[cell] = SampleNB(r, p, rnd)
			}
		}
	}
	return sim, nil
}
