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

package inference

import (
	"fmt"
	"log"
	"math"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/internal"
	"github.com/exascience/svgenotyper/model"

	"github.com/willf/bitset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DiscreteOptions control the discrete inference loop. Temperature 1
// samples each cell's exact conditional distribution; temperature 0
// decodes its mode. The zero value of NumDraws and LogFreq defaults to
// 1000 and 100.
type DiscreteOptions struct {
	NumDraws    int
	LogFreq     int
	Temperature float64
	Seed        uint64
}

func (opts DiscreteOptions) withDefaults() DiscreteOptions {
	if opts.NumDraws == 0 {
		opts.NumDraws = 1000
	}
	if opts.LogFreq == 0 {
		opts.LogFreq = 100
	}
	return opts
}

/*
LatentSamples holds N posterior draws of the discrete latents. Genotype
states are stored per (draw, variant, sample) cell; support indicators
are per-variant, kept as one bit set per draw and channel and broadcast
across samples on export. Channels the variant class does not use stay
all clear.
*/
type LatentSamples struct {
	NumDraws, NumVariants, NumSamples int

	Z                    []int32 // NumDraws*NumVariants*NumSamples
	MPE, MSR1, MSR2, MRD []*bitset.BitSet
}

func newLatentSamples(nDraws, nVariants, nSamples int) *LatentSamples {
	ls := &LatentSamples{
		NumDraws:    nDraws,
		NumVariants: nVariants,
		NumSamples:  nSamples,
		Z:           make([]int32, nDraws*nVariants*nSamples),
		MPE:         make([]*bitset.BitSet, nDraws),
		MSR1:        make([]*bitset.BitSet, nDraws),
		MSR2:        make([]*bitset.BitSet, nDraws),
		MRD:         make([]*bitset.BitSet, nDraws),
	}
	for i := 0; i < nDraws; i++ {
		ls.MPE[i] = bitset.New(uint(nVariants))
		ls.MSR1[i] = bitset.New(uint(nVariants))
		ls.MSR2[i] = bitset.New(uint(nVariants))
		ls.MRD[i] = bitset.New(uint(nVariants))
	}
	return ls
}

// Index returns the flat index of the (draw, variant, sample) cell.
func (ls *LatentSamples) Index(draw, v, s int) int {
	return (draw*ls.NumVariants+v)*ls.NumSamples + s
}

func broadcastMasks(masks []*bitset.BitSet, nVariants, nSamples int) []float64 {
	out := make([]float64, len(masks)*nVariants*nSamples)
	for draw, mask := range masks {
		for v := 0; v < nVariants; v++ {
			if !mask.Test(uint(v)) {
				continue
			}
			base := (draw*nVariants + v) * nSamples
			for s := 0; s < nSamples; s++ {
				out[base+s] = 1
			}
		}
	}
	return out
}

// MPEArray returns the paired-end support indicators broadcast to the
// [NumDraws, NumVariants, NumSamples] grid.
func (ls *LatentSamples) MPEArray() []float64 {
	return broadcastMasks(ls.MPE, ls.NumVariants, ls.NumSamples)
}

// MSR1Array returns the first-breakpoint split-read support indicators
// broadcast to the [NumDraws, NumVariants, NumSamples] grid.
func (ls *LatentSamples) MSR1Array() []float64 {
	return broadcastMasks(ls.MSR1, ls.NumVariants, ls.NumSamples)
}

// MSR2Array returns the second-breakpoint split-read support indicators
// broadcast to the [NumDraws, NumVariants, NumSamples] grid.
func (ls *LatentSamples) MSR2Array() []float64 {
	return broadcastMasks(ls.MSR2, ls.NumVariants, ls.NumSamples)
}

// MRDArray returns the read-depth support indicators broadcast to the
// [NumDraws, NumVariants, NumSamples] grid.
func (ls *LatentSamples) MRDArray() []float64 {
	return broadcastMasks(ls.MRD, ls.NumVariants, ls.NumSamples)
}

// CountResamples holds counts redrawn from the negative-binomial
// emissions realized at the decoded genotype states, one grid per draw,
// for posterior-predictive calibration of the fitted model.
type CountResamples struct {
	PE, SR1, SR2 []float64 // NumDraws*NumVariants*NumSamples
}

func (cr *CountResamples) counts(ch evidence.Channel) []float64 {
	switch ch {
	case evidence.PE:
		return cr.PE
	case evidence.SR1:
		return cr.SR1
	default:
		return cr.SR2
	}
}

/*
InferDiscrete produces N independent posterior draws of the discrete
latents. Each draw samples one trace of continuous parameters from the
guide, then decodes every variant independently and exactly: the joint
conditional over that variant's support indicators is enumerated in
closed form from their Bernoulli priors and the state-marginalized count
likelihoods, sampled (or maximized at temperature 0), and the genotype
state of every sample cell is then sampled from its exact conditional
given those indicators. Variants decode in parallel; draws are
collected sequentially with progress logged every LogFreq draws.
*/
func InferDiscrete(m *model.Model, g *Guide, data *evidence.Bundle, opts DiscreteOptions) (*LatentSamples, error) {
	samples, _, err := inferDiscrete(m, g, data, opts, false)
	return samples, err
}

// InferDiscreteFull is InferDiscrete plus posterior-predictive count
// resampling: per draw, the negative-binomial parameters realized at
// each decoded state are used to redraw simulated counts for every
// active channel.
func InferDiscreteFull(m *model.Model, g *Guide, data *evidence.Bundle, opts DiscreteOptions) (*LatentSamples, *CountResamples, error) {
	return inferDiscrete(m, g, data, opts, true)
}

func inferDiscrete(m *model.Model, g *Guide, data *evidence.Bundle, opts DiscreteOptions, full bool) (*LatentSamples, *CountResamples, error) {
	log.Println("Running discrete inference...")
	if data.K != m.K {
		return nil, nil, &model.ConfigError{Message: fmt.Sprintf("evidence bundle has K = %d states, model has K = %d", data.K, m.K)}
	}
	opts = opts.withDefaults()
	nVariants := data.NumVariants()
	nSamples := data.NumSamples()
	samples := newLatentSamples(opts.NumDraws, nVariants, nSamples)
	var resamples *CountResamples
	if full {
		cells := opts.NumDraws * nVariants * nSamples
		resamples = &CountResamples{
			PE:  make([]float64, cells),
			SR1: make([]float64, cells),
			SR2: make([]float64, cells),
		}
	}

	combos := make([]model.Combo, nVariants)
	for draw := 0; draw < opts.NumDraws; draw++ {
		tr := g.Sample()
		errs := make([]error, nVariants)
		parallel.Range(0, nVariants, 0, func(low, high int) {
			for v := low; v < high; v++ {
				// A dedicated generator per (draw, variant) keeps the
				// parallel decode deterministic.
				rnd := internal.NewRand(opts.Seed + uint64(draw*nVariants+v))
				if err := decodeVariant(m, tr, data, samples, resamples, combos, draw, v, opts.Temperature, rnd); err != nil {
					errs[v] = err
				}
			}
		})
		for _, err := range errs {
			if err != nil {
				return nil, nil, err
			}
		}
		// BitSet writes are not atomic, and variants in the same word
		// share it, so the decoded combos fold in sequentially.
		for v, c := range combos {
			if c.MPE {
				samples.MPE[draw].Set(uint(v))
			}
			if c.MSR1 {
				samples.MSR1[draw].Set(uint(v))
			}
			if c.MSR2 {
				samples.MSR2[draw].Set(uint(v))
			}
			if c.MRD {
				samples.MRD[draw].Set(uint(v))
			}
		}
		if (draw+1)%opts.LogFreq == 0 {
			log.Printf("[sample %d] discrete latent", draw+1)
		}
	}
	log.Println("Inference complete.")
	return samples, resamples, nil
}

// decodeVariant decodes one variant's discrete latents for one draw. It
// writes only to its own variant's cells of the output grids and to
// combos[v], so variants can decode concurrently.
func decodeVariant(m *model.Model, tr *model.Trace, data *evidence.Bundle, samples *LatentSamples, resamples *CountResamples, combos []model.Combo, draw, v int, temperature float64, rnd *internal.Rand) error {
	enum, err := m.Enumerate(tr, data, v)
	if err != nil {
		return err
	}

	combo := enum.Combos()[sampleLogWeights(enum.ComboLogWeights(), temperature, rnd)]
	combos[v] = combo

	zLogPost := make([]float64, m.K)
	for s := 0; s < data.NumSamples(); s++ {
		enum.ZLogPosterior(s, combo, zLogPost)
		state := sampleLogWeights(zLogPost, temperature, rnd)
		samples.Z[samples.Index(draw, v, s)] = int32(state)

		if resamples == nil {
			continue
		}
		for ch := evidence.PE; ch < evidence.NumCountChannels; ch++ {
			if ch == evidence.PE && !m.HasPE() {
				continue
			}
			supported := false
			switch ch {
			case evidence.PE:
				supported = combo.MPE
			case evidence.SR1:
				supported = combo.MSR1
			case evidence.SR2:
				supported = combo.MSR2
			}
			r, p, err := enum.EmissionNB(ch, s, state, supported)
			if err != nil {
				return err
			}
			resamples.counts(ch)[samples.Index(draw, v, s)] = model.SampleNB(r, p, rnd)
		}
	}
	return nil
}

// sampleLogWeights draws an index from the categorical distribution
// given by unnormalized log weights, tempered by the temperature;
// temperature 0 returns the mode.
func sampleLogWeights(logWeights []float64, temperature float64, rnd *internal.Rand) int {
	if temperature == 0 {
		return floats.MaxIdx(logWeights)
	}
	weights := make([]float64, len(logWeights))
	for i, logw := range logWeights {
		weights[i] = logw / temperature
	}
	norm := floats.LogSumExp(weights)
	for i, logw := range weights {
		weights[i] = math.Exp(logw - norm)
	}
	return int(distuv.NewCategorical(weights, rnd).Rand())
}
