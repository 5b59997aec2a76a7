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

package evidence

import (
	"fmt"
	"math"

	"github.com/exascience/svgenotyper/utils"
)

const simplexTolerance = 1e-4

// A Channel identifies one of the count-valued evidence channels.
type Channel int

// The count-valued evidence channels: discordant paired-end reads, and
// split reads at the first and second breakpoint.
const (
	PE Channel = iota
	SR1
	SR2
	NumCountChannels
)

func (ch Channel) String() string {
	switch ch {
	case PE:
		return "pe"
	case SR1:
		return "sr1"
	case SR2:
		return "sr2"
	default:
		return fmt.Sprintf("Channel(%d)", int(ch))
	}
}

// A Bundle is the read-only per-(variant,sample) evidence for one
// genotyping run: discordant paired-end counts, split-read counts at both
// breakpoints, baseline expected depth, and the genotype probabilities
// reported by a read-depth-only caller. Count and depth grids are flat,
// row-major with stride NumSamples; RdGtProb additionally ranges over the
// K genotype states per cell.
type Bundle struct {
	VariantIDs []utils.Symbol
	SampleIDs  []utils.Symbol
	K          int
	PE         []float64
	SR1        []float64
	SR2        []float64
	Depth      []float64
	RdGtProb   []float64
}

// NewBundle validates the evidence grids and wraps them in a Bundle.
func NewBundle(variantIDs, sampleIDs []utils.Symbol, k int, pe, sr1, sr2, depth, rdGtProb []float64) (*Bundle, error) {
	nVariants := len(variantIDs)
	nSamples := len(sampleIDs)
	cells := nVariants * nSamples
	if nVariants == 0 || nSamples == 0 {
		return nil, fmt.Errorf("empty evidence bundle: %v variants, %v samples", nVariants, nSamples)
	}
	for _, grid := range [][]float64{pe, sr1, sr2, depth} {
		if len(grid) != cells {
			return nil, fmt.Errorf("evidence grid has %v cells, expected %v", len(grid), cells)
		}
	}
	if len(rdGtProb) != cells*k {
		return nil, fmt.Errorf("rd genotype probability grid has %v entries, expected %v", len(rdGtProb), cells*k)
	}
	for _, counts := range [][]float64{pe, sr1, sr2} {
		for i, x := range counts {
			if x < 0 || x != math.Floor(x) {
				return nil, fmt.Errorf("count %v in cell %v is not a non-negative integer", x, i)
			}
		}
	}
	for i, d := range depth {
		if d <= 0 {
			return nil, fmt.Errorf("depth %v in cell %v is not positive", d, i)
		}
	}
	for cell := 0; cell < cells; cell++ {
		var sum float64
		for j := 0; j < k; j++ {
			p := rdGtProb[cell*k+j]
			if p < 0 {
				return nil, fmt.Errorf("negative rd genotype probability %v in cell %v", p, cell)
			}
			sum += p
		}
		if math.Abs(sum-1) > simplexTolerance {
			return nil, fmt.Errorf("rd genotype probabilities in cell %v sum to %v, expected 1", cell, sum)
		}
	}
	return &Bundle{
		VariantIDs: variantIDs,
		SampleIDs:  sampleIDs,
		K:          k,
		PE:         pe,
		SR1:        sr1,
		SR2:        sr2,
		Depth:      depth,
		RdGtProb:   rdGtProb,
	}, nil
}

// NumVariants returns the number of variants in the bundle.
func (b *Bundle) NumVariants() int {
	return len(b.VariantIDs)
}

// NumSamples returns the number of samples in the bundle.
func (b *Bundle) NumSamples() int {
	return len(b.SampleIDs)
}

// Cell returns the flat index of the (variant, sample) cell.
func (b *Bundle) Cell(v, s int) int {
	return v*len(b.SampleIDs) + s
}

// Counts returns the count grid of the given channel.
func (b *Bundle) Counts(ch Channel) []float64 {
	switch ch {
	case PE:
		return b.PE
	case SR1:
		return b.SR1
	case SR2:
		return b.SR2
	default:
		return nil
	}
}

// RdGtProbRow returns the K genotype probabilities of the (variant, sample)
// cell as reported by the read-depth caller.
func (b *Bundle) RdGtProbRow(v, s int) []float64 {
	cell := b.Cell(v, s)
	return b.RdGtProb[cell*b.K : (cell+1)*b.K]
}
