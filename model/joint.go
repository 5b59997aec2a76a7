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
	"fmt"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/svgenotyper/evidence"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// A Trace holds one sampled value for every continuous latent site of a
// model: one value per global site, and one per variant for the
// per-variant sites. Values are on the unit prior scale; hyperparameter
// scales are applied where the model consumes them, never stored.
type Trace struct {
	Global  map[string]float64
	Variant map[string][]float64
}

// NewTrace allocates a zero-valued trace for the model's sites.
func NewTrace(m *Model, nVariants int) *Trace {
	tr := &Trace{
		Global:  make(map[string]float64, len(m.globalSites)),
		Variant: make(map[string][]float64, len(m.variantSites)),
	}
	for _, site := range m.globalSites {
		tr.Global[site] = 0
	}
	for _, site := range m.variantSites {
		tr.Variant[site] = make([]float64, nVariants)
	}
	return tr
}

// NumVariants returns the variant dimension of the trace.
func (tr *Trace) NumVariants() int {
	for _, values := range tr.Variant {
		return len(values)
	}
	return 0
}

// Clone returns a deep copy of the trace.
func (tr *Trace) Clone() *Trace {
	clone := &Trace{
		Global:  make(map[string]float64, len(tr.Global)),
		Variant: make(map[string][]float64, len(tr.Variant)),
	}
	for site, value := range tr.Global {
		clone.Global[site] = value
	}
	for site, values := range tr.Variant {
		clone.Variant[site] = append([]float64(nil), values...)
	}
	return clone
}

// LogGlobalPrior is the log prior density of the cohort-level sites.
func (m *Model) LogGlobalPrior(tr *Trace) float64 {
	var sum float64
	for _, site := range m.globalSites {
		value := tr.Global[site]
		if SiteOnUnitInterval(site) {
			sum += distuv.Beta{Alpha: 1, Beta: 1}.LogProb(value)
		} else {
			sum += distuv.Exponential{Rate: 1}.LogProb(value)
		}
	}
	return sum
}

// LogVariantPrior is the log prior density of the per-variant sites of
// one variant.
func (m *Model) LogVariantPrior(tr *Trace, v int) float64 {
	var sum float64
	for _, site := range m.variantSites {
		value := tr.Variant[site][v]
		if sigma := m.phiSigma(site); sigma > 0 {
			sum += distuv.LogNormal{Mu: 0, Sigma: sigma}.LogProb(value)
		} else {
			sum += distuv.Exponential{Rate: 1}.LogProb(value)
		}
	}
	return sum
}

/*
LogJoint is the log density of the observed evidence and the continuous
latent sites, with every discrete latent summed out exactly: the support
indicators by enumeration over their combinations per variant, and the
genotype states by enumeration over the K states per cell. Variants are
conditionally independent given the cohort-level sites, so the variant
terms are computed in parallel.
*/
func (m *Model) LogJoint(tr *Trace, data *evidence.Bundle) (float64, error) {
	if data.K != m.K {
		return 0, &ConfigError{Message: fmt.Sprintf("evidence bundle has K = %d states, model has K = %d", data.K, m.K)}
	}
	nVariants := data.NumVariants()
	terms := make([]float64, nVariants)
	errs := make([]error, nVariants)
	parallel.Range(0, nVariants, 0, func(low, high int) {
		for v := low; v < high; v++ {
			enum, err := m.Enumerate(tr, data, v)
			if err != nil {
				errs[v] = err
				continue
			}
			terms[v] = m.LogVariantPrior(tr, v) + enum.LogEvidence()
		}
	})
	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}
	return m.LogGlobalPrior(tr) + floats.Sum(terms), nil
}
