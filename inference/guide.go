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
	"math"

	"github.com/exascience/svgenotyper/internal"
	"github.com/exascience/svgenotyper/model"

	"gonum.org/v1/gonum/stat/distuv"
)

/*
A Guide is the mean-field approximate posterior over all continuous
latent sites of a model: every scalar coordinate is mapped to an
unconstrained axis (logit for (0,1) sites, log for positive sites) and
modeled there as an independent Gaussian with its own location and
scale. Per-variant sites contribute one coordinate per variant.

The guide is refined in place by the fitting loop and then read, without
further mutation, by the posterior-predictive and discrete inference
consumers.
*/
type Guide struct {
	model     *model.Model
	nVariants int
	dim       int

	// one entry per unconstrained coordinate
	loc, logScale []float64
	coordSite     []string
	coordVariant  []int // -1 for cohort-level coordinates

	offsets map[string]int
	rnd     *internal.Rand
}

const initScale = 0.1

// NewGuide creates a guide for the model over a cohort of nVariants
// variants, initialized at the prior medians with a small scale.
func NewGuide(m *model.Model, nVariants int, seed uint64) *Guide {
	g := &Guide{
		model:     m,
		nVariants: nVariants,
		offsets:   make(map[string]int),
		rnd:       internal.NewRand(seed),
	}
	for _, site := range m.GlobalSites() {
		g.offsets[site] = g.dim
		g.coordSite = append(g.coordSite, site)
		g.coordVariant = append(g.coordVariant, -1)
		g.dim++
	}
	for _, site := range m.VariantSites() {
		g.offsets[site] = g.dim
		for v := 0; v < nVariants; v++ {
			g.coordSite = append(g.coordSite, site)
			g.coordVariant = append(g.coordVariant, v)
		}
		g.dim += nVariants
	}

	g.loc = make([]float64, g.dim)
	g.logScale = make([]float64, g.dim)
	logLn2 := math.Log(math.Ln2)
	for i, site := range g.coordSite {
		switch {
		case model.SiteOnUnitInterval(site):
			g.loc[i] = 0 // median of Beta(1,1) is 1/2
		case isPhiSite(site):
			g.loc[i] = 0 // median of the log-normal is 1
		default:
			g.loc[i] = logLn2 // median of the unit exponential
		}
		g.logScale[i] = math.Log(initScale)
	}
	return g
}

func isPhiSite(site string) bool {
	return site == model.SitePhiPE || site == model.SitePhiSR1 || site == model.SitePhiSR2
}

// Dim returns the number of unconstrained coordinates.
func (g *Guide) Dim() int {
	return g.dim
}

// NumVariants returns the variant dimension the guide was built for.
func (g *Guide) NumVariants() int {
	return g.nVariants
}

// Rand returns the guide's random number generator.
func (g *Guide) Rand() *internal.Rand {
	return g.rnd
}

// InitToPrior moment-matches every coordinate's Gaussian to its site's
// prior in unconstrained space, making the guide a stand-in for the
// prior before any fitting.
func (g *Guide) InitToPrior() {
	for i, site := range g.coordSite {
		mean, std := g.model.UnconstrainedPriorMoments(site)
		g.loc[i] = mean
		g.logScale[i] = math.Log(std)
	}
}

// SetSite pins the location of a site to the given constrained values
// (one value for a cohort-level site, nVariants values for a per-variant
// site). Scales are left untouched.
func (g *Guide) SetSite(site string, values ...float64) {
	offset := g.offsets[site]
	for i, value := range values {
		g.loc[offset+i] = g.inverseTransform(site, value)
	}
}

// SetScale sets every coordinate's scale, e.g. to collapse the guide to
// a near-point mass for decoding at fixed parameters.
func (g *Guide) SetScale(scale float64) {
	logScale := math.Log(scale)
	for i := range g.logScale {
		g.logScale[i] = logScale
	}
}

// transform maps one unconstrained coordinate into the site's domain.
func (g *Guide) transform(site string, u float64) float64 {
	if model.SiteOnUnitInterval(site) {
		return 1 / (1 + math.Exp(-u))
	}
	return math.Exp(u)
}

func (g *Guide) inverseTransform(site string, value float64) float64 {
	if model.SiteOnUnitInterval(site) {
		return math.Log(value) - math.Log1p(-value)
	}
	return math.Log(value)
}

// logDetJacobian is the log absolute derivative of the transform at one
// unconstrained coordinate value.
func (g *Guide) logDetJacobian(site string, u float64) float64 {
	if model.SiteOnUnitInterval(site) {
		theta := 1 / (1 + math.Exp(-u))
		return math.Log(theta) + math.Log1p(-theta)
	}
	return u
}

// sampleUnconstrained draws one reparameterized sample of all
// coordinates, returning both the sample and the standard normal noise
// that produced it.
func (g *Guide) sampleUnconstrained() (u, eps []float64) {
	u = make([]float64, g.dim)
	eps = make([]float64, g.dim)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: g.rnd}
	for i := range u {
		eps[i] = normal.Rand()
		u[i] = g.loc[i] + math.Exp(g.logScale[i])*eps[i]
	}
	return u, eps
}

// Transform maps a full unconstrained sample into a model trace.
func (g *Guide) Transform(u []float64) *model.Trace {
	tr := model.NewTrace(g.model, g.nVariants)
	for i, site := range g.coordSite {
		if v := g.coordVariant[i]; v < 0 {
			tr.Global[site] = g.transform(site, u[i])
		} else {
			tr.Variant[site][v] = g.transform(site, u[i])
		}
	}
	return tr
}

// Sample draws one trace of all continuous latent sites from the guide.
func (g *Guide) Sample() *model.Trace {
	u, _ := g.sampleUnconstrained()
	return g.Transform(u)
}

// entropy is the differential entropy of the guide in unconstrained
// space.
func (g *Guide) entropy() float64 {
	const halfLog2PiE = 1.4189385332046727
	sum := float64(g.dim) * halfLog2PiE
	for _, logScale := range g.logScale {
		sum += logScale
	}
	return sum
}
