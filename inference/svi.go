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
	"math"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/model"

	"gonum.org/v1/gonum/diff/fd"
)

/*
An SVI fits the guide to the model by stochastic gradient ascent on the
evidence lower bound. Each step draws one reparameterized sample from
the guide, evaluates the log joint density with the discrete latents
enumerated out exactly, and differentiates it with respect to every
unconstrained guide coordinate by central finite differences. The joint
decomposes over variants given the cohort-level sites, so a per-variant
coordinate only needs its own variant's term re-evaluated; only the few
cohort-level coordinates differentiate through the full sum. Variant
work runs in parallel.

The optimization loop itself is sequential: each step reads the
parameters the previous step wrote.
*/
type SVI struct {
	model *model.Model
	guide *Guide
	data  *evidence.Bundle
	opt   *adam
	fdSet *fd.Settings
}

// NewSVI prepares the fitting procedure. The evidence bundle must agree
// with the model's state count and the guide's variant dimension.
func NewSVI(m *model.Model, g *Guide, data *evidence.Bundle, learningRate float64) (*SVI, error) {
	if data.K != m.K {
		return nil, &model.ConfigError{Message: fmt.Sprintf("evidence bundle has K = %d states, model has K = %d", data.K, m.K)}
	}
	if g.NumVariants() != data.NumVariants() {
		return nil, &model.ConfigError{Message: fmt.Sprintf("guide covers %d variants, evidence bundle has %d", g.NumVariants(), data.NumVariants())}
	}
	return &SVI{
		model: m,
		guide: g,
		data:  data,
		opt:   newAdam(learningRate, g.Dim()),
		fdSet: &fd.Settings{Formula: fd.Central},
	}, nil
}

// Step performs one gradient ascent step on the guide parameters and
// returns the step's ELBO estimate.
func (svi *SVI) Step() (float64, error) {
	m, g, data := svi.model, svi.guide, svi.data
	u, eps := g.sampleUnconstrained()
	tr := g.Transform(u)
	nVariants := g.NumVariants()

	grad := make([]float64, g.Dim())

	// Cohort-level coordinates differentiate through the full joint.
	var globalErr error
	for i := 0; i < len(m.GlobalSites()); i++ {
		site := g.coordSite[i]
		f := func(x float64) float64 {
			old := tr.Global[site]
			tr.Global[site] = g.transform(site, x)
			logJoint, err := m.LogJoint(tr, data)
			tr.Global[site] = old
			if err != nil {
				globalErr = err
				return 0
			}
			return logJoint + g.logDetJacobian(site, x)
		}
		grad[i] = fd.Derivative(f, u[i], svi.fdSet)
		if globalErr != nil {
			return 0, globalErr
		}
	}

	// Per-variant coordinates only touch their own variant's term.
	variantSites := m.VariantSites()
	errs := make([]error, nVariants)
	parallel.Range(0, nVariants, 0, func(low, high int) {
		for v := low; v < high; v++ {
			variantTerm := func() (float64, error) {
				enum, err := m.Enumerate(tr, data, v)
				if err != nil {
					return 0, err
				}
				return m.LogVariantPrior(tr, v) + enum.LogEvidence(), nil
			}
			for _, site := range variantSites {
				i := g.offsets[site] + v
				values := tr.Variant[site]
				f := func(x float64) float64 {
					old := values[v]
					values[v] = g.transform(site, x)
					term, err := variantTerm()
					values[v] = old
					if err != nil {
						errs[v] = err
						return 0
					}
					return term + g.logDetJacobian(site, x)
				}
				grad[i] = fd.Derivative(f, u[i], svi.fdSet)
				if errs[v] != nil {
					return
				}
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}

	logJoint, err := m.LogJoint(tr, data)
	if err != nil {
		return 0, err
	}
	elbo := logJoint + g.entropy()
	for i, site := range g.coordSite {
		elbo += g.logDetJacobian(site, u[i])
	}

	// Reparameterization: u = loc + exp(logScale)*eps, so the scale
	// gradient picks up eps*scale, plus 1 from the entropy term.
	gradLoc := grad
	gradLogScale := make([]float64, g.Dim())
	for i := range gradLogScale {
		gradLogScale[i] = grad[i]*eps[i]*math.Exp(g.logScale[i]) + 1
	}
	svi.opt.ascend(g.loc, gradLoc, g.logScale, gradLogScale)

	return elbo, nil
}

// adam is the Adam stochastic optimizer, here stepping in the ascent
// direction.
type adam struct {
	learningRate   float64
	beta1, beta2   float64
	epsilon        float64
	step           int
	m1Loc, m2Loc   []float64
	m1Scal, m2Scal []float64
}

func newAdam(learningRate float64, dim int) *adam {
	return &adam{
		learningRate: learningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		m1Loc:        make([]float64, dim),
		m2Loc:        make([]float64, dim),
		m1Scal:       make([]float64, dim),
		m2Scal:       make([]float64, dim),
	}
}

func (opt *adam) ascend(loc, gradLoc, logScale, gradLogScale []float64) {
	opt.step++
	opt.ascendOne(loc, gradLoc, opt.m1Loc, opt.m2Loc)
	opt.ascendOne(logScale, gradLogScale, opt.m1Scal, opt.m2Scal)
}

func (opt *adam) ascendOne(params, grad, m1, m2 []float64) {
	correction1 := 1 - math.Pow(opt.beta1, float64(opt.step))
	correction2 := 1 - math.Pow(opt.beta2, float64(opt.step))
	for i, gi := range grad {
		m1[i] = opt.beta1*m1[i] + (1-opt.beta1)*gi
		m2[i] = opt.beta2*m2[i] + (1-opt.beta2)*gi*gi
		mHat := m1[i] / correction1
		vHat := m2[i] / correction2
		params[i] += opt.learningRate * mHat / (math.Sqrt(vHat) + opt.epsilon)
	}
}
