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
	"strconv"
	"testing"

	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/internal"
	"github.com/exascience/svgenotyper/model"
	"github.com/exascience/svgenotyper/utils"

	"gonum.org/v1/gonum/stat"
)

func namedSymbols(prefix string, n int) []utils.Symbol {
	symbols := make([]utils.Symbol, n)
	for i := range symbols {
		symbols[i] = utils.Intern(prefix + strconv.Itoa(i))
	}
	return symbols
}

func flatRdGtProb(cells, k int) []float64 {
	table := make([]float64, cells*k)
	for i := range table {
		table[i] = 1 / float64(k)
	}
	return table
}

// simulatedBundle runs the generative model forward from a prior draw
// and wraps the simulated counts as an evidence bundle.
func simulatedBundle(t *testing.T, m *model.Model, nVariants, nSamples int, seed uint64) *evidence.Bundle {
	t.Helper()
	rnd := internal.NewRand(seed)
	cells := nVariants * nSamples
	depth := make([]float64, cells)
	for i := range depth {
		depth[i] = 30
	}
	rdGtProb := flatRdGtProb(cells, m.K)
	tr := m.SamplePrior(nVariants, rnd)
	sim, err := m.SimulateCounts(tr, depth, rdGtProb, nSamples, rnd)
	if err != nil {
		t.Fatal(err)
	}
	data, err := evidence.NewBundle(namedSymbols("var", nVariants), namedSymbols("sample", nSamples), m.K,
		sim.PE, sim.SR1, sim.SR2, depth, rdGtProb)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestNewSVIMismatch(t *testing.T) {
	del, _ := model.New(model.Deletion, 0, model.DefaultHyperparameters(), nil)
	dup, _ := model.New(model.Duplication, 0, model.DefaultHyperparameters(), nil)
	data := simulatedBundle(t, del, 2, 3, 1)

	if _, err := NewSVI(dup, NewGuide(dup, 2, 1), data, 0.01); err == nil {
		t.Error("state-count mismatch not rejected")
	} else if _, ok := err.(*model.ConfigError); !ok {
		t.Errorf("unexpected error type %T", err)
	}
	if _, err := NewSVI(del, NewGuide(del, 5, 1), data, 0.01); err == nil {
		t.Error("variant-count mismatch not rejected")
	}
}

func TestStepFinite(t *testing.T) {
	m, _ := model.New(model.Deletion, 0, model.DefaultHyperparameters(), nil)
	data := simulatedBundle(t, m, 2, 3, 2)
	g := NewGuide(m, 2, 3)
	g.InitToPrior()
	svi, err := NewSVI(m, g, data, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	elbo, err := svi.Step()
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(elbo) || math.IsInf(elbo, 0) {
		t.Error("step returned ELBO", elbo)
	}
}

func TestStepImprovesELBO(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fitting loop in short mode")
	}
	m, _ := model.New(model.Deletion, 0, model.DefaultHyperparameters(), nil)
	data := simulatedBundle(t, m, 2, 4, 5)
	g := NewGuide(m, 2, 7)
	g.InitToPrior()
	svi, err := NewSVI(m, g, data, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	const epochs = 200
	elbos := make([]float64, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		elbo, err := svi.Step()
		if err != nil {
			t.Fatal(err)
		}
		elbos[epoch] = elbo
	}
	early := stat.Mean(elbos[:40], nil)
	late := stat.Mean(elbos[epochs-40:], nil)
	if late <= early {
		t.Errorf("ELBO did not improve: early mean %v, late mean %v", early, late)
	}
}
