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
	"testing"

	"github.com/exascience/svgenotyper/internal"
)

func flatRdGtProb(nVariants, nSamples, k int) []float64 {
	table := make([]float64, nVariants*nSamples*k)
	for i := range table {
		table[i] = 1 / float64(k)
	}
	return table
}

func constantDepth(nVariants, nSamples int, depth float64) []float64 {
	grid := make([]float64, nVariants*nSamples)
	for i := range grid {
		grid[i] = depth
	}
	return grid
}

func TestSamplePriorShapes(t *testing.T) {
	rnd := internal.NewRand(7)
	for _, svtype := range []SVType{Deletion, Duplication, Insertion, Inversion} {
		m, _ := New(svtype, 0, DefaultHyperparameters(), nil)
		tr := m.SamplePrior(4, rnd)
		if tr.NumVariants() != 4 {
			t.Errorf("%v prior trace has %v variants", svtype, tr.NumVariants())
		}
		for _, site := range m.GlobalSites() {
			value, ok := tr.Global[site]
			if !ok {
				t.Fatalf("%v prior trace lacks global site %v", svtype, site)
			}
			if value <= 0 {
				t.Errorf("%v prior draw of %v is %v", svtype, site, value)
			}
			if SiteOnUnitInterval(site) && value >= 1 {
				t.Errorf("%v prior draw of %v is %v, outside the unit interval", svtype, site, value)
			}
		}
		for _, site := range m.VariantSites() {
			values, ok := tr.Variant[site]
			if !ok {
				t.Fatalf("%v prior trace lacks variant site %v", svtype, site)
			}
			if len(values) != 4 {
				t.Fatalf("%v prior draw of %v has length %v", svtype, site, len(values))
			}
			for _, value := range values {
				if value <= 0 {
					t.Errorf("%v prior draw of %v contains %v", svtype, site, value)
				}
			}
		}
	}
}

func TestSimulateCountsShapes(t *testing.T) {
	rnd := internal.NewRand(11)
	m, _ := New(Deletion, 0, DefaultHyperparameters(), nil)
	const nVariants, nSamples = 3, 5
	tr := m.SamplePrior(nVariants, rnd)
	sim, err := m.SimulateCounts(tr, constantDepth(nVariants, nSamples, 30), flatRdGtProb(nVariants, nSamples, 3), nSamples, rnd)
	if err != nil {
		t.Fatal(err)
	}
	cells := nVariants * nSamples
	if len(sim.PE) != cells || len(sim.SR1) != cells || len(sim.SR2) != cells || len(sim.Z) != cells {
		t.Fatal("simulated grids have the wrong cell count")
	}
	if len(sim.MPE) != nVariants || len(sim.MRD) != nVariants {
		t.Fatal("simulated support indicators have the wrong variant count")
	}
	for i, z := range sim.Z {
		if z < 0 || int(z) >= m.K {
			t.Fatalf("simulated genotype state %v at cell %v", z, i)
		}
	}
	for i, x := range sim.PE {
		if x < 0 || x != float64(int64(x)) {
			t.Fatalf("simulated paired-end count %v at cell %v", x, i)
		}
	}
}

func TestSimulateCountsInsertion(t *testing.T) {
	rnd := internal.NewRand(13)
	m, _ := New(Insertion, 0, DefaultHyperparameters(), nil)
	const nVariants, nSamples = 2, 4
	tr := m.SamplePrior(nVariants, rnd)
	sim, err := m.SimulateCounts(tr, constantDepth(nVariants, nSamples, 30), flatRdGtProb(nVariants, nSamples, 3), nSamples, rnd)
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range sim.PE {
		if x != 0 {
			t.Errorf("insertion simulation emits paired-end count %v at cell %v", x, i)
		}
	}
	for v := 0; v < nVariants; v++ {
		if sim.MPE[v] || sim.MRD[v] {
			t.Errorf("insertion simulation sets inactive support indicators at variant %v", v)
		}
	}
}
