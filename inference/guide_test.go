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
	"testing"

	"github.com/exascience/svgenotyper/model"
)

func TestGuideDim(t *testing.T) {
	m, err := model.New(model.Deletion, 0, model.DefaultHyperparameters(), nil)
	if err != nil {
		t.Fatal(err)
	}
	const nVariants = 7
	g := NewGuide(m, nVariants, 1)
	want := len(m.GlobalSites()) + nVariants*len(m.VariantSites())
	if g.Dim() != want {
		t.Errorf("guide has %v coordinates, expected %v", g.Dim(), want)
	}
	if g.NumVariants() != nVariants {
		t.Errorf("guide has %v variants, expected %v", g.NumVariants(), nVariants)
	}
}

func TestTransformRoundTrip(t *testing.T) {
	m, _ := model.New(model.Duplication, 0, model.DefaultHyperparameters(), nil)
	g := NewGuide(m, 1, 1)
	for _, site := range []string{model.SitePiPE, model.SitePiRD} {
		for _, value := range []float64{0.01, 0.5, 0.99} {
			round := g.transform(site, g.inverseTransform(site, value))
			if math.Abs(round-value) > 1e-12 {
				t.Errorf("unit-interval round trip of %v gives %v", value, round)
			}
		}
	}
	for _, value := range []float64{0.01, 1, 250} {
		round := g.transform(model.SiteLambdaPE, g.inverseTransform(model.SiteLambdaPE, value))
		if math.Abs(round-value) > 1e-9*value {
			t.Errorf("positive round trip of %v gives %v", value, round)
		}
	}
}

func TestSetSitePinsTrace(t *testing.T) {
	m, _ := model.New(model.Deletion, 0, model.DefaultHyperparameters(), nil)
	const nVariants = 3
	g := NewGuide(m, nVariants, 1)
	g.SetScale(1e-7)
	g.SetSite(model.SitePiPE, 0.25)
	g.SetSite(model.SitePhiSR1, 1.5, 2.5, 3.5)

	tr := g.Sample()
	if math.Abs(tr.Global[model.SitePiPE]-0.25) > 1e-5 {
		t.Errorf("pinned pi_pe sampled as %v", tr.Global[model.SitePiPE])
	}
	for v, want := range []float64{1.5, 2.5, 3.5} {
		if got := tr.Variant[model.SitePhiSR1][v]; math.Abs(got-want) > 1e-5 {
			t.Errorf("pinned phi_sr1[%v] sampled as %v, expected %v", v, got, want)
		}
	}
}

func TestSampleDomains(t *testing.T) {
	m, _ := model.New(model.Duplication, 0, model.DefaultHyperparameters(), nil)
	g := NewGuide(m, 2, 5)
	g.InitToPrior()
	for i := 0; i < 50; i++ {
		tr := g.Sample()
		for _, site := range m.GlobalSites() {
			value := tr.Global[site]
			if value <= 0 {
				t.Fatalf("sampled %v = %v", site, value)
			}
			if model.SiteOnUnitInterval(site) && value >= 1 {
				t.Fatalf("sampled %v = %v, outside the unit interval", site, value)
			}
		}
		for _, site := range m.VariantSites() {
			for v, value := range tr.Variant[site] {
				if value <= 0 {
					t.Fatalf("sampled %v[%v] = %v", site, v, value)
				}
			}
		}
	}
}

func TestInitToPriorMoments(t *testing.T) {
	m, _ := model.New(model.Deletion, 0, model.DefaultHyperparameters(), nil)
	g := NewGuide(m, 1, 1)
	g.InitToPrior()
	for i, site := range g.coordSite {
		mean, std := m.UnconstrainedPriorMoments(site)
		if g.loc[i] != mean {
			t.Errorf("coordinate %v of %v has location %v, expected %v", i, site, g.loc[i], mean)
		}
		if math.Abs(math.Exp(g.logScale[i])-std) > 1e-12 {
			t.Errorf("coordinate %v of %v has scale %v, expected %v", i, site, math.Exp(g.logScale[i]), std)
		}
	}
}

func TestEntropyScalesWithLogScale(t *testing.T) {
	m, _ := model.New(model.Insertion, 0, model.DefaultHyperparameters(), nil)
	g := NewGuide(m, 2, 1)
	g.SetScale(1)
	base := g.entropy()
	g.SetScale(math.E)
	if diff := g.entropy() - base; math.Abs(diff-float64(g.Dim())) > 1e-9 {
		t.Errorf("entropy increased by %v when every scale grew by a factor e, expected %v", diff, g.Dim())
	}
}
