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
	"testing"

	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/utils"
)

// unitHyperparameters makes all prior scales 1 so raw trace values equal
// the effective parameters, which keeps hand computations in tests simple.
func unitHyperparameters() Hyperparameters {
	return Hyperparameters{
		MuEpsPE: 1, MuEpsSR1: 1, MuEpsSR2: 1,
		MuLambdaPE: 1, MuLambdaSR1: 1, MuLambdaSR2: 1,
		VarPhiPE: 1, VarPhiSR1: 1, VarPhiSR2: 1,
		MuEtaQ: 1, MuEtaR: 1,
	}
}

func testBundle(t *testing.T, k int, pe, sr1, sr2, depth, rdGtProb []float64, nSamples int) *evidence.Bundle {
	t.Helper()
	nVariants := len(depth) / nSamples
	variantIDs := make([]utils.Symbol, nVariants)
	for v := range variantIDs {
		variantIDs[v] = utils.Intern("var" + string(rune('A'+v)))
	}
	sampleIDs := make([]utils.Symbol, nSamples)
	for s := range sampleIDs {
		sampleIDs[s] = utils.Intern("sample" + string(rune('A'+s)))
	}
	b, err := evidence.NewBundle(variantIDs, sampleIDs, k, pe, sr1, sr2, depth, rdGtProb)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// testTrace fills a trace with fixed nondegenerate values.
func testTrace(m *Model, nVariants int) *Trace {
	tr := NewTrace(m, nVariants)
	for _, site := range m.GlobalSites() {
		if SiteOnUnitInterval(site) {
			tr.Global[site] = 0.2
		} else {
			tr.Global[site] = 0.3
		}
	}
	for _, site := range m.VariantSites() {
		values := tr.Variant[site]
		for v := range values {
			switch {
			case isPhi(site):
				values[v] = 2
			case site == SiteEtaQ || site == SiteEtaR:
				values[v] = 0.5
			default:
				values[v] = 0.1
			}
		}
	}
	return tr
}

func isPhi(site string) bool {
	return site == SitePhiPE || site == SitePhiSR1 || site == SitePhiSR2
}

func TestEnumerateCombos(t *testing.T) {
	for svtype, n := range map[SVType]int{Deletion: 16, Duplication: 16, Inversion: 8, Insertion: 4} {
		m, _ := New(svtype, 0, unitHyperparameters(), nil)
		combos := m.enumerateCombos()
		if len(combos) != n {
			t.Errorf("%v enumerates %v combos, expected %v", svtype, len(combos), n)
		}
		seen := make(map[Combo]bool)
		for _, c := range combos {
			if seen[c] {
				t.Errorf("%v enumerates %+v twice", svtype, c)
			}
			seen[c] = true
			if !m.HasPE() && c.MPE {
				t.Errorf("%v enumerates an active paired-end indicator", svtype)
			}
			if !m.HasRD() && c.MRD {
				t.Errorf("%v enumerates an active read-depth indicator", svtype)
			}
		}
	}
}

func TestZLogPosteriorRdOverride(t *testing.T) {
	m, _ := New(Deletion, 0, unitHyperparameters(), nil)
	depth := []float64{30, 25}
	counts := []float64{3, 7}
	rdGtProb := []float64{0.7, 0.2, 0.1, 0.1, 0.3, 0.6}
	data := testBundle(t, 3, counts, counts, counts, depth, rdGtProb, 2)

	trA := testTrace(m, 1)
	trB := trA.Clone()
	trB.Variant[SiteEtaQ][0] = 3.5

	enumA, err := m.Enumerate(trA, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	enumB, err := m.Enumerate(trB, data, 0)
	if err != nil {
		t.Fatal(err)
	}

	// with the read-depth override active, the state prior comes from the
	// rd_gt_prob table and cannot depend on eta_q
	override := Combo{MRD: true}
	for s := 0; s < 2; s++ {
		a := enumA.ZLogPosterior(s, override, nil)
		b := enumB.ZLogPosterior(s, override, nil)
		for state := 0; state < 3; state++ {
			if a[state] != b[state] {
				t.Errorf("overridden posterior of sample %v depends on eta_q: %v vs %v", s, a[state], b[state])
			}
		}
	}

	// without the override it must
	a := enumA.ZLogPosterior(0, Combo{}, nil)
	b := enumB.ZLogPosterior(0, Combo{}, nil)
	same := true
	for state := 0; state < 3; state++ {
		same = same && a[state] == b[state]
	}
	if same {
		t.Error("derived posterior ignores eta_q")
	}

	// the override prior is exactly the logged rd_gt_prob row: cancel the
	// likelihood terms by comparing against the derived-prior posterior
	for s := 0; s < 2; s++ {
		ov := enumA.ZLogPosterior(s, override, nil)
		prior := GenotypePrior(trA.Variant[SiteEtaQ][0], 0, 3)
		derived := enumA.ZLogPosterior(s, Combo{MRD: false}, nil)
		row := data.RdGtProbRow(0, s)
		for state := 0; state < 3; state++ {
			want := derived[state] - math.Log(prior[state]) + math.Log(row[state])
			if math.Abs(ov[state]-want) > 1e-9 {
				t.Errorf("overridden posterior of sample %v state %v is %v, expected %v", s, state, ov[state], want)
			}
		}
	}
}

func TestLogEvidenceBruteForce(t *testing.T) {
	m, _ := New(Deletion, 0, unitHyperparameters(), nil)
	depth := []float64{30, 25}
	rdGtProb := []float64{0.7, 0.2, 0.1, 0.1, 0.3, 0.6}
	pe := []float64{2, 8}
	sr1 := []float64{0, 5}
	sr2 := []float64{1, 6}
	data := testBundle(t, 3, pe, sr1, sr2, depth, rdGtProb, 2)

	tr := testTrace(m, 1)
	enum, err := m.Enumerate(tr, data, 0)
	if err != nil {
		t.Fatal(err)
	}

	// recompute the marginal likelihood directly from the emission
	// primitives, without the enumeration's precomputed tables
	zPrior := GenotypePrior(tr.Variant[SiteEtaQ][0], 0, 3)
	var total float64
	for _, c := range enum.Combos() {
		weight := bernoulli(tr.Global[SitePiPE], c.MPE) *
			bernoulli(tr.Global[SitePiSR1], c.MSR1) *
			bernoulli(tr.Global[SitePiSR2], c.MSR2) *
			bernoulli(tr.Global[SitePiRD], c.MRD)
		for s := 0; s < 2; s++ {
			var cell float64
			for state := 0; state < 3; state++ {
				var prior float64
				if c.MRD {
					prior = data.RdGtProbRow(0, s)[state]
				} else {
					prior = zPrior[state]
				}
				like := cellLikelihood(tr, SitePhiPE, SiteEpsPE, SiteLambdaPE, depth[s], pe[s], state, c.MPE) *
					cellLikelihood(tr, SitePhiSR1, SiteEpsSR1, SiteLambdaSR1, depth[s], sr1[s], state, c.MSR1) *
					cellLikelihood(tr, SitePhiSR2, SiteEpsSR2, SiteLambdaSR2, depth[s], sr2[s], state, c.MSR2)
				cell += prior * like
			}
			weight *= cell
		}
		total += weight
	}

	if got, want := enum.LogEvidence(), math.Log(total); math.Abs(got-want) > 1e-9 {
		t.Errorf("log evidence %v, brute force gives %v", got, want)
	}
}

func bernoulli(pi float64, on bool) float64 {
	if on {
		return pi
	}
	return 1 - pi
}

func cellLikelihood(tr *Trace, phiSite, epsSite, lambdaSite string, depth, obs float64, state int, supported bool) float64 {
	mu := EmissionMean(depth, tr.Variant[phiSite][0], tr.Variant[epsSite][0], state, supported)
	r, p, ok := NBParams(mu, tr.Global[lambdaSite])
	if !ok {
		return math.NaN()
	}
	return math.Exp(nbLogProb(obs, r, p))
}

func TestEnumerateDegenerate(t *testing.T) {
	m, _ := New(Deletion, 0, unitHyperparameters(), nil)
	depth := []float64{30}
	rdGtProb := []float64{0.7, 0.2, 0.1}
	counts := []float64{3}
	data := testBundle(t, 3, counts, counts, counts, depth, rdGtProb, 1)

	tr := testTrace(m, 1)
	tr.Global[SiteLambdaPE] = 0
	_, err := m.Enumerate(tr, data, 0)
	if err == nil {
		t.Fatal("zero overdispersion not rejected")
	}
	degErr, ok := err.(*DegeneracyError)
	if !ok {
		t.Fatalf("unexpected error type %T", err)
	}
	if degErr.Channel != evidence.PE.String() {
		t.Error("degeneracy reported on channel", degErr.Channel)
	}
}
