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
	"log"
	"math"
)

/*
GenotypePrior derives the genotype-state prior from the rate parameters
of the variant. The alternate allele frequency is q = 1-exp(-etaQ).

For k = 3 the prior is the Hardy-Weinberg distribution [p², 2pq, q²]
with p = 1-q; etaR is ignored.

For k = 5 a second configuration with frequency r = (1-q)(1-exp(-etaR))
is gated in, giving [p², 2pq, 2pr+q², 2qr, r²] with p = 1-q-r.

The result is a probability vector for any etaQ, etaR >= 0.
*/
func GenotypePrior(etaQ, etaR float64, k int) []float64 {
	q := 1 - math.Exp(-etaQ)
	switch k {
	case 3:
		p := 1 - q
		return []float64{p * p, 2 * p * q, q * q}
	case 5:
		r := (1 - q) * (1 - math.Exp(-etaR))
		p := 1 - q - r
		return []float64{p * p, 2 * q * p, 2*p*r + q*q, 2 * q * r, r * r}
	default:
		log.Panicf("unsupported number of states K = %d", k)
		return nil
	}
}

// GenotypePrior derives the genotype-state prior of one variant from the
// unit-scale eta sites of the trace, applying the model's prior scales.
func (m *Model) GenotypePrior(tr *Trace, v int) []float64 {
	etaQ := tr.Variant[SiteEtaQ][v] * m.Hyper.MuEtaQ
	var etaR float64
	if m.K == 5 {
		etaR = tr.Variant[SiteEtaR][v] * m.Hyper.MuEtaR
	}
	return GenotypePrior(etaQ, etaR, m.K)
}
