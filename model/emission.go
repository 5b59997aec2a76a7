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
	"math"

	"github.com/exascience/svgenotyper/internal"

	"gonum.org/v1/gonum/stat/distuv"
)

// A DegeneracyError reports a negative-binomial emission whose variance
// does not exceed its mean, which leaves the distribution undefined. It
// identifies the offending cell and channel. A degenerate cell invalidates
// the whole draw it occurred in.
type DegeneracyError struct {
	Variant, Sample int
	Channel         string
	Mean, Variance  float64
}

func (err *DegeneracyError) Error() string {
	return fmt.Sprintf("degenerate negative binomial for variant %d sample %d channel %v: mean %v, variance %v",
		err.Variant, err.Sample, err.Channel, err.Mean, err.Variance)
}

// EmissionMean is the expected signal of one evidence channel in one cell:
// depth*(phi*k+eps) when the channel supports the variant, depth*eps when
// it does not.
func EmissionMean(depth, phi, eps float64, k int, supported bool) float64 {
	if supported {
		return depth * (phi*float64(k) + eps)
	}
	return depth * eps
}

// NBParams reparameterizes an emission mean mu with overdispersion scale
// lambda into the successes r and success probability p of the negative
// binomial, via variance = mu*(1+lambda), r = mu²/(variance-mu),
// p = (variance-mu)/variance. It reports ok = false when the variance
// does not exceed the mean.
func NBParams(mu, lambda float64) (r, p float64, ok bool) {
	variance := mu * (1 + lambda)
	if !(mu > 0) || !(variance > mu) {
		return 0, 0, false
	}
	return mu * mu / (variance - mu), (variance - mu) / variance, true
}

// nbLogProb is the log probability mass of count x under a negative
// binomial with successes r and success probability p.
func nbLogProb(x, r, p float64) float64 {
	lgXR, _ := math.Lgamma(x + r)
	lgR, _ := math.Lgamma(r)
	lgX1, _ := math.Lgamma(x + 1)
	return lgXR - lgR - lgX1 + r*math.Log1p(-p) + x*math.Log(p)
}

// SampleNB draws a count from the negative binomial with successes r and
// success probability p, as a gamma-poisson mixture.
func SampleNB(r, p float64, rnd *internal.Rand) float64 {
	gamma := distuv.Gamma{Alpha: r, Beta: (1 - p) / p, Src: rnd}
	return distuv.Poisson{Lambda: gamma.Rand(), Src: rnd}.Rand()
}
