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
	"log"

	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/model"
)

/*
Predictive draws nSamples joint samples of the model's continuous latent
sites from the fitted guide, running the generative model forward on
each draw to realize the emission layer as well. Only the latent sites
are returned, as a map from site name to one row per draw: a single
value for cohort-level sites, one value per variant for per-variant
sites. The discrete latents are marginal to this procedure; use
InferDiscrete for them.
*/
func Predictive(m *model.Model, g *Guide, data *evidence.Bundle, nSamples int) (map[string][][]float64, error) {
	log.Println("Running predictive distribution inference...")
	draws := make(map[string][][]float64)
	for _, site := range m.Sites() {
		draws[site] = make([][]float64, 0, nSamples)
	}
	for i := 0; i < nSamples; i++ {
		tr := g.Sample()
		if _, err := m.SimulateCounts(tr, data.Depth, data.RdGtProb, data.NumSamples(), g.Rand()); err != nil {
			return nil, err
		}
		for _, site := range m.GlobalSites() {
			draws[site] = append(draws[site], []float64{tr.Global[site]})
		}
		for _, site := range m.VariantSites() {
			draws[site] = append(draws[site], append([]float64(nil), tr.Variant[site]...))
		}
	}
	log.Println("Inference complete.")
	return draws, nil
}
