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

package evidence

import (
	"bufio"
	"log"
	"strings"

	"github.com/exascience/svgenotyper/internal"

	"github.com/exascience/svgenotyper/utils"
)

/*
ParseEvidence parses a tab-separated evidence table into a Bundle.

Each line describes one (variant, sample) cell:

	variant  sample  pe  sr1  sr2  depth  rd_gt_prob

with rd_gt_prob a comma-separated list of K genotype probabilities. Lines
starting with # are skipped. Every variant must list the same samples in
the same order; the sample list is taken from the first variant.
*/
func ParseEvidence(filename string) *Bundle {
	file := internal.FileOpen(filename)
	defer internal.Close(file)

	var variantIDs, sampleIDs []utils.Symbol
	var pe, sr1, sr2, depth, rdGtProb []float64
	k := -1
	row := 0

	scanner := bufio.NewScanner(bufio.NewReader(file))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		data := strings.Split(line, "\t")
		if len(data) != 7 {
			log.Panicf("invalid evidence line with %v fields: %v", len(data), line)
		}
		variant := utils.Intern(data[0])
		sample := utils.Intern(data[1])
		if len(variantIDs) == 0 || variantIDs[len(variantIDs)-1] != variant {
			variantIDs = append(variantIDs, variant)
		}
		if len(variantIDs) == 1 {
			sampleIDs = append(sampleIDs, sample)
		} else if expected := sampleIDs[row%len(sampleIDs)]; sample != expected {
			log.Panicf("sample %v out of order for variant %v, expected %v", *sample, *variant, *expected)
		}
		pe = append(pe, float64(internal.ParseInt(data[2], 10, 64)))
		sr1 = append(sr1, float64(internal.ParseInt(data[3], 10, 64)))
		sr2 = append(sr2, float64(internal.ParseInt(data[4], 10, 64)))
		depth = append(depth, internal.ParseFloat(data[5], 64))
		probs := strings.Split(data[6], ",")
		if k < 0 {
			k = len(probs)
		} else if len(probs) != k {
			log.Panicf("rd genotype probability list for variant %v has %v entries, expected %v", *variant, len(probs), k)
		}
		for _, p := range probs {
			rdGtProb = append(rdGtProb, internal.ParseFloat(p, 64))
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}

	bundle, err := NewBundle(variantIDs, sampleIDs, k, pe, sr1, sr2, depth, rdGtProb)
	if err != nil {
		log.Panic(err)
	}
	return bundle
}
