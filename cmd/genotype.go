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

package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/exascience/svgenotyper/evidence"
	"github.com/exascience/svgenotyper/inference"
	"github.com/exascience/svgenotyper/internal"
	"github.com/exascience/svgenotyper/model"
)

// GenotypeHelp is the help string for the genotype command.
const GenotypeHelp = "\ngenotype parameters:\n" +
	"svgenotyper genotype evidence-file output-file\n" +
	"[--variant-type DEL|DUP|INS|INV]\n" +
	"[--states number]\n" +
	"[--epochs number]\n" +
	"[--learning-rate number]\n" +
	"[--samples number]\n" +
	"[--temperature number]\n" +
	"[--log-freq number]\n" +
	"[--seed number]\n" +
	"[--full]\n"

// Genotype implements the genotype command: it fits the variational
// approximation to the evidence, decodes the discrete latents, and
// writes a genotype table.
func Genotype() error {
	var (
		variantType  string
		states       int
		epochs       int
		learningRate float64
		nSamples     int
		temperature  float64
		logFreq      int
		seed         uint64
		full         bool
	)
	flags := flag.NewFlagSet("genotype", flag.ExitOnError)
	flags.StringVar(&variantType, "variant-type", "DEL", "structural variant class to genotype")
	flags.IntVar(&states, "states", 0, "number of genotype states (0 derives it from the class)")
	flags.IntVar(&epochs, "epochs", 1000, "number of fitting epochs")
	flags.Float64Var(&learningRate, "learning-rate", 0.01, "Adam learning rate")
	flags.IntVar(&nSamples, "samples", 1000, "number of posterior draws of the discrete latents")
	flags.Float64Var(&temperature, "temperature", 1, "posterior sampling temperature (0 decodes modes)")
	flags.IntVar(&logFreq, "log-freq", 100, "progress logging frequency")
	flags.Uint64Var(&seed, "seed", 47382911, "random seed")
	flags.BoolVar(&full, "full", false, "also write posterior-predictive count resamples")

	input := getFilename(os.Args[2], GenotypeHelp)
	output := getFilename(os.Args[3], GenotypeHelp)
	parseFlags(*flags, 4, GenotypeHelp)

	if !checkExist("", input) {
		os.Exit(1)
	}

	runID := uuid.New().String()
	log.Println("Genotyping run", runID, "for", input)

	svtype, err := model.ParseSVType(variantType)
	if err != nil {
		return err
	}
	m, err := model.New(svtype, states, model.DefaultHyperparameters(), nil)
	if err != nil {
		return err
	}
	data := evidence.ParseEvidence(input)
	if data.K != m.K {
		return fmt.Errorf("evidence bundle has K = %d states, model has K = %d", data.K, m.K)
	}

	log.Println("Fitting variational approximation...")
	start := time.Now()
	guide := inference.NewGuide(m, data.NumVariants(), seed)
	svi, err := inference.NewSVI(m, guide, data, learningRate)
	if err != nil {
		return err
	}
	for epoch := 1; epoch <= epochs; epoch++ {
		elbo, err := svi.Step()
		if err != nil {
			return err
		}
		m.Loss.Append(epoch, elbo)
		if epoch%logFreq == 0 {
			log.Printf("[epoch %d] elbo %.4f", epoch, elbo)
		}
	}
	log.Println("Fitting done in", time.Since(start))

	opts := inference.DiscreteOptions{
		NumDraws:    nSamples,
		LogFreq:     logFreq,
		Temperature: temperature,
		Seed:        seed + 1,
	}
	var samples *inference.LatentSamples
	var resamples *inference.CountResamples
	if full {
		samples, resamples, err = inference.InferDiscreteFull(m, guide, data, opts)
	} else {
		samples, err = inference.InferDiscrete(m, guide, data, opts)
	}
	if err != nil {
		return err
	}

	writeGenotypes(output, data, samples)
	if resamples != nil {
		writeResamples(output+".resamples", data, samples, resamples)
	}
	log.Println("Genotyping run", runID, "complete.")
	return nil
}

// writeGenotypes writes one line per (variant, sample) cell: the modal
// genotype state, its posterior frequency, and the per-channel support
// frequencies across draws.
func writeGenotypes(filename string, data *evidence.Bundle, samples *inference.LatentSamples) {
	file := internal.FileCreate(filename)
	defer internal.Close(file)
	out := bufio.NewWriter(file)
	defer func() {
		if err := out.Flush(); err != nil {
			log.Panic(err)
		}
	}()

	fmt.Fprintln(out, "#variant\tsample\tgt\tgt_freq\tp_m_pe\tp_m_sr1\tp_m_sr2\tp_m_rd")
	nDraws := samples.NumDraws
	stateCounts := make([]int, data.K)
	for v := 0; v < data.NumVariants(); v++ {
		var pe, sr1, sr2, rd int
		for draw := 0; draw < nDraws; draw++ {
			if samples.MPE[draw].Test(uint(v)) {
				pe++
			}
			if samples.MSR1[draw].Test(uint(v)) {
				sr1++
			}
			if samples.MSR2[draw].Test(uint(v)) {
				sr2++
			}
			if samples.MRD[draw].Test(uint(v)) {
				rd++
			}
		}
		for s := 0; s < data.NumSamples(); s++ {
			for i := range stateCounts {
				stateCounts[i] = 0
			}
			for draw := 0; draw < nDraws; draw++ {
				stateCounts[samples.Z[samples.Index(draw, v, s)]]++
			}
			mode, modeCount := 0, stateCounts[0]
			for state, count := range stateCounts {
				if count > modeCount {
					mode, modeCount = state, count
				}
			}
			fmt.Fprintf(out, "%v\t%v\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
				*data.VariantIDs[v], *data.SampleIDs[s], mode,
				float64(modeCount)/float64(nDraws),
				float64(pe)/float64(nDraws), float64(sr1)/float64(nDraws),
				float64(sr2)/float64(nDraws), float64(rd)/float64(nDraws))
		}
	}
}

// writeResamples writes the mean posterior-predictive count per cell and
// channel, for calibration against the observed evidence.
func writeResamples(filename string, data *evidence.Bundle, samples *inference.LatentSamples, resamples *inference.CountResamples) {
	file := internal.FileCreate(filename)
	defer internal.Close(file)
	out := bufio.NewWriter(file)
	defer func() {
		if err := out.Flush(); err != nil {
			log.Panic(err)
		}
	}()

	fmt.Fprintln(out, "#variant\tsample\tpe_obs\tpe_sim\tsr1_obs\tsr1_sim\tsr2_obs\tsr2_sim")
	nDraws := samples.NumDraws
	for v := 0; v < data.NumVariants(); v++ {
		for s := 0; s < data.NumSamples(); s++ {
			var pe, sr1, sr2 float64
			for draw := 0; draw < nDraws; draw++ {
				i := samples.Index(draw, v, s)
				pe += resamples.PE[i]
				sr1 += resamples.SR1[i]
				sr2 += resamples.SR2[i]
			}
			cell := data.Cell(v, s)
			fmt.Fprintf(out, "%v\t%v\t%.0f\t%.2f\t%.0f\t%.2f\t%.0f\t%.2f\n",
				*data.VariantIDs[v], *data.SampleIDs[s],
				data.PE[cell], pe/float64(nDraws),
				data.SR1[cell], sr1/float64(nDraws),
				data.SR2[cell], sr2/float64(nDraws))
		}
	}
}
