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
	"strings"
)

// SVType is the class of a structural variant. It determines which
// evidence channels inform the genotype and how many genotype states
// there are.
type SVType int

// The supported structural variant classes.
const (
	Deletion SVType = iota
	Duplication
	Insertion
	Inversion
)

func (svtype SVType) String() string {
	switch svtype {
	case Deletion:
		return "DEL"
	case Duplication:
		return "DUP"
	case Insertion:
		return "INS"
	case Inversion:
		return "INV"
	default:
		return fmt.Sprintf("SVType(%d)", int(svtype))
	}
}

// ParseSVType parses a structural variant class name as it appears in VCF
// ALT/SVTYPE fields.
func ParseSVType(s string) (SVType, error) {
	switch strings.ToUpper(s) {
	case "DEL":
		return Deletion, nil
	case "DUP":
		return Duplication, nil
	case "INS":
		return Insertion, nil
	case "INV":
		return Inversion, nil
	default:
		return 0, &ConfigError{Message: fmt.Sprintf("SV type %v not supported for genotyping", s)}
	}
}

// A ConfigError reports an unsupported model configuration. It is
// detected at model construction, never during inference.
type ConfigError struct {
	Message string
}

func (err *ConfigError) Error() string {
	return err.Message
}

// The names of the continuous latent sites. The pi sites are cohort-level
// support probabilities per evidence channel, the lambda sites cohort-level
// overdispersion scales, the phi sites per-variant effect sizes, the eps
// sites per-variant baseline noise rates, and the eta sites per-variant
// allele-frequency rates that shape the genotype-state prior.
const (
	SitePiPE      = "pi_pe"
	SitePiSR1     = "pi_sr1"
	SitePiSR2     = "pi_sr2"
	SitePiRD      = "pi_rd"
	SiteLambdaPE  = "lambda_pe"
	SiteLambdaSR1 = "lambda_sr1"
	SiteLambdaSR2 = "lambda_sr2"
	SiteEpsPE     = "eps_pe"
	SiteEpsSR1    = "eps_sr1"
	SiteEpsSR2    = "eps_sr2"
	SitePhiPE     = "phi_pe"
	SitePhiSR1    = "phi_sr1"
	SitePhiSR2    = "phi_sr2"
	SiteEtaQ      = "eta_q"
	SiteEtaR      = "eta_r"
)

// SiteOnUnitInterval reports whether the latent site takes values in (0,1)
// rather than (0,inf).
func SiteOnUnitInterval(site string) bool {
	return strings.HasPrefix(site, "pi_")
}

// Hyperparameters are the fixed prior scales of the model. The mu
// parameters scale unit-exponential draws, the var parameters are the
// log-scale standard deviations of the phi priors.
type Hyperparameters struct {
	MuEpsPE, MuEpsSR1, MuEpsSR2          float64
	MuLambdaPE, MuLambdaSR1, MuLambdaSR2 float64
	VarPhiPE, VarPhiSR1, VarPhiSR2       float64
	MuEtaQ, MuEtaR                       float64
}

// DefaultHyperparameters returns the standard prior scales.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		MuEpsPE: 0.1, MuEpsSR1: 0.1, MuEpsSR2: 0.1,
		MuLambdaPE: 0.1, MuLambdaSR1: 0.1, MuLambdaSR2: 0.1,
		VarPhiPE: 0.1, VarPhiSR1: 0.1, VarPhiSR2: 0.1,
		MuEtaQ: 0.1, MuEtaR: 0.01,
	}
}

// A Loss is the append-only trace of the training loop, owned by the
// caller that runs the loop. There must be no concurrent writers.
type Loss struct {
	Epoch []int
	ELBO  []float64
}

// Append records one training epoch.
func (loss *Loss) Append(epoch int, elbo float64) {
	loss.Epoch = append(loss.Epoch, epoch)
	loss.ELBO = append(loss.ELBO, elbo)
}

// A Model is the generative model for one structural variant class: a
// joint density over cohort-level parameters, per-variant parameters,
// per-(variant,sample) genotype states, and the observed evidence counts.
type Model struct {
	SVType SVType
	K      int
	Hyper  Hyperparameters
	Loss   *Loss

	globalSites  []string
	variantSites []string
}

// New creates a model for the given variant class. Pass k = 0 to derive
// the number of genotype states from the class (3, or 5 for duplications).
// A nil loss starts an empty loss trace.
func New(svtype SVType, k int, hyper Hyperparameters, loss *Loss) (*Model, error) {
	if k == 0 {
		switch svtype {
		case Deletion, Insertion, Inversion:
			k = 3
		case Duplication:
			k = 5
		default:
			return nil, &ConfigError{Message: fmt.Sprintf("SV type %v not supported for genotyping", svtype)}
		}
	}
	if k != 3 && k != 5 {
		return nil, &ConfigError{Message: fmt.Sprintf("unsupported number of states K = %d", k)}
	}
	if loss == nil {
		loss = &Loss{}
	}

	m := &Model{
		SVType: svtype,
		K:      k,
		Hyper:  hyper,
		Loss:   loss,
	}

	switch svtype {
	case Deletion, Duplication:
		m.globalSites = []string{SitePiSR1, SitePiSR2, SitePiPE, SitePiRD, SiteLambdaPE, SiteLambdaSR1, SiteLambdaSR2}
		m.variantSites = []string{SiteEpsPE, SiteEpsSR1, SiteEpsSR2, SitePhiPE, SitePhiSR1, SitePhiSR2}
	case Inversion:
		m.globalSites = []string{SitePiSR1, SitePiSR2, SitePiPE, SiteLambdaPE, SiteLambdaSR1, SiteLambdaSR2}
		m.variantSites = []string{SiteEpsPE, SiteEpsSR1, SiteEpsSR2, SitePhiPE, SitePhiSR1, SitePhiSR2}
	case Insertion:
		m.globalSites = []string{SitePiSR1, SitePiSR2, SiteLambdaSR1, SiteLambdaSR2}
		m.variantSites = []string{SiteEpsSR1, SiteEpsSR2, SitePhiSR1, SitePhiSR2}
	default:
		return nil, &ConfigError{Message: fmt.Sprintf("SV type %v not supported for genotyping", svtype)}
	}
	m.variantSites = append(m.variantSites, SiteEtaQ)
	if k == 5 {
		m.variantSites = append(m.variantSites, SiteEtaR)
	}
	return m, nil
}

// HasPE reports whether the class uses paired-end evidence.
func (m *Model) HasPE() bool {
	return m.SVType != Insertion
}

// HasRD reports whether read-depth evidence is meaningful for the class.
func (m *Model) HasRD() bool {
	return m.SVType == Deletion || m.SVType == Duplication
}

// GlobalSites returns the names of the cohort-level latent sites.
func (m *Model) GlobalSites() []string {
	return m.globalSites
}

// VariantSites returns the names of the per-variant latent sites.
func (m *Model) VariantSites() []string {
	return m.variantSites
}

// Sites returns the names of all continuous latent sites of the class.
func (m *Model) Sites() []string {
	sites := make([]string, 0, len(m.globalSites)+len(m.variantSites))
	sites = append(sites, m.globalSites...)
	return append(sites, m.variantSites...)
}

// siteScale returns the hyperparameter that scales the unit-exponential
// draw of the site. Sites without an exponential prior have scale 1.
func (m *Model) siteScale(site string) float64 {
	switch site {
	case SiteLambdaPE:
		return m.Hyper.MuLambdaPE
	case SiteLambdaSR1:
		return m.Hyper.MuLambdaSR1
	case SiteLambdaSR2:
		return m.Hyper.MuLambdaSR2
	case SiteEpsPE:
		return m.Hyper.MuEpsPE
	case SiteEpsSR1:
		return m.Hyper.MuEpsSR1
	case SiteEpsSR2:
		return m.Hyper.MuEpsSR2
	case SiteEtaQ:
		return m.Hyper.MuEtaQ
	case SiteEtaR:
		return m.Hyper.MuEtaR
	default:
		return 1
	}
}

// UnconstrainedPriorMoments returns the mean and standard deviation of a
// site's prior after mapping it to its unconstrained coordinate: the
// logit of a uniform draw is standard logistic, the log of a
// unit-exponential draw is a negated standard Gumbel, and the log of a
// log-normal draw is normal.
func (m *Model) UnconstrainedPriorMoments(site string) (mean, std float64) {
	if SiteOnUnitInterval(site) {
		return 0, math.Pi / math.Sqrt(3)
	}
	if sigma := m.phiSigma(site); sigma > 0 {
		return 0, sigma
	}
	// Euler-Mascheroni mean for log of a unit exponential.
	return -0.5772156649015329, math.Pi / math.Sqrt(6)
}

// phiSigma returns the log-scale standard deviation of a phi site prior,
// or 0 for any other site.
func (m *Model) phiSigma(site string) float64 {
	switch site {
	case SitePhiPE:
		return m.Hyper.VarPhiPE
	case SitePhiSR1:
		return m.Hyper.VarPhiSR1
	case SitePhiSR2:
		return m.Hyper.VarPhiSR2
	default:
		return 0
	}
}
