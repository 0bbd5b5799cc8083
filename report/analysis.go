// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"errors"
	"math"
	"time"

	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/inference"
	"github.com/penny-vault/dartboard/simulation"
	"github.com/rs/zerolog/log"
)

// Placement locates one benchmark within both simulated distributions
type Placement struct {
	Reference benchmark.Reference `json:"reference"`

	EqualWeight inference.Position `json:"equalWeight"`
	CapWeight   inference.Position `json:"capWeight"`

	EqualWeightTest inference.OneSampleTest `json:"equalWeightTest"`
	CapWeightTest   inference.OneSampleTest `json:"capWeightTest"`
}

// Analysis is a simulation result together with everything inferred from it
type Analysis struct {
	RunID         string        `json:"runId"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Trials        int           `json:"trials"`
	PortfolioSize int           `json:"portfolioSize"`
	Universe      int           `json:"universe"`
	Periods       int           `json:"periods"`
	Seed          uint64        `json:"seed"`
	Elapsed       time.Duration `json:"elapsed"`

	RiskFree benchmark.Rate `json:"riskFree"`

	EqualWeight inference.Summary    `json:"equalWeight"`
	CapWeight   inference.Summary    `json:"capWeight"`
	Paired      inference.PairedTest `json:"paired"`

	// EqualWeightWinRate is the percentage of trials where equal weighting beat
	// capitalization weighting on the same draw
	EqualWeightWinRate float64 `json:"equalWeightWinRate"`

	Benchmarks []Placement `json:"benchmarks"`
	Samples    [][]string  `json:"samples"`

	// Warnings lists statistics that could not be computed
	Warnings []string `json:"warnings,omitempty"`
}

// Analyze runs the inference layer over a simulation result. Statistics that cannot be
// computed are left zero and explained in Warnings; only an insufficient-data or
// length error is tolerated, anything else is returned.
func Analyze(res *simulation.Result, rf benchmark.Rate, refs []benchmark.Reference) (*Analysis, error) {
	a := &Analysis{
		RunID:         res.RunID.String(),
		Start:         res.Start,
		End:           res.End,
		Trials:        res.Trials,
		PortfolioSize: res.PortfolioSize,
		Universe:      res.Universe,
		Periods:       res.Periods,
		Seed:          res.Seed,
		Elapsed:       res.Elapsed,
		RiskFree:      rf,
		Samples:       res.Samples,
		Benchmarks:    make([]Placement, 0, len(refs)),
	}

	if rf.Fallback {
		a.warn("risk-free rate", rf.Err)
	}

	var err error
	if a.EqualWeight, err = inference.Summarize(res.EqualWeight); err != nil {
		if err = a.tolerate("equal-weight summary", err); err != nil {
			return nil, err
		}
	}
	if a.CapWeight, err = inference.Summarize(res.CapWeight); err != nil {
		if err = a.tolerate("cap-weight summary", err); err != nil {
			return nil, err
		}
	}
	if a.Paired, err = inference.PairedDifference(res.EqualWeight, res.CapWeight); err != nil {
		if err = a.tolerate("paired test", err); err != nil {
			return nil, err
		}
	}
	if a.EqualWeightWinRate, err = inference.PairedWinRate(res.EqualWeight, res.CapWeight); err != nil {
		if err = a.tolerate("paired win rate", err); err != nil {
			return nil, err
		}
	}

	for _, ref := range refs {
		p := Placement{Reference: ref}
		if ref.Fallback {
			a.warn(ref.Ticker, ref.Err)
		}

		if p.EqualWeight, err = inference.Locate(res.EqualWeight, ref.Sharpe); err != nil {
			if err = a.tolerate(ref.Ticker+" equal-weight position", err); err != nil {
				return nil, err
			}
		}
		if p.CapWeight, err = inference.Locate(res.CapWeight, ref.Sharpe); err != nil {
			if err = a.tolerate(ref.Ticker+" cap-weight position", err); err != nil {
				return nil, err
			}
		}
		if p.EqualWeightTest, err = inference.OneSample(res.EqualWeight, ref.Sharpe); err != nil {
			if err = a.tolerate(ref.Ticker+" equal-weight test", err); err != nil {
				return nil, err
			}
		}
		if p.CapWeightTest, err = inference.OneSample(res.CapWeight, ref.Sharpe); err != nil {
			if err = a.tolerate(ref.Ticker+" cap-weight test", err); err != nil {
				return nil, err
			}
		}

		clampInf(&p.EqualWeightTest.T)
		clampInf(&p.CapWeightTest.T)
		a.Benchmarks = append(a.Benchmarks, p)
	}

	clampInf(&a.Paired.T)
	return a, nil
}

// clampInf replaces an infinite t statistic (zero spread) with the largest finite
// value of the same sign; JSON cannot represent infinities
func clampInf(v *float64) {
	if math.IsInf(*v, 1) {
		*v = math.MaxFloat64
	} else if math.IsInf(*v, -1) {
		*v = -math.MaxFloat64
	}
}

func (a *Analysis) warn(what string, err error) {
	msg := what + " unavailable"
	if err != nil {
		msg += ": " + err.Error()
	}
	a.Warnings = append(a.Warnings, msg)
}

func (a *Analysis) tolerate(what string, err error) error {
	if errors.Is(err, inference.ErrInsufficientData) {
		log.Warn().Err(err).Str("Statistic", what).Msg("statistic not computed")
		a.warn(what, err)
		return nil
	}
	return err
}
