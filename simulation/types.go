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

package simulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyPanel        = errors.New("universe panel is empty")
	ErrNonPositiveTrials = errors.New("trial count must be positive")
	ErrPortfolioTooLarge = errors.New("portfolio size must be positive and smaller than the universe")
	ErrWindowTooShort    = errors.New("window is shorter than the minimum number of periods")
)

const (
	DefaultProgressEvery = 25
	SampleCount          = 5
)

// Scheme is a rule for turning a set of selected tickers into per-period weights
type Scheme int

const (
	EqualWeight Scheme = iota
	CapWeight
)

func (s Scheme) String() string {
	switch s {
	case EqualWeight:
		return "equal-weight"
	case CapWeight:
		return "cap-weight"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ProgressFunc receives the fraction of trials completed, in [0, 1]. It is always
// called from the goroutine that called Run.
type ProgressFunc func(fraction float64)

// Params configures a simulation run
type Params struct {
	Trials        int
	PortfolioSize int
	RiskFreeRate  float64

	// Seed for the draw generator; 0 seeds from the clock. The seed actually used is
	// reported in Result.Seed.
	Seed uint64

	// Workers is the number of goroutines evaluating trials; 0 means runtime.NumCPU()
	Workers int

	// ProgressEvery is the number of trials between progress reports; 0 means 25
	ProgressEvery int
}

// Result holds the paired Sharpe ratio distributions of a run. EqualWeight[i] and
// CapWeight[i] come from the same draw.
type Result struct {
	RunID uuid.UUID

	EqualWeight []float64
	CapWeight   []float64

	// Samples holds the tickers drawn in the first five trials, in draw order
	Samples [][]string

	Trials        int
	PortfolioSize int
	Universe      int
	Periods       int
	RiskFreeRate  float64
	Seed          uint64
	Start         time.Time
	End           time.Time
	Elapsed       time.Duration
}

// Distribution returns the result distribution for the given scheme
func (r *Result) Distribution(s Scheme) []float64 {
	if s == CapWeight {
		return r.CapWeight
	}
	return r.EqualWeight
}
