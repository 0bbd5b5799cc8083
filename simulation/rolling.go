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
	"context"
	"fmt"
	"time"

	"github.com/penny-vault/dartboard/performance"
	"github.com/penny-vault/dartboard/universe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

const DefaultStepMonths = 12

// RollingParams configures a rolling-window analysis. Each window is WindowYears*12
// periods long and successive windows start StepMonths periods apart.
type RollingParams struct {
	Params

	WindowYears int
	StepMonths  int
}

// Window summarizes one rolling-window simulation
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	EqualWeightMean float64 `json:"equalWeightMean"`
	CapWeightMean   float64 `json:"capWeightMean"`

	// EqualWeightWinRate is the percentage of trials where equal weighting beat
	// capitalization weighting
	EqualWeightWinRate float64 `json:"equalWeightWinRate"`
}

// Rolling runs a simulation over successive windows of the panel to show how the
// equal-weight versus cap-weight comparison changes through time. A window starts
// every StepMonths periods as long as a full window fits strictly before the last
// period. progress, if not nil, receives the fraction of windows completed.
func Rolling(ctx context.Context, panel *universe.Panel, params RollingParams, progress ProgressFunc) ([]Window, error) {
	if panel.Empty() {
		return nil, ErrEmptyPanel
	}
	if params.StepMonths <= 0 {
		params.StepMonths = DefaultStepMonths
	}

	windowLen := params.WindowYears * performance.PeriodsPerYear
	if windowLen < performance.MinPeriods {
		return nil, fmt.Errorf("%w: window of %d years", ErrWindowTooShort, params.WindowYears)
	}

	dates := panel.Dates()
	starts := make([]int, 0, len(dates)/params.StepMonths+1)
	for start := 0; start < len(dates)-windowLen; start += params.StepMonths {
		starts = append(starts, start)
	}

	log.Info().Int("WindowYears", params.WindowYears).Int("Windows", len(starts)).Int("Periods", len(dates)).Msg("starting rolling analysis")

	windows := make([]Window, 0, len(starts))
	for num, start := range starts {
		end := start + windowLen - 1
		sub := panel.Trim(dates[start], dates[end])

		windowParams := params.Params
		if windowParams.Seed != 0 {
			windowParams.Seed += uint64(num)
		}

		res, err := Run(ctx, sub, windowParams, nil)
		if err != nil {
			return nil, fmt.Errorf("window %s to %s: %w", dates[start].Format("2006-01-02"), dates[end].Format("2006-01-02"), err)
		}

		wins := 0
		for idx := range res.EqualWeight {
			if res.EqualWeight[idx] > res.CapWeight[idx] {
				wins++
			}
		}

		windows = append(windows, Window{
			Start:              dates[start],
			End:                dates[end],
			EqualWeightMean:    stat.Mean(res.EqualWeight, nil),
			CapWeightMean:      stat.Mean(res.CapWeight, nil),
			EqualWeightWinRate: 100 * float64(wins) / float64(len(res.EqualWeight)),
		})

		if progress != nil {
			progress(float64(num+1) / float64(len(starts)))
		}
	}

	return windows, nil
}
