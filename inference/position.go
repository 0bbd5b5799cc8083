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

package inference

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

const DefaultBootstrapSamples = 1000

// Position locates a benchmark value within a result distribution
type Position struct {
	Benchmark  float64 `json:"benchmark"`
	Percentile float64 `json:"percentile"`
	WinRate    float64 `json:"winRate"`
}

// PercentileRank is the percentage of x at or below value
func PercentileRank(x []float64, value float64) (float64, error) {
	vals := finite(x)
	if len(vals) < MinObservations {
		return 0, insufficient(len(vals))
	}
	count := 0
	for _, v := range vals {
		if v <= value {
			count++
		}
	}
	return 100 * float64(count) / float64(len(vals)), nil
}

// WinRate is the percentage of x at or above value: how often a random portfolio
// matched or beat the benchmark
func WinRate(x []float64, value float64) (float64, error) {
	vals := finite(x)
	if len(vals) < MinObservations {
		return 0, insufficient(len(vals))
	}
	count := 0
	for _, v := range vals {
		if v >= value {
			count++
		}
	}
	return 100 * float64(count) / float64(len(vals)), nil
}

// PairedWinRate is the percentage of pairs where a is strictly greater than b
func PairedWinRate(a, b []float64) (float64, error) {
	pa, pb, err := finitePairs(a, b)
	if err != nil {
		return 0, err
	}
	if len(pa) < MinObservations {
		return 0, insufficient(len(pa))
	}
	count := 0
	for idx := range pa {
		if pa[idx] > pb[idx] {
			count++
		}
	}
	return 100 * float64(count) / float64(len(pa)), nil
}

// Locate returns the percentile rank and win rate of benchmark within x
func Locate(x []float64, benchmark float64) (Position, error) {
	pct, err := PercentileRank(x, benchmark)
	if err != nil {
		return Position{Benchmark: benchmark}, err
	}
	win, err := WinRate(x, benchmark)
	if err != nil {
		return Position{Benchmark: benchmark}, err
	}
	return Position{
		Benchmark:  benchmark,
		Percentile: pct,
		WinRate:    win,
	}, nil
}

// BootstrapCI is a percentile bootstrap confidence interval for the mean of x. nBoot
// resamples of len(x) values are drawn with replacement using src; nBoot <= 0 uses
// DefaultBootstrapSamples.
func BootstrapCI(x []float64, nBoot int, confidence float64, src rand.Source) (float64, float64, error) {
	if !(confidence > 0 && confidence < 1) {
		return 0, 0, fmt.Errorf("%w: %g", ErrInvalidConfidence, confidence)
	}

	vals := finite(x)
	n := len(vals)
	if n < MinObservations {
		return 0, 0, insufficient(n)
	}
	if nBoot <= 0 {
		nBoot = DefaultBootstrapSamples
	}

	rnd := rand.New(src)
	means := make([]float64, nBoot)
	sample := make([]float64, n)
	for b := range means {
		for idx := range sample {
			sample[idx] = vals[rnd.Intn(n)]
		}
		means[b] = stat.Mean(sample, nil)
	}

	sorted := sortedCopy(means)
	lower := percentile(sorted, (1-confidence)/2*100)
	upper := percentile(sorted, (1+confidence)/2*100)
	return lower, upper, nil
}
