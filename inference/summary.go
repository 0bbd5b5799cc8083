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
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Summary describes one result distribution
type Summary struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stdDev"`
	StdErr   float64 `json:"stdErr"`
	CI95Low  float64 `json:"ci95Low"`
	CI95High float64 `json:"ci95High"`
	P5       float64 `json:"p5"`
	P25      float64 `json:"p25"`
	Median   float64 `json:"median"`
	P75      float64 `json:"p75"`
	P95      float64 `json:"p95"`
}

// Summarize computes the mean, sample standard deviation, standard error, Student's t
// 95% confidence interval for the mean, and the 5/25/50/75/95th percentiles of x
func Summarize(x []float64) (Summary, error) {
	vals := finite(x)
	n := len(vals)
	if n < MinObservations {
		return Summary{N: n}, insufficient(n)
	}

	mean := stat.Mean(vals, nil)
	sd := 0.0
	if n > 1 {
		sd = stat.StdDev(vals, nil)
	}
	se := sd / math.Sqrt(float64(n))

	tCrit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.975)

	sorted := sortedCopy(vals)
	return Summary{
		N:        n,
		Mean:     mean,
		StdDev:   sd,
		StdErr:   se,
		CI95Low:  mean - tCrit*se,
		CI95High: mean + tCrit*se,
		P5:       percentile(sorted, 5),
		P25:      percentile(sorted, 25),
		Median:   percentile(sorted, 50),
		P75:      percentile(sorted, 75),
		P95:      percentile(sorted, 95),
	}, nil
}
