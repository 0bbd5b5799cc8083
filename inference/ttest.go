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

// PairedTest is the outcome of a dependent-samples t-test
type PairedTest struct {
	N              int     `json:"n"`
	MeanDifference float64 `json:"meanDifference"`
	T              float64 `json:"t"`
	P              float64 `json:"p"`
	CohensD        float64 `json:"cohensD"`
	Significant    bool    `json:"significant"`
}

// OneSampleTest is the outcome of a one-sample t-test against a reference value
type OneSampleTest struct {
	N           int     `json:"n"`
	Mean        float64 `json:"mean"`
	Reference   float64 `json:"reference"`
	T           float64 `json:"t"`
	P           float64 `json:"p"`
	Significant bool    `json:"significant"`
}

// tTest returns the t statistic and two-sided p-value for a sample mean differing from
// zero. With zero spread the statistic is 0 (p = 1) when the mean is zero and
// infinite (p = 0) otherwise.
func tTest(mean, sd float64, n int) (float64, float64) {
	if sd == 0 {
		if mean == 0 {
			return 0, 1
		}
		return math.Copysign(math.Inf(1), mean), 0
	}

	t := mean / (sd / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}
	return t, p
}

// PairedDifference tests whether the index-paired distributions a and b have different
// means. Pairs where either value is non-finite are dropped. Cohen's d is
// (mean(a) - mean(b)) / sqrt((var(a) + var(b)) / 2) using population variances.
func PairedDifference(a, b []float64) (PairedTest, error) {
	pa, pb, err := finitePairs(a, b)
	if err != nil {
		return PairedTest{}, err
	}

	n := len(pa)
	if n < MinObservations {
		return PairedTest{N: n}, insufficient(n)
	}

	diff := make([]float64, n)
	for idx := range diff {
		diff[idx] = pa[idx] - pb[idx]
	}

	meanDiff, varDiff := stat.MeanVariance(diff, nil)
	t, p := tTest(meanDiff, math.Sqrt(varDiff), n)

	meanA, varA := stat.PopMeanVariance(pa, nil)
	meanB, varB := stat.PopMeanVariance(pb, nil)
	d := 0.0
	if pooled := math.Sqrt((varA + varB) / 2); pooled > 0 {
		d = (meanA - meanB) / pooled
	}

	return PairedTest{
		N:              n,
		MeanDifference: meanDiff,
		T:              t,
		P:              p,
		CohensD:        d,
		Significant:    p < SignificanceLevel,
	}, nil
}

// OneSample tests whether the mean of x differs from reference
func OneSample(x []float64, reference float64) (OneSampleTest, error) {
	vals := finite(x)
	n := len(vals)
	if n < MinObservations {
		return OneSampleTest{N: n, Reference: reference}, insufficient(n)
	}

	mean, variance := stat.MeanVariance(vals, nil)
	t, p := tTest(mean-reference, math.Sqrt(variance), n)

	return OneSampleTest{
		N:           n,
		Mean:        mean,
		Reference:   reference,
		T:           t,
		P:           p,
		Significant: p < SignificanceLevel,
	}, nil
}
