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

// Package performance computes the annualized risk-adjusted return (Sharpe ratio)
// of a series of monthly returns.
//
// Volatility is always the sample standard deviation (n-1 denominator) of the
// monthly returns scaled by sqrt(12); the same convention is used for simulated
// portfolios and for benchmarks.
package performance

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// PeriodsPerYear is the number of return observations per year (monthly data)
	PeriodsPerYear = 12

	// MinPeriods is the fewest observations for which a ratio is computed; shorter
	// series yield 0
	MinPeriods = 6
)

var sqrtPeriodsPerYear = math.Sqrt(PeriodsPerYear)

// SharpeRatio The ratio is the average return earned in excess of the risk-free
// rate per unit of volatility or total risk.
//
// Sharpe = (Rp - Rf) / (annualized std. dev)
//
// Rp is the geometrically annualized return of rets and rf is an annual rate. Series
// shorter than MinPeriods and series with zero volatility return 0.
func SharpeRatio(rets []float64, rf float64) float64 {
	n := len(rets)
	if n < MinPeriods {
		return 0.0
	}

	// compound returns and check for a constant series in one pass; a constant
	// series has zero volatility even if rounding in the variance says otherwise
	growth := 1.0
	constant := true
	for _, r := range rets {
		growth *= 1.0 + r
		if r != rets[0] {
			constant = false
		}
	}

	if constant {
		return 0.0
	}

	vol := stat.StdDev(rets, nil) * sqrtPeriodsPerYear
	if vol == 0 || math.IsNaN(vol) {
		return 0.0
	}

	return (annualize(growth, n) - rf) / vol
}

// AnnualizedReturn compounds rets and converts the result to an annual rate:
// prod(1+r)^(12/n) - 1
func AnnualizedReturn(rets []float64) float64 {
	n := len(rets)
	if n == 0 {
		return 0.0
	}

	growth := 1.0
	for _, r := range rets {
		growth *= 1.0 + r
	}

	return annualize(growth, n)
}

// AnnualizedVolatility is the sample standard deviation of rets scaled by sqrt(12)
func AnnualizedVolatility(rets []float64) float64 {
	if len(rets) < 2 {
		return 0.0
	}
	return stat.StdDev(rets, nil) * sqrtPeriodsPerYear
}

// ArithmeticAnnualReturn is the mean periodic return multiplied by 12
func ArithmeticAnnualReturn(rets []float64) float64 {
	if len(rets) == 0 {
		return 0.0
	}
	return stat.Mean(rets, nil) * PeriodsPerYear
}

// annualize converts total growth over n monthly periods into an annual rate. A
// growth of zero or less means the capital was wiped out, which is reported as -100%
func annualize(growth float64, n int) float64 {
	if growth <= 0 {
		return -1.0
	}
	return math.Pow(growth, PeriodsPerYear/float64(n)) - 1.0
}
