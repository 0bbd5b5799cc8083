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

// Package inference summarizes simulated Sharpe ratio distributions and tests them
// against each other and against benchmark values. Every function drops non-finite
// values first and refuses to compute anything from fewer than MinObservations
// remaining values.
package inference

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MinObservations is the smallest sample considered large enough to summarize
const MinObservations = 10

// SignificanceLevel is the p-value below which a test is flagged significant
const SignificanceLevel = 0.05

var (
	ErrInsufficientData  = errors.New("insufficient data")
	ErrLengthMismatch    = errors.New("paired distributions have different lengths")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// InsufficientDataError reports how many finite values were available
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %d finite values, need at least %d", ErrInsufficientData, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func insufficient(have int) error {
	return &InsufficientDataError{Have: have, Need: MinObservations}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finite returns a copy of x without NaN or infinite values
func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// finitePairs keeps the index-paired values where both a and b are finite
func finitePairs(a, b []float64) ([]float64, []float64, error) {
	if len(a) != len(b) {
		return nil, nil, fmt.Errorf("%w: %d and %d", ErrLengthMismatch, len(a), len(b))
	}
	outA := make([]float64, 0, len(a))
	outB := make([]float64, 0, len(b))
	for idx := range a {
		if isFinite(a[idx]) && isFinite(b[idx]) {
			outA = append(outA, a[idx])
			outB = append(outB, b[idx])
		}
	}
	return outA, outB, nil
}

// percentile of sorted data by linear interpolation between closest ranks; p is in
// [0, 100]
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := (float64(n) - 1) * p / 100
	lo := math.Floor(h)
	idx := int(lo)
	if idx >= n-1 {
		return sorted[n-1]
	}
	return sorted[idx] + (h-lo)*(sorted[idx+1]-sorted[idx])
}

func sortedCopy(x []float64) []float64 {
	out := append([]float64(nil), x...)
	sort.Float64s(out)
	return out
}
