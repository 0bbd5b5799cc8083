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
	"github.com/penny-vault/dartboard/performance"
	"github.com/penny-vault/dartboard/universe"
	"gonum.org/v1/gonum/floats"
)

// matrices are the read-only per-ticker columns shared by every trial
type matrices struct {
	rets     [][]float64
	lagCaps  [][]float64
	weighted [][]float64
	periods  int
}

// prepare lags the capitalization matrix one period (the first period gets zero
// capitalization) and pre-multiplies it with the returns
func prepare(panel *universe.Panel) *matrices {
	lagged := panel.MarketCap.Lag(1).Fill(0)

	m := &matrices{
		rets:     panel.Returns.Vals,
		lagCaps:  lagged.Vals,
		weighted: make([][]float64, len(panel.Returns.Vals)),
		periods:  panel.NumPeriods(),
	}

	for idx, col := range panel.Returns.Vals {
		m.weighted[idx] = make([]float64, len(col))
		floats.MulTo(m.weighted[idx], col, m.lagCaps[idx])
	}

	return m
}

// kernel evaluates trials using its own scratch buffers; one per worker
type kernel struct {
	m  *matrices
	rf float64

	ew     []float64
	cw     []float64
	capSum []float64
}

func newKernel(m *matrices, rf float64) *kernel {
	return &kernel{
		m:      m,
		rf:     rf,
		ew:     make([]float64, m.periods),
		cw:     make([]float64, m.periods),
		capSum: make([]float64, m.periods),
	}
}

// series builds the equal-weight and cap-weight portfolio return series for the
// selected tickers. The returned slices are overwritten by the next call.
func (k *kernel) series(idxs []int) (ew, cw []float64) {
	zero(k.ew)
	zero(k.cw)
	zero(k.capSum)

	for _, idx := range idxs {
		floats.Add(k.ew, k.m.rets[idx])
		floats.Add(k.cw, k.m.weighted[idx])
		floats.Add(k.capSum, k.m.lagCaps[idx])
	}

	floats.Scale(1/float64(len(idxs)), k.ew)

	for t, total := range k.capSum {
		if total > 0 {
			k.cw[t] /= total
		} else {
			k.cw[t] = 0
		}
	}

	return k.ew, k.cw
}

// trial returns the equal-weight and cap-weight Sharpe ratios of one draw
func (k *kernel) trial(idxs []int) (float64, float64) {
	ew, cw := k.series(idxs)
	return performance.SharpeRatio(ew, k.rf), performance.SharpeRatio(cw, k.rf)
}

// CapWeights converts one period's lagged capitalizations of the selected tickers into
// weights proportional to capitalization. The weights sum to 1, or are all zero when
// the total capitalization is zero.
func CapWeights(lagCaps []float64) []float64 {
	weights := make([]float64, len(lagCaps))
	total := floats.Sum(lagCaps)
	if total <= 0 {
		return weights
	}
	floats.ScaleTo(weights, 1/total, lagCaps)
	return weights
}

func zero(x []float64) {
	for idx := range x {
		x[idx] = 0
	}
}
