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

package benchmark

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/dataframe"
	"github.com/penny-vault/dartboard/performance"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRiskFreeRate = 0.03

	// RiskFreeSeries is the FRED 3-month treasury bill secondary market rate, in percent
	RiskFreeSeries = "DTB3"
)

var (
	ErrNoData       = errors.New("no data returned")
	ErrInvalidPrice = errors.New("invalid price")
	ErrStatusCode   = errors.New("HTTP request returned invalid status code")
)

// DefaultTickers are the reference indexes the simulated distributions are compared to
var DefaultTickers = []string{"SPY", "IWM"}

// Descriptions of the default reference indexes
var Descriptions = map[string]string{
	"SPY": "S&P 500",
	"IWM": "Russell 2000",
}

// Rate is the outcome of a risk-free rate lookup. When the lookup fails Value holds
// the fallback rate, Fallback is true, and Err records why.
type Rate struct {
	Value        float64 `json:"value"`
	Observations int     `json:"observations"`
	Fallback     bool    `json:"fallback"`
	Err          error   `json:"-"`
}

// Reference is the outcome of a benchmark lookup. When data is unavailable Sharpe and
// AnnualReturn are 0, Fallback is true, and Err records why.
type Reference struct {
	Ticker       string  `json:"ticker"`
	Description  string  `json:"description,omitempty"`
	Sharpe       float64 `json:"sharpe"`
	AnnualReturn float64 `json:"annualReturn"`
	Months       int     `json:"months"`
	Fallback     bool    `json:"fallback"`
	Err          error   `json:"-"`
}

// Adapter supplies the external reference data a simulation is interpreted against.
// Implementations never fail: problems are reported through the Fallback/Err fields.
type Adapter interface {
	RiskFreeRate(ctx context.Context, begin, end time.Time) Rate
	Performance(ctx context.Context, ticker string, begin, end time.Time, rf float64) Reference
}

// FallbackRate is the Rate returned when the risk-free series is unavailable
func FallbackRate(value float64, err error) Rate {
	return Rate{
		Value:    value,
		Fallback: true,
		Err:      err,
	}
}

// FallbackReference is the Reference returned when a benchmark is unavailable
func FallbackReference(ticker string, err error) Reference {
	return Reference{
		Ticker:      ticker,
		Description: Descriptions[ticker],
		Fallback:    true,
		Err:         err,
	}
}

// Evaluate computes a benchmark's Sharpe ratio and arithmetic annual return from its
// monthly returns
func Evaluate(ticker string, monthly []float64, rf float64) Reference {
	if len(monthly) == 0 {
		return FallbackReference(ticker, ErrNoData)
	}
	return Reference{
		Ticker:       ticker,
		Description:  Descriptions[ticker],
		Sharpe:       performance.SharpeRatio(monthly, rf),
		AnnualReturn: performance.ArithmeticAnnualReturn(monthly),
		Months:       len(monthly),
	}
}

// MonthlyReturns resamples a daily close series to the last close of each calendar
// month and returns the month-over-month percent changes. Non-finite or non-positive
// closes are ignored. Input need not be sorted.
func MonthlyReturns(dates []time.Time, closes []float64) []float64 {
	n := len(dates)
	if len(closes) < n {
		n = len(closes)
	}

	order := make([]int, n)
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool { return dates[order[i]].Before(dates[order[j]]) })

	sorted := make([]time.Time, n)
	for idx, src := range order {
		sorted[idx] = dates[src]
	}
	df := dataframe.New(sorted, []string{"close"})
	for idx, src := range order {
		df.Vals[0][idx] = closes[src]
	}
	df = df.Filter(validClose)

	monthEnd := make([]float64, 0, df.Len()/20+1)
	var current time.Time
	for row, date := range df.Index {
		key := common.MonthKey(date)
		if len(monthEnd) == 0 || !key.Equal(current) {
			monthEnd = append(monthEnd, df.Vals[0][row])
			current = key
			continue
		}
		monthEnd[len(monthEnd)-1] = df.Vals[0][row]
	}

	if len(monthEnd) < 2 {
		return []float64{}
	}

	rets := make([]float64, len(monthEnd)-1)
	for idx := 1; idx < len(monthEnd); idx++ {
		rets[idx-1] = monthEnd[idx]/monthEnd[idx-1] - 1
	}
	return rets
}

func validClose(c float64) bool {
	return c > 0 && !math.IsInf(c, 0)
}

// Compare fetches several benchmarks concurrently and returns them in the order of
// tickers
func Compare(ctx context.Context, adapter Adapter, tickers []string, begin, end time.Time, rf float64) []Reference {
	refs := make([]Reference, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	for idx, ticker := range tickers {
		idx, ticker := idx, ticker
		g.Go(func() error {
			refs[idx] = adapter.Performance(gctx, ticker, begin, end, rf)
			return nil
		})
	}

	// Performance never returns an error; failures are carried in each Reference
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("benchmark comparison failed")
	}

	return refs
}
