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

package universe

import (
	"math"
	"sort"
	"time"

	"github.com/penny-vault/dartboard/dataframe"
	"github.com/rs/zerolog/log"
)

type cellKey struct {
	date   time.Time
	ticker string
}

// cell accumulates duplicate (date, ticker) observations so they can be averaged
type cell struct {
	retSum float64
	capSum float64
	count  int
}

// builder filters observations and pivots them into a Panel
type builder struct {
	opts  Options
	cells map[cellKey]*cell

	rows        int
	badValue    int
	belowThresh int
}

func newBuilder(opts Options) *builder {
	return &builder{
		opts:  opts,
		cells: make(map[cellKey]*cell),
	}
}

// add records one security-month. Rows with a missing or non-finite return or
// capitalization are dropped, as are rows at or below the investability threshold.
func (b *builder) add(date time.Time, ticker string, ret, mktCap float64) {
	b.rows++

	if ticker == "" || math.IsNaN(ret) || math.IsInf(ret, 0) || math.IsNaN(mktCap) || math.IsInf(mktCap, 0) {
		b.badValue++
		return
	}

	if !(mktCap > b.opts.MinMarketCap) {
		b.belowThresh++
		return
	}

	key := cellKey{date: date, ticker: ticker}
	c, ok := b.cells[key]
	if !ok {
		c = &cell{}
		b.cells[key] = c
	}
	c.retSum += ret
	c.capSum += mktCap
	c.count++
}

// drop counts a row that could not be parsed at all
func (b *builder) drop() {
	b.rows++
	b.badValue++
}

// build pivots the surviving observations into aligned return and capitalization
// frames. Both pivots are taken from the same set of surviving rows so their date
// and ticker sets are identical; that set is the alignment intersection. Gaps are
// filled with zero.
func (b *builder) build() *Panel {
	log.Debug().Int("Rows", b.rows).Int("Invalid", b.badValue).Int("BelowThreshold", b.belowThresh).
		Int("Observations", len(b.cells)).Msg("pivoting universe panel")

	if len(b.cells) == 0 {
		return EmptyPanel()
	}

	dateSet := make(map[time.Time]struct{})
	tickerSet := make(map[string]struct{})
	for key := range b.cells {
		dateSet[key.date] = struct{}{}
		tickerSet[key.ticker] = struct{}{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for dt := range dateSet {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	tickers := make([]string, 0, len(tickerSet))
	for ticker := range tickerSet {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	dateIdx := make(map[time.Time]int, len(dates))
	for idx, dt := range dates {
		dateIdx[dt] = idx
	}

	tickerIdx := make(map[string]int, len(tickers))
	for idx, ticker := range tickers {
		tickerIdx[ticker] = idx
	}

	returns := dataframe.New(dates, tickers)
	caps := dataframe.New(dates, append([]string{}, tickers...))

	for key, c := range b.cells {
		row := dateIdx[key.date]
		col := tickerIdx[key.ticker]
		n := float64(c.count)
		returns.Vals[col][row] = c.retSum / n
		caps.Vals[col][row] = c.capSum / n
	}

	return &Panel{
		Returns:   returns,
		MarketCap: caps,
	}
}
