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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/dartboard/dataframe"
)

var (
	ErrMissingColumn  = errors.New("required column not found")
	ErrUnknownCapUnit = errors.New("unknown capitalization unit")
	ErrNoObservations = errors.New("no observations survived filtering")
)

// CapUnit is the number of dollars represented by one unit of the capitalization
// column. CRSP monthly files store market capitalization in thousands of dollars.
// The unit never rescales data; it only documents what MinMarketCap means.
type CapUnit float64

const (
	Dollars   CapUnit = 1
	Thousands CapUnit = 1_000
	Millions  CapUnit = 1_000_000
)

// ParseCapUnit converts a configuration string ("dollars", "thousands", "millions")
// into a CapUnit
func ParseCapUnit(s string) (CapUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dollars", "units", "1":
		return Dollars, nil
	case "thousands", "1000", "":
		return Thousands, nil
	case "millions", "1000000":
		return Millions, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCapUnit, s)
	}
}

func (u CapUnit) String() string {
	switch u {
	case Dollars:
		return "dollars"
	case Thousands:
		return "thousands"
	case Millions:
		return "millions"
	default:
		return fmt.Sprintf("x%g", float64(u))
	}
}

// Options configures how a raw security-month table is turned into a Panel
type Options struct {
	// MinMarketCap is the investability threshold in the data's native
	// capitalization units; rows with a capitalization at or below it are dropped
	MinMarketCap float64

	// CapUnit documents the unit of the capitalization column
	CapUnit CapUnit

	DateColumn   string
	TickerColumn string
	ReturnColumn string
	CapColumn    string
}

// DefaultOptions matches the CRSP monthly export: `mkt_cap` in thousands of dollars
// and a 10,000 unit (≈ $10M) threshold
func DefaultOptions() Options {
	return Options{
		MinMarketCap: 10_000,
		CapUnit:      Thousands,
		DateColumn:   "DATE",
		TickerColumn: "TICKER",
		ReturnColumn: "total_ret",
		CapColumn:    "mkt_cap",
	}
}

// ThresholdDollars is the dollar value MinMarketCap corresponds to under CapUnit
func (o Options) ThresholdDollars() float64 {
	unit := o.CapUnit
	if unit == 0 {
		unit = Thousands
	}
	return o.MinMarketCap * float64(unit)
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CapUnit == 0 {
		o.CapUnit = def.CapUnit
	}
	if o.DateColumn == "" {
		o.DateColumn = def.DateColumn
	}
	if o.TickerColumn == "" {
		o.TickerColumn = def.TickerColumn
	}
	if o.ReturnColumn == "" {
		o.ReturnColumn = def.ReturnColumn
	}
	if o.CapColumn == "" {
		o.CapColumn = def.CapColumn
	}
	return o
}

// Panel is the investable universe: aligned monthly returns and market
// capitalizations indexed by (date, ticker). Both frames share the same Index and
// ColNames; a missing observation is stored as 0. A Panel is never modified after
// it is built.
type Panel struct {
	Returns   *dataframe.DataFrame[time.Time]
	MarketCap *dataframe.DataFrame[time.Time]
}

// EmptyPanel returns a panel with no dates and no tickers
func EmptyPanel() *Panel {
	return &Panel{
		Returns:   dataframe.New([]time.Time{}, []string{}),
		MarketCap: dataframe.New([]time.Time{}, []string{}),
	}
}

// Empty is true when the panel has no periods or no tickers
func (p *Panel) Empty() bool {
	return p == nil || p.Returns == nil || p.Returns.Len() == 0 || p.Returns.ColCount() == 0
}

// Bounds returns the first and last observed date; ok is false for an empty panel
func (p *Panel) Bounds() (begin, end time.Time, ok bool) {
	if p.Empty() {
		return time.Time{}, time.Time{}, false
	}
	return p.Returns.Start(), p.Returns.End(), true
}

// Dates in ascending order
func (p *Panel) Dates() []time.Time {
	if p.Empty() {
		return []time.Time{}
	}
	return p.Returns.Index
}

// Tickers in column order
func (p *Panel) Tickers() []string {
	if p.Empty() {
		return []string{}
	}
	return p.Returns.ColNames
}

// NumPeriods returns the number of dates in the panel
func (p *Panel) NumPeriods() int {
	if p.Empty() {
		return 0
	}
	return p.Returns.Len()
}

// NumTickers returns the number of tickers in the panel
func (p *Panel) NumTickers() int {
	if p.Empty() {
		return 0
	}
	return p.Returns.ColCount()
}

// Trim restricts the panel to dates in [begin, end]. The result shares storage with p.
func (p *Panel) Trim(begin, end time.Time) *Panel {
	if p.Empty() {
		return EmptyPanel()
	}
	return &Panel{
		Returns:   p.Returns.Trim(begin, end),
		MarketCap: p.MarketCap.Trim(begin, end),
	}
}
