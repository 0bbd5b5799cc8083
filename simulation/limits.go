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
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

var ErrOutOfRange = errors.New("parameter out of range")

// Limits bound the trial count and portfolio size accepted from users
type Limits struct {
	MinTrials int
	MaxTrials int
	MinStocks int
	MaxStocks int
}

// DefaultLimits allow 100-5000 trials of 10-100 stocks
func DefaultLimits() Limits {
	return Limits{
		MinTrials: 100,
		MaxTrials: 5000,
		MinStocks: 10,
		MaxStocks: 100,
	}
}

// LimitsFromConfig reads `simulation.min_trials`, `simulation.max_trials`,
// `simulation.min_stocks`, and `simulation.max_stocks`, falling back to DefaultLimits
func LimitsFromConfig() Limits {
	l := DefaultLimits()
	if v := viper.GetInt("simulation.min_trials"); v > 0 {
		l.MinTrials = v
	}
	if v := viper.GetInt("simulation.max_trials"); v > 0 {
		l.MaxTrials = v
	}
	if v := viper.GetInt("simulation.min_stocks"); v > 0 {
		l.MinStocks = v
	}
	if v := viper.GetInt("simulation.max_stocks"); v > 0 {
		l.MaxStocks = v
	}
	return l
}

// Check returns ErrOutOfRange if trials or stocks fall outside the limits
func (l Limits) Check(trials, stocks int) error {
	if trials < l.MinTrials || trials > l.MaxTrials {
		return fmt.Errorf("%w: trials must be between %d and %d, got %d", ErrOutOfRange, l.MinTrials, l.MaxTrials, trials)
	}
	if stocks < l.MinStocks || stocks > l.MaxStocks {
		return fmt.Errorf("%w: stocks must be between %d and %d, got %d", ErrOutOfRange, l.MinStocks, l.MaxStocks, stocks)
	}
	return nil
}
