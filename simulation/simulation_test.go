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

package simulation_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"

	"github.com/penny-vault/dartboard/dataframe"
	"github.com/penny-vault/dartboard/performance"
	"github.com/penny-vault/dartboard/simulation"
	"github.com/penny-vault/dartboard/universe"
)

// monthEnd returns the last day of the n-th month after December 2014
func monthEnd(n int) time.Time {
	return time.Date(2015, time.Month(n+2), 0, 0, 0, 0, 0, time.UTC)
}

// makePanel builds a panel with nTickers tickers and nPeriods months. retFn and capFn
// give the value for (ticker, period).
func makePanel(nTickers, nPeriods int, retFn, capFn func(col, row int) float64) *universe.Panel {
	dates := make([]time.Time, nPeriods)
	for row := range dates {
		dates[row] = monthEnd(row)
	}
	tickers := make([]string, nTickers)
	for col := range tickers {
		tickers[col] = fmt.Sprintf("T%03d", col)
	}

	rets := dataframe.New(dates, tickers)
	caps := dataframe.New(dates, append([]string{}, tickers...))
	for col := 0; col < nTickers; col++ {
		for row := 0; row < nPeriods; row++ {
			rets.Vals[col][row] = retFn(col, row)
			caps.Vals[col][row] = capFn(col, row)
		}
	}

	return &universe.Panel{Returns: rets, MarketCap: caps}
}

func wavyReturn(col, row int) float64 {
	return 0.01*math.Sin(float64(row+1)*float64(col+1)) + 0.002*float64(col%7)
}

func growingCap(col, row int) float64 {
	return 1000*float64(col+1) + 10*float64(row)
}

var _ = Describe("Monte Carlo simulation", func() {
	var (
		ctx   context.Context
		panel *universe.Panel
	)

	BeforeEach(func() {
		ctx = context.Background()
		panel = makePanel(40, 36, wavyReturn, growingCap)
	})

	Describe("parameter validation", func() {
		DescribeTable("rejects invalid parameters",
			func(trials, k int, expected error) {
				_, err := simulation.Run(ctx, panel, simulation.Params{Trials: trials, PortfolioSize: k, Seed: 1}, nil)
				Expect(errors.Is(err, expected)).To(BeTrue())
			},
			Entry("zero trials", 0, 10, simulation.ErrNonPositiveTrials),
			Entry("negative trials", -5, 10, simulation.ErrNonPositiveTrials),
			Entry("portfolio as large as the universe", 10, 40, simulation.ErrPortfolioTooLarge),
			Entry("portfolio larger than the universe", 10, 41, simulation.ErrPortfolioTooLarge),
			Entry("empty portfolio", 10, 0, simulation.ErrPortfolioTooLarge),
		)

		It("rejects an empty panel", func() {
			_, err := simulation.Run(ctx, universe.EmptyPanel(), simulation.Params{Trials: 10, PortfolioSize: 5}, nil)
			Expect(errors.Is(err, simulation.ErrEmptyPanel)).To(BeTrue())
		})

		It("rejects a window shorter than six periods", func() {
			short := makePanel(10, 5, wavyReturn, growingCap)
			_, err := simulation.Run(ctx, short, simulation.Params{Trials: 10, PortfolioSize: 5}, nil)
			Expect(errors.Is(err, simulation.ErrWindowTooShort)).To(BeTrue())
		})
	})

	Describe("drawing portfolios", func() {
		It("draws distinct tickers from the universe", func() {
			draws := simulation.Draws(200, 30, 40, 42)
			Expect(draws).To(HaveLen(200))
			for _, draw := range draws {
				Expect(draw).To(HaveLen(30))
				seen := make(map[int]bool)
				for _, idx := range draw {
					Expect(idx).To(BeNumerically(">=", 0))
					Expect(idx).To(BeNumerically("<", 40))
					Expect(seen[idx]).To(BeFalse())
					seen[idx] = true
				}
			}
		})

		It("is reproducible for a seed", func() {
			Expect(simulation.Draws(50, 10, 40, 7)).To(Equal(simulation.Draws(50, 10, 40, 7)))
			Expect(simulation.Draws(50, 10, 40, 7)).ToNot(Equal(simulation.Draws(50, 10, 40, 8)))
		})

		It("selects every ticker with roughly equal frequency", func() {
			counts := make([]int, 20)
			for _, draw := range simulation.Draws(4000, 5, 20, 99) {
				for _, idx := range draw {
					counts[idx]++
				}
			}
			// expected 1000 per ticker
			for _, c := range counts {
				Expect(c).To(BeNumerically("~", 1000, 150))
			}
		})
	})

	Describe("running trials", func() {
		It("returns paired distributions of the requested length", func() {
			res, err := simulation.Run(ctx, panel, simulation.Params{Trials: 120, PortfolioSize: 10, RiskFreeRate: 0.02, Seed: 11}, nil)
			Expect(err).To(BeNil())
			Expect(res.EqualWeight).To(HaveLen(120))
			Expect(res.CapWeight).To(HaveLen(120))
			Expect(res.Universe).To(Equal(40))
			Expect(res.Periods).To(Equal(36))
			Expect(res.Seed).To(Equal(uint64(11)))
			Expect(res.Start).To(Equal(monthEnd(0)))
			Expect(res.End).To(Equal(monthEnd(35)))
			for idx := range res.EqualWeight {
				Expect(math.IsNaN(res.EqualWeight[idx])).To(BeFalse())
				Expect(math.IsNaN(res.CapWeight[idx])).To(BeFalse())
			}
		})

		It("keeps the first five draws as samples", func() {
			res, err := simulation.Run(ctx, panel, simulation.Params{Trials: 50, PortfolioSize: 8, Seed: 3}, nil)
			Expect(err).To(BeNil())
			Expect(res.Samples).To(HaveLen(5))

			draws := simulation.Draws(50, 8, 40, 3)
			for idx, sample := range res.Samples {
				Expect(sample).To(HaveLen(8))
				for jj, ticker := range sample {
					Expect(ticker).To(Equal(panel.Tickers()[draws[idx][jj]]))
				}
			}
		})

		It("keeps every draw when there are fewer than five trials", func() {
			res, err := simulation.Run(ctx, panel, simulation.Params{Trials: 3, PortfolioSize: 8, Seed: 3}, nil)
			Expect(err).To(BeNil())
			Expect(res.Samples).To(HaveLen(3))
		})

		It("is deterministic for a seed regardless of worker count", func() {
			one, err := simulation.Run(ctx, panel, simulation.Params{Trials: 200, PortfolioSize: 12, Seed: 5, Workers: 1}, nil)
			Expect(err).To(BeNil())
			many, err := simulation.Run(ctx, panel, simulation.Params{Trials: 200, PortfolioSize: 12, Seed: 5, Workers: 8}, nil)
			Expect(err).To(BeNil())

			Expect(many.EqualWeight).To(Equal(one.EqualWeight))
			Expect(many.CapWeight).To(Equal(one.CapWeight))
			Expect(many.Samples).To(Equal(one.Samples))
			Expect(many.RunID).ToNot(Equal(one.RunID))
		})

		It("reports bounded progress ending at one", func() {
			fractions := []float64{}
			_, err := simulation.Run(ctx, panel, simulation.Params{Trials: 500, PortfolioSize: 10, Seed: 9, Workers: 4}, func(f float64) {
				fractions = append(fractions, f)
			})
			Expect(err).To(BeNil())

			Expect(len(fractions)).To(BeNumerically("<=", 500/simulation.DefaultProgressEvery+1))
			Expect(fractions[len(fractions)-1]).To(Equal(1.0))
			for idx, f := range fractions {
				Expect(f).To(BeNumerically(">", 0))
				Expect(f).To(BeNumerically("<=", 1))
				if idx > 0 {
					Expect(f).To(BeNumerically(">=", fractions[idx-1]))
				}
			}
		})

		It("stops when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			res, err := simulation.Run(cancelled, panel, simulation.Params{Trials: 1000, PortfolioSize: 10, Seed: 1}, nil)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(res).To(BeNil())
		})
	})

	Describe("weighting schemes", func() {
		It("produces the common series when every ticker has the same returns", func() {
			series := []float64{0.03, -0.01, 0.02, 0.04, -0.03, 0.01, 0.02, 0.00, -0.02, 0.05, 0.01, 0.03}
			same := makePanel(5, 12, func(col, row int) float64 { return series[row] }, growingCap)

			res, err := simulation.Run(ctx, same, simulation.Params{Trials: 20, PortfolioSize: 3, RiskFreeRate: 0.01, Seed: 2}, nil)
			Expect(err).To(BeNil())

			// cap weights use the prior period, so the first period has no weight
			lagged := append([]float64{0}, series[1:]...)
			for idx := range res.EqualWeight {
				Expect(res.EqualWeight[idx]).To(BeNumerically("~", performance.SharpeRatio(series, 0.01), 1e-9))
				Expect(res.CapWeight[idx]).To(BeNumerically("~", performance.SharpeRatio(lagged, 0.01), 1e-9))
			}
		})

		It("computes equal and cap weights over the same draw", func() {
			res, err := simulation.Run(ctx, panel, simulation.Params{Trials: 10, PortfolioSize: 6, RiskFreeRate: 0.02, Seed: 17}, nil)
			Expect(err).To(BeNil())

			draws := simulation.Draws(10, 6, 40, 17)
			for trial, draw := range draws {
				ew := make([]float64, 36)
				cw := make([]float64, 36)
				for row := 0; row < 36; row++ {
					caps := make([]float64, len(draw))
					for jj, col := range draw {
						ew[row] += wavyReturn(col, row) / float64(len(draw))
						if row > 0 {
							caps[jj] = growingCap(col, row-1)
						}
					}
					weights := simulation.CapWeights(caps)
					for jj, col := range draw {
						cw[row] += weights[jj] * wavyReturn(col, row)
					}
				}
				Expect(res.EqualWeight[trial]).To(BeNumerically("~", performance.SharpeRatio(ew, 0.02), 1e-9))
				Expect(res.CapWeight[trial]).To(BeNumerically("~", performance.SharpeRatio(cw, 0.02), 1e-9))
			}
		})

		It("averages to the mean over every possible portfolio", func() {
			small := makePanel(5, 12, wavyReturn, growingCap)

			var sharpes []float64
			for a := 0; a < 5; a++ {
				for b := a + 1; b < 5; b++ {
					for c := b + 1; c < 5; c++ {
						ew := make([]float64, 12)
						for row := range ew {
							ew[row] = (wavyReturn(a, row) + wavyReturn(b, row) + wavyReturn(c, row)) / 3
						}
						sharpes = append(sharpes, performance.SharpeRatio(ew, 0.01))
					}
				}
			}
			Expect(sharpes).To(HaveLen(10))

			expected, spread := 0.0, 0.0
			for _, v := range sharpes {
				expected += v / 10
			}
			for _, v := range sharpes {
				spread += (v - expected) * (v - expected) / 9
			}
			tolerance := 5*math.Sqrt(spread/1000) + 1e-9

			res, err := simulation.Run(ctx, small, simulation.Params{Trials: 1000, PortfolioSize: 3, RiskFreeRate: 0.01, Seed: 23}, nil)
			Expect(err).To(BeNil())

			mean := 0.0
			for _, v := range res.EqualWeight {
				mean += v / 1000
			}
			Expect(mean).To(BeNumerically("~", expected, tolerance))
		})

		It("gives zero weight when total capitalization is zero", func() {
			Expect(simulation.CapWeights([]float64{0, 0, 0})).To(Equal([]float64{0, 0, 0}))
		})

		It("normalizes weights to one", func() {
			weights := simulation.CapWeights([]float64{100, 300, 600})
			Expect(weights[0]).To(BeNumerically("~", 0.1, 1e-12))
			Expect(weights[1]).To(BeNumerically("~", 0.3, 1e-12))
			Expect(weights[2]).To(BeNumerically("~", 0.6, 1e-12))
			Expect(weights[0] + weights[1] + weights[2]).To(BeNumerically("~", 1.0, 1e-12))
		})

		It("names the schemes", func() {
			Expect(simulation.EqualWeight.String()).To(Equal("equal-weight"))
			Expect(simulation.CapWeight.String()).To(Equal("cap-weight"))
		})
	})

	Describe("rolling windows", func() {
		It("starts a window every year while a full window fits", func() {
			windows, err := simulation.Rolling(ctx, panel, simulation.RollingParams{
				Params:      simulation.Params{Trials: 20, PortfolioSize: 5, Seed: 4},
				WindowYears: 1,
			}, nil)
			Expect(err).To(BeNil())
			Expect(windows).To(HaveLen(2))
			Expect(windows[0].Start).To(Equal(monthEnd(0)))
			Expect(windows[0].End).To(Equal(monthEnd(11)))
			Expect(windows[1].Start).To(Equal(monthEnd(12)))
			Expect(windows[1].End).To(Equal(monthEnd(23)))
			for _, w := range windows {
				Expect(w.EqualWeightWinRate).To(BeNumerically(">=", 0))
				Expect(w.EqualWeightWinRate).To(BeNumerically("<=", 100))
			}
		})

		It("returns no windows when the window covers the whole panel", func() {
			windows, err := simulation.Rolling(ctx, panel, simulation.RollingParams{
				Params:      simulation.Params{Trials: 20, PortfolioSize: 5, Seed: 4},
				WindowYears: 3,
			}, nil)
			Expect(err).To(BeNil())
			Expect(windows).To(BeEmpty())
		})

		It("rejects a zero-length window", func() {
			_, err := simulation.Rolling(ctx, panel, simulation.RollingParams{
				Params: simulation.Params{Trials: 20, PortfolioSize: 5},
			}, nil)
			Expect(errors.Is(err, simulation.ErrWindowTooShort)).To(BeTrue())
		})

		It("propagates parameter errors from each window", func() {
			_, err := simulation.Rolling(ctx, panel, simulation.RollingParams{
				Params:      simulation.Params{Trials: 20, PortfolioSize: 40},
				WindowYears: 1,
			}, nil)
			Expect(errors.Is(err, simulation.ErrPortfolioTooLarge)).To(BeTrue())
		})
	})
})

var _ = Describe("Limits", func() {
	DescribeTable("checking user parameters",
		func(trials, stocks int, ok bool) {
			err := simulation.DefaultLimits().Check(trials, stocks)
			if ok {
				Expect(err).To(BeNil())
			} else {
				Expect(errors.Is(err, simulation.ErrOutOfRange)).To(BeTrue())
			}
		},
		Entry("defaults", 500, 30, true),
		Entry("lower bounds", 100, 10, true),
		Entry("upper bounds", 5000, 100, true),
		Entry("too few trials", 99, 30, false),
		Entry("too many trials", 5001, 30, false),
		Entry("too few stocks", 500, 9, false),
		Entry("too many stocks", 500, 101, false),
	)
})

var _ = Describe("Simulation throughput", func() {
	It("runs a realistic simulation", func() {
		panel := makePanel(500, 120, wavyReturn, growingCap)

		experiment := gmeasure.NewExperiment("simulation")
		AddReportEntry(experiment.Name, experiment)

		experiment.SampleDuration("500 trials of 30 stocks", func(_ int) {
			res, err := simulation.Run(context.Background(), panel, simulation.Params{
				Trials:        500,
				PortfolioSize: 30,
				Seed:          17,
			}, nil)
			Expect(err).To(BeNil())
			Expect(res.EqualWeight).To(HaveLen(500))
		}, gmeasure.SamplingConfig{N: 5})

		experiment.SampleDuration("draws", func(_ int) {
			draws := simulation.Draws(500, 30, 500, 17)
			Expect(draws).To(HaveLen(500))
		}, gmeasure.SamplingConfig{N: 20})
	})
})
