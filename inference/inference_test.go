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

package inference_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/exp/rand"

	"github.com/penny-vault/dartboard/inference"
)

func oneToTen() []float64 {
	return []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
}

var _ = Describe("Inference", func() {
	Describe("summary statistics", func() {
		It("summarizes a distribution", func() {
			s, err := inference.Summarize(oneToTen())
			Expect(err).To(BeNil())
			Expect(s.N).To(Equal(10))
			Expect(s.Mean).To(BeNumerically("~", 5.5, 1e-12))
			Expect(s.StdDev).To(BeNumerically("~", 3.0276503540974917, 1e-9))
			Expect(s.StdErr).To(BeNumerically("~", 0.9574271077563381, 1e-9))
			Expect(s.CI95Low).To(BeNumerically("~", 3.334149, 1e-5))
			Expect(s.CI95High).To(BeNumerically("~", 7.665851, 1e-5))
			Expect(s.P5).To(BeNumerically("~", 1.45, 1e-12))
			Expect(s.P25).To(BeNumerically("~", 3.25, 1e-12))
			Expect(s.Median).To(BeNumerically("~", 5.5, 1e-12))
			Expect(s.P75).To(BeNumerically("~", 7.75, 1e-12))
			Expect(s.P95).To(BeNumerically("~", 9.55, 1e-12))
		})

		It("ignores non-finite values", func() {
			x := append(oneToTen(), math.NaN(), math.Inf(1), math.Inf(-1))
			s, err := inference.Summarize(x)
			Expect(err).To(BeNil())
			Expect(s.N).To(Equal(10))
			Expect(s.Mean).To(BeNumerically("~", 5.5, 1e-12))
		})

		It("orders the percentiles", func() {
			x := []float64{0.3, -1.2, 0.8, 2.2, 0.1, 0.0, -0.4, 1.7, 0.9, 0.5, 1.1, -0.2}
			s, err := inference.Summarize(x)
			Expect(err).To(BeNil())
			Expect(s.P5).To(BeNumerically("<=", s.P25))
			Expect(s.P25).To(BeNumerically("<=", s.Median))
			Expect(s.Median).To(BeNumerically("<=", s.P75))
			Expect(s.P75).To(BeNumerically("<=", s.P95))
			Expect(s.CI95Low).To(BeNumerically("<", s.Mean))
			Expect(s.CI95High).To(BeNumerically(">", s.Mean))
		})

		It("has zero width for a constant distribution", func() {
			x := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
			s, err := inference.Summarize(x)
			Expect(err).To(BeNil())
			Expect(s.StdDev).To(Equal(0.0))
			Expect(s.CI95Low).To(Equal(0.5))
			Expect(s.CI95High).To(Equal(0.5))
		})
	})

	Describe("signalling insufficient data", func() {
		var few []float64

		BeforeEach(func() {
			few = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, math.NaN(), math.Inf(1)}
		})

		It("is reported by every function", func() {
			_, err := inference.Summarize(few)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, err = inference.OneSample(few, 0)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, err = inference.PairedDifference(few, few)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, err = inference.PercentileRank(few, 0)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, err = inference.WinRate(few, 0)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, err = inference.PairedWinRate(few, few)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, err = inference.Locate(few, 0)
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())

			_, _, err = inference.BootstrapCI(few, 100, 0.95, rand.NewSource(1))
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())
		})

		It("reports how many values were usable", func() {
			_, err := inference.Summarize(few)
			var insufficient *inference.InsufficientDataError
			Expect(errors.As(err, &insufficient)).To(BeTrue())
			Expect(insufficient.Have).To(Equal(9))
			Expect(insufficient.Need).To(Equal(inference.MinObservations))
		})

		It("is reported for an empty distribution", func() {
			_, err := inference.Summarize([]float64{})
			Expect(errors.Is(err, inference.ErrInsufficientData)).To(BeTrue())
		})
	})

	Describe("paired difference test", func() {
		It("computes the t statistic of the differences", func() {
			a := oneToTen()
			b := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}
			res, err := inference.PairedDifference(a, b)
			Expect(err).To(BeNil())
			Expect(res.N).To(Equal(10))
			Expect(res.MeanDifference).To(BeNumerically("~", 0.9, 1e-12))
			Expect(res.T).To(BeNumerically("~", 9.0, 1e-9))
			Expect(res.P).To(BeNumerically("<", 0.001))
			Expect(res.Significant).To(BeTrue())
		})

		It("finds no difference between identical distributions", func() {
			res, err := inference.PairedDifference(oneToTen(), oneToTen())
			Expect(err).To(BeNil())
			Expect(res.T).To(Equal(0.0))
			Expect(res.P).To(Equal(1.0))
			Expect(res.CohensD).To(Equal(0.0))
			Expect(res.Significant).To(BeFalse())
		})

		It("computes Cohen's d from population variances", func() {
			a := oneToTen()
			b := make([]float64, len(a))
			for idx := range a {
				b[idx] = a[idx] + 1
			}
			res, err := inference.PairedDifference(a, b)
			Expect(err).To(BeNil())
			Expect(res.CohensD).To(BeNumerically("~", -1/math.Sqrt(8.25), 1e-12))
			Expect(math.IsInf(res.T, -1)).To(BeTrue())
			Expect(res.P).To(Equal(0.0))
		})

		It("drops pairs with a non-finite member", func() {
			a := append(oneToTen(), math.NaN(), 3)
			b := append(oneToTen(), 4, math.Inf(1))
			res, err := inference.PairedDifference(a, b)
			Expect(err).To(BeNil())
			Expect(res.N).To(Equal(10))
		})

		It("rejects distributions of different lengths", func() {
			_, err := inference.PairedDifference(oneToTen(), oneToTen()[1:])
			Expect(errors.Is(err, inference.ErrLengthMismatch)).To(BeTrue())
		})
	})

	Describe("one sample test", func() {
		It("does not reject the sample mean", func() {
			res, err := inference.OneSample(oneToTen(), 5.5)
			Expect(err).To(BeNil())
			Expect(res.T).To(BeNumerically("~", 0, 1e-12))
			Expect(res.P).To(BeNumerically("~", 1, 1e-9))
			Expect(res.Significant).To(BeFalse())
		})

		It("matches the two-sided t-test", func() {
			res, err := inference.OneSample(oneToTen(), 5)
			Expect(err).To(BeNil())
			Expect(res.T).To(BeNumerically("~", 0.5/0.9574271077563381, 1e-9))
			Expect(res.P).To(BeNumerically("~", 0.614, 0.002))
			Expect(res.Significant).To(BeFalse())
		})

		It("rejects a distant reference", func() {
			res, err := inference.OneSample(oneToTen(), 0)
			Expect(err).To(BeNil())
			Expect(res.T).To(BeNumerically("~", 5.5/0.9574271077563381, 1e-9))
			Expect(res.Significant).To(BeTrue())
		})
	})

	Describe("benchmark positioning", func() {
		DescribeTable("percentile rank and win rate",
			func(value, pct, win float64) {
				p, err := inference.PercentileRank(oneToTen(), value)
				Expect(err).To(BeNil())
				Expect(p).To(BeNumerically("~", pct, 1e-12))

				w, err := inference.WinRate(oneToTen(), value)
				Expect(err).To(BeNil())
				Expect(w).To(BeNumerically("~", win, 1e-12))

				pos, err := inference.Locate(oneToTen(), value)
				Expect(err).To(BeNil())
				Expect(pos.Percentile).To(Equal(p))
				Expect(pos.WinRate).To(Equal(w))
			},
			Entry("below the distribution", 0.0, 0.0, 100.0),
			Entry("at the minimum", 1.0, 10.0, 100.0),
			Entry("at the maximum", 10.0, 100.0, 10.0),
			Entry("in the middle", 5.0, 50.0, 60.0),
			Entry("between values", 5.5, 50.0, 50.0),
			Entry("above the distribution", 11.0, 100.0, 0.0),
		)

		It("ranks the extremes of a distribution with ties", func() {
			x := []float64{2, 2, 3, 4, 5, 6, 7, 8, 9, 9}

			low, err := inference.PercentileRank(x, 2)
			Expect(err).To(BeNil())
			Expect(low).To(BeNumerically("~", 20.0, 1e-12))

			high, err := inference.PercentileRank(x, 9)
			Expect(err).To(BeNil())
			Expect(high).To(BeNumerically("~", 100.0, 1e-12))
		})

		It("counts strict pairwise wins", func() {
			a := oneToTen()
			b := []float64{0, 0, 0, 4, 5, 6, 8, 9, 10, 11}
			rate, err := inference.PairedWinRate(a, b)
			Expect(err).To(BeNil())
			Expect(rate).To(BeNumerically("~", 30.0, 1e-12))
		})
	})

	Describe("bootstrap confidence interval", func() {
		It("brackets the sample mean", func() {
			x := []float64{0.3, -1.2, 0.8, 2.2, 0.1, 0.0, -0.4, 1.7, 0.9, 0.5, 1.1, -0.2, 0.6, 0.4}
			lower, upper, err := inference.BootstrapCI(x, 2000, 0.95, rand.NewSource(42))
			Expect(err).To(BeNil())
			mean := 0.0
			for _, v := range x {
				mean += v
			}
			mean /= float64(len(x))
			Expect(lower).To(BeNumerically("<", mean))
			Expect(upper).To(BeNumerically(">", mean))
		})

		It("is reproducible for a seed", func() {
			lo1, hi1, err := inference.BootstrapCI(oneToTen(), 500, 0.9, rand.NewSource(7))
			Expect(err).To(BeNil())
			lo2, hi2, err := inference.BootstrapCI(oneToTen(), 500, 0.9, rand.NewSource(7))
			Expect(err).To(BeNil())
			Expect(lo1).To(Equal(lo2))
			Expect(hi1).To(Equal(hi2))
		})

		It("rejects an invalid confidence level", func() {
			_, _, err := inference.BootstrapCI(oneToTen(), 500, 1.5, rand.NewSource(7))
			Expect(errors.Is(err, inference.ErrInvalidConfidence)).To(BeTrue())
		})
	})
})
