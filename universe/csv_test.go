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

package universe_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/dartboard/universe"
)

func month(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Loading a universe panel from CSV", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with the fixture file", func() {
		var (
			panel *universe.Panel
			err   error
		)

		BeforeEach(func() {
			panel, err = universe.LoadFile(ctx, "testdata/panel.csv", universe.DefaultOptions())
		})

		It("loads without error", func() {
			Expect(err).To(BeNil())
			Expect(panel.Empty()).To(BeFalse())
		})

		It("keeps only tickers above the capitalization threshold", func() {
			Expect(panel.Tickers()).To(Equal([]string{"AAA", "BBB", "DDD"}))
		})

		It("aligns both frames to identical dates and tickers", func() {
			Expect(panel.Returns.Index).To(Equal(panel.MarketCap.Index))
			Expect(panel.Returns.ColNames).To(Equal(panel.MarketCap.ColNames))
			Expect(panel.Dates()).To(Equal([]time.Time{
				month(2020, 1, 31), month(2020, 2, 28), month(2020, 3, 31),
			}))
		})

		It("averages duplicate observations", func() {
			aaa, err := panel.Returns.Column("AAA")
			Expect(err).To(BeNil())
			Expect(aaa[0]).To(BeNumerically("~", 0.02, 1e-12))
			Expect(aaa[1:]).To(Equal([]float64{0.02, -0.05}))
		})

		It("fills dropped observations with zero", func() {
			ddd, err := panel.Returns.Column("DDD")
			Expect(err).To(BeNil())
			Expect(ddd).To(Equal([]float64{0.04, 0, 0.06}))

			caps, err := panel.MarketCap.Column("DDD")
			Expect(err).To(BeNil())
			Expect(caps).To(Equal([]float64{15000, 0, 16000}))
		})

		It("reports the date bounds", func() {
			begin, end, ok := panel.Bounds()
			Expect(ok).To(BeTrue())
			Expect(begin).To(Equal(month(2020, 1, 31)))
			Expect(end).To(Equal(month(2020, 3, 31)))
		})

		It("trims to a date range", func() {
			trimmed := panel.Trim(month(2020, 2, 1), month(2020, 3, 31))
			Expect(trimmed.NumPeriods()).To(Equal(2))
			Expect(trimmed.NumTickers()).To(Equal(3))
			Expect(panel.NumPeriods()).To(Equal(3))
		})
	})

	Context("with a custom threshold", func() {
		It("drops rows at or below the threshold", func() {
			opts := universe.DefaultOptions()
			opts.MinMarketCap = 20_000
			panel, err := universe.LoadFile(ctx, "testdata/panel.csv", opts)
			Expect(err).To(BeNil())
			Expect(panel.Tickers()).To(Equal([]string{"AAA", "BBB"}))

			bbb, err := panel.Returns.Column("BBB")
			Expect(err).To(BeNil())
			Expect(bbb).To(Equal([]float64{0, 0.01, 0.03}))
		})

		It("keeps everything with a zero threshold", func() {
			opts := universe.DefaultOptions()
			opts.MinMarketCap = 0
			panel, err := universe.LoadFile(ctx, "testdata/panel.csv", opts)
			Expect(err).To(BeNil())
			Expect(panel.Tickers()).To(Equal([]string{"AAA", "BBB", "CCC", "DDD", "EEE"}))
		})
	})

	Context("with ISO dates and lowercase headers", func() {
		It("parses the file", func() {
			input := "date,ticker,TOTAL_RET,Mkt_Cap\n2021-06-30,xyz,0.05,20000\n2021-07-31,xyz,0.01,21000\n"
			panel, err := universe.LoadCSV(ctx, strings.NewReader(input), universe.DefaultOptions())
			Expect(err).To(BeNil())
			Expect(panel.Tickers()).To(Equal([]string{"XYZ"}))
			Expect(panel.Dates()).To(Equal([]time.Time{month(2021, 6, 30), month(2021, 7, 31)}))
		})

		It("ignores a byte order mark on the first header", func() {
			input := "\ufeffDATE,TICKER,total_ret,mkt_cap\n20210630,XYZ,0.05,20000\n"
			panel, err := universe.LoadCSV(ctx, strings.NewReader(input), universe.DefaultOptions())
			Expect(err).To(BeNil())
			Expect(panel.NumTickers()).To(Equal(1))
		})
	})

	Context("when the input is unusable", func() {
		It("returns an empty panel when a column is missing", func() {
			input := "DATE,TICKER,mkt_cap\n20210630,XYZ,20000\n"
			panel, err := universe.LoadCSV(ctx, strings.NewReader(input), universe.DefaultOptions())
			Expect(errors.Is(err, universe.ErrMissingColumn)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("total_ret"))
			Expect(panel).ToNot(BeNil())
			Expect(panel.Empty()).To(BeTrue())
			_, _, ok := panel.Bounds()
			Expect(ok).To(BeFalse())
		})

		It("returns an empty panel when the file does not exist", func() {
			panel, err := universe.LoadFile(ctx, "testdata/does-not-exist.csv", universe.DefaultOptions())
			Expect(err).ToNot(BeNil())
			Expect(panel.Empty()).To(BeTrue())
		})

		It("returns an empty panel for a header-only file", func() {
			panel, err := universe.LoadCSV(ctx, strings.NewReader("DATE,TICKER,total_ret,mkt_cap\n"), universe.DefaultOptions())
			Expect(err).To(BeNil())
			Expect(panel.Empty()).To(BeTrue())
			Expect(panel.NumPeriods()).To(Equal(0))
		})

		It("stops when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			panel, err := universe.LoadFile(cancelled, "testdata/panel.csv", universe.DefaultOptions())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(panel.Empty()).To(BeTrue())
		})
	})

	DescribeTable("parsing dates",
		func(input string, expected time.Time, ok bool) {
			dt, err := universe.ParseDate(input)
			if ok {
				Expect(err).To(BeNil())
				Expect(dt).To(Equal(expected))
			} else {
				Expect(err).ToNot(BeNil())
			}
		},
		Entry("YYYYMMDD", "19991231", month(1999, 12, 31), true),
		Entry("YYYYMMDD as float", "19991231.0", month(1999, 12, 31), true),
		Entry("ISO", "2004-02-29", month(2004, 2, 29), true),
		Entry("padded", " 2004-02-29 ", month(2004, 2, 29), true),
		Entry("garbage", "last tuesday", time.Time{}, false),
	)

	DescribeTable("parsing capitalization units",
		func(input string, expected universe.CapUnit, ok bool) {
			unit, err := universe.ParseCapUnit(input)
			if ok {
				Expect(err).To(BeNil())
				Expect(unit).To(Equal(expected))
			} else {
				Expect(errors.Is(err, universe.ErrUnknownCapUnit)).To(BeTrue())
			}
		},
		Entry("dollars", "dollars", universe.Dollars, true),
		Entry("thousands", "Thousands", universe.Thousands, true),
		Entry("default", "", universe.Thousands, true),
		Entry("millions", "millions", universe.Millions, true),
		Entry("unknown", "furlongs", universe.CapUnit(0), false),
	)

	It("converts the threshold to dollars", func() {
		opts := universe.DefaultOptions()
		Expect(opts.ThresholdDollars()).To(Equal(10_000_000.0))
		opts.CapUnit = universe.Millions
		Expect(opts.ThresholdDollars()).To(Equal(10_000_000_000.0))
	})
})
