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

package handler_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/dataframe"
	"github.com/penny-vault/dartboard/handler"
	"github.com/penny-vault/dartboard/report"
	"github.com/penny-vault/dartboard/router"
	"github.com/penny-vault/dartboard/universe"
)

type countingAdapter struct {
	rateCalls int32
}

func (a *countingAdapter) RiskFreeRate(ctx context.Context, begin, end time.Time) benchmark.Rate {
	atomic.AddInt32(&a.rateCalls, 1)
	return benchmark.Rate{Value: 0.01, Observations: 50}
}

func (a *countingAdapter) Performance(ctx context.Context, ticker string, begin, end time.Time, rf float64) benchmark.Reference {
	if ticker == "MISSING" {
		return benchmark.FallbackReference(ticker, benchmark.ErrNoData)
	}
	return benchmark.Reference{Ticker: ticker, Sharpe: 0.4, AnnualReturn: 0.07, Months: 35}
}

func handlerPanel(nTickers, nPeriods int) *universe.Panel {
	dates := make([]time.Time, nPeriods)
	for row := range dates {
		dates[row] = time.Date(2015, time.Month(row+2), 0, 0, 0, 0, 0, time.UTC)
	}
	tickers := make([]string, nTickers)
	for col := range tickers {
		tickers[col] = fmt.Sprintf("T%02d", col)
	}
	rets := dataframe.New(dates, tickers)
	caps := dataframe.New(dates, append([]string{}, tickers...))
	for col := 0; col < nTickers; col++ {
		for row := 0; row < nPeriods; row++ {
			rets.Vals[col][row] = 0.02*math.Cos(float64((row+2)*(col+1))) + 0.005
			caps.Vals[col][row] = float64(500 * (col + 1))
		}
	}
	return &universe.Panel{Returns: rets, MarketCap: caps}
}

func newApp(apiKey string) *fiber.App {
	app := fiber.New(fiber.Config{JSONEncoder: json.Marshal})
	router.SetupRoutes(app, apiKey)
	return app
}

func post(app *fiber.App, body string) (*http.Response, []byte) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulation", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	Expect(err).To(BeNil())
	data, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	return resp, data
}

var _ = Describe("API handlers", func() {
	var (
		app     *fiber.App
		adapter *countingAdapter
	)

	BeforeEach(func() {
		common.CachePurge()
		adapter = &countingAdapter{}
		handler.Setup(handlerPanel(15, 36), adapter)
		app = newApp("")
	})

	Describe("ping", func() {
		It("reports the API is alive", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var ping handler.PingResponse
			data, _ := io.ReadAll(resp.Body)
			Expect(json.Unmarshal(data, &ping)).To(Succeed())
			Expect(ping.Status).To(Equal("success"))
		})
	})

	Describe("simulation", func() {
		It("returns an analysis for a valid request", func() {
			resp, data := post(app, `{"trials": 100, "stocks": 10, "seed": 3, "benchmarks": ["spy"]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var analysis report.Analysis
			Expect(json.Unmarshal(data, &analysis)).To(Succeed())
			Expect(analysis.Trials).To(Equal(100))
			Expect(analysis.PortfolioSize).To(Equal(10))
			Expect(analysis.Universe).To(Equal(15))
			Expect(analysis.Periods).To(Equal(36))
			Expect(analysis.Seed).To(Equal(uint64(3)))
			Expect(analysis.RiskFree.Value).To(Equal(0.01))
			Expect(analysis.EqualWeight.N).To(Equal(100))
			Expect(analysis.Benchmarks).To(HaveLen(1))
			Expect(analysis.Benchmarks[0].Reference.Ticker).To(Equal("SPY"))
		})

		It("restricts the simulation to the requested dates", func() {
			resp, data := post(app, `{"trials": 100, "stocks": 10, "seed": 3, "start": "2016-01-01", "end": "2016-12-31"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var analysis report.Analysis
			Expect(json.Unmarshal(data, &analysis)).To(Succeed())
			Expect(analysis.Periods).To(Equal(12))
			Expect(analysis.Benchmarks).To(HaveLen(len(benchmark.DefaultTickers)))
		})

		It("serves repeated seeded requests from the cache", func() {
			body := `{"trials": 100, "stocks": 10, "seed": 11}`
			_, first := post(app, body)
			_, second := post(app, body)
			Expect(second).To(Equal(first))
			Expect(atomic.LoadInt32(&adapter.rateCalls)).To(Equal(int32(1)))
		})

		It("misses the cache when the universe configuration changes", func() {
			defer viper.Set("universe.min_market_cap", 0)
			defer viper.Set("universe.db", false)
			body := `{"trials": 100, "stocks": 10, "seed": 11}`

			post(app, body)
			viper.Set("universe.min_market_cap", 250.0)
			post(app, body)
			Expect(atomic.LoadInt32(&adapter.rateCalls)).To(Equal(int32(2)))

			viper.Set("universe.db", true)
			post(app, body)
			Expect(atomic.LoadInt32(&adapter.rateCalls)).To(Equal(int32(3)))

			post(app, body)
			Expect(atomic.LoadInt32(&adapter.rateCalls)).To(Equal(int32(3)))
		})

		It("does not cache unseeded requests", func() {
			body := `{"trials": 100, "stocks": 10}`
			post(app, body)
			post(app, body)
			Expect(atomic.LoadInt32(&adapter.rateCalls)).To(Equal(int32(2)))
		})

		DescribeTable("rejects invalid requests",
			func(body string, status int) {
				resp, _ := post(app, body)
				Expect(resp.StatusCode).To(Equal(status))
			},
			Entry("malformed json", `{"trials": `, fiber.StatusBadRequest),
			Entry("too few trials", `{"trials": 5, "stocks": 10}`, fiber.StatusBadRequest),
			Entry("too many trials", `{"trials": 50000, "stocks": 10}`, fiber.StatusBadRequest),
			Entry("too few stocks", `{"trials": 100, "stocks": 2}`, fiber.StatusBadRequest),
			Entry("bad date", `{"trials": 100, "stocks": 10, "start": "01/02/2016"}`, fiber.StatusBadRequest),
			Entry("portfolio larger than the universe", `{"trials": 100, "stocks": 20}`, fiber.StatusUnprocessableEntity),
			Entry("window too short", `{"trials": 100, "stocks": 10, "start": "2016-01-01", "end": "2016-01-31"}`, fiber.StatusUnprocessableEntity),
		)

		It("is unavailable before a universe is loaded", func() {
			handler.Setup(nil, nil)
			resp, _ := post(app, `{"trials": 100, "stocks": 10}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Describe("benchmark", func() {
		It("evaluates the ticker over the universe's window by default", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/benchmark/spy", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body handler.BenchmarkResponse
			data, _ := io.ReadAll(resp.Body)
			Expect(json.Unmarshal(data, &body)).To(Succeed())
			Expect(body.Reference.Ticker).To(Equal("SPY"))
			Expect(body.Reference.Sharpe).To(Equal(0.4))
			Expect(body.Begin).To(Equal("2015-01-31"))
			Expect(body.End).To(Equal("2017-12-31"))
			Expect(body.Warnings).To(BeEmpty())
		})

		It("warns when the ticker has no data", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/benchmark/missing?startDate=2016-01-01&endDate=2016-12-31", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body handler.BenchmarkResponse
			data, _ := io.ReadAll(resp.Body)
			Expect(json.Unmarshal(data, &body)).To(Succeed())
			Expect(body.Reference.Fallback).To(BeTrue())
			Expect(body.Begin).To(Equal("2016-01-01"))
			Expect(body.Warnings).To(HaveLen(1))
		})

		It("rejects an inverted window", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/benchmark/spy?startDate=2017-01-01&endDate=2016-01-01", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			app = newApp("secret")
		})

		It("leaves ping open", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("requires the key for other routes", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/benchmark/spy", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/benchmark/spy", nil)
			req.Header.Set("X-Dartboard-Key", "wrong")
			resp, err = app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))

			req = httptest.NewRequest(http.MethodGet, "/api/v1/benchmark/spy?apikey=secret", nil)
			resp, err = app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})
})
