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

package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"github.com/penny-vault/dartboard/report"
	"github.com/penny-vault/dartboard/simulation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

const (
	DefaultTrials = 500
	DefaultStocks = 30

	maxBenchmarks = 10
)

// SimulationRequest is the body of POST /simulation. Zero values take the configured
// defaults; start and end are YYYY-MM-DD.
type SimulationRequest struct {
	Trials     int      `json:"trials"`
	Stocks     int      `json:"stocks"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Seed       uint64   `json:"seed"`
	Benchmarks []string `json:"benchmarks"`
}

func (req *SimulationRequest) withDefaults() {
	if req.Trials == 0 {
		req.Trials = viper.GetInt("simulation.trials")
		if req.Trials == 0 {
			req.Trials = DefaultTrials
		}
	}
	if req.Stocks == 0 {
		req.Stocks = viper.GetInt("simulation.stocks")
		if req.Stocks == 0 {
			req.Stocks = DefaultStocks
		}
	}
	if len(req.Benchmarks) == 0 {
		req.Benchmarks = append([]string{}, benchmark.DefaultTickers...)
	}
	common.ArrToUpper(req.Benchmarks)
}

// universeSource names where the loaded universe came from and how it was filtered, so
// that cached results do not outlive a change to the universe configuration
func universeSource() []string {
	source := "file:" + viper.GetString("universe.file")
	if viper.GetBool("universe.db") {
		source = "db:" + viper.GetString("universe.table")
	}
	return []string{
		source,
		fmt.Sprintf("%g", viper.GetFloat64("universe.min_market_cap")),
		viper.GetString("universe.cap_unit"),
	}
}

// cacheKey identifies a request; only seeded requests are reproducible and cacheable
func (req *SimulationRequest) cacheKey() (string, bool) {
	if req.Seed == 0 {
		return "", false
	}
	parts := append([]string{"simulation", fmt.Sprintf("%d", req.Trials), fmt.Sprintf("%d", req.Stocks),
		req.Start, req.End, fmt.Sprintf("%d", req.Seed), strings.Join(req.Benchmarks, ",")}, universeSource()...)
	key, err := common.HashKey(parts...)
	if err != nil {
		log.Warn().Err(err).Msg("could not hash simulation request")
		return "", false
	}
	return key, true
}

// RunSimulation simulates random portfolios over the loaded universe and responds with
// the analysis
func RunSimulation(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), "RunSimulation")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	req := SimulationRequest{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			log.Warn().Err(err).Msg("could not parse simulation request")
			return errorResponse(c, fiber.StatusBadRequest, err)
		}
	}
	req.withDefaults()

	subLog := log.With().Int("Trials", req.Trials).Int("Stocks", req.Stocks).Str("Start", req.Start).
		Str("End", req.End).Uint64("Seed", req.Seed).Logger()

	if err := simulation.LimitsFromConfig().Check(req.Trials, req.Stocks); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	if len(req.Benchmarks) > maxBenchmarks {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error",
			"message": fmt.Sprintf("at most %d benchmarks may be requested", maxBenchmarks)})
	}

	begin, err := parseDate(req.Start)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	end, err := parseDate(req.End)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	key, cacheable := req.cacheKey()
	if cacheable {
		if body, err := common.CacheGet(ctx, key); err == nil {
			subLog.Debug().Msg("serving simulation from cache")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(body)
		}
	}

	p, a := state()
	if p == nil || a == nil {
		return errorResponse(c, fiber.StatusServiceUnavailable, simulation.ErrEmptyPanel)
	}

	analysis, _, err := report.Build(ctx, p, a, report.Request{
		Params: simulation.Params{
			Trials:        req.Trials,
			PortfolioSize: req.Stocks,
			Seed:          req.Seed,
		},
		Begin:      begin,
		End:        end,
		Benchmarks: req.Benchmarks,
	}, nil)
	if err != nil {
		subLog.Warn().Err(err).Msg("simulation request failed")
		switch {
		case errors.Is(err, simulation.ErrEmptyPanel),
			errors.Is(err, simulation.ErrPortfolioTooLarge),
			errors.Is(err, simulation.ErrWindowTooShort),
			errors.Is(err, simulation.ErrNonPositiveTrials):
			return errorResponse(c, fiber.StatusUnprocessableEntity, err)
		default:
			return errorResponse(c, fiber.StatusInternalServerError, err)
		}
	}

	body, err := json.Marshal(analysis)
	if err != nil {
		subLog.Error().Err(err).Msg("could not marshal analysis")
		return errorResponse(c, fiber.StatusInternalServerError, err)
	}

	if cacheable {
		if err := common.CacheSet(ctx, key, body); err != nil {
			subLog.Warn().Err(err).Msg("could not cache simulation")
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
