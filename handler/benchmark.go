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
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"go.opentelemetry.io/otel"
)

type BenchmarkResponse struct {
	RiskFree  benchmark.Rate      `json:"riskFree"`
	Reference benchmark.Reference `json:"reference"`
	Begin     string              `json:"begin"`
	End       string              `json:"end"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Benchmark evaluates a reference index over the window given by the `startDate` and
// `endDate` query parameters (defaults: the loaded universe's bounds)
func Benchmark(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), "Benchmark")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	p, a := state()
	if a == nil {
		return errorResponse(c, fiber.StatusServiceUnavailable, benchmark.ErrNoData)
	}

	begin, err := parseDate(c.Query("startDate"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	if pBegin, pEnd, ok := p.Bounds(); ok {
		if begin.IsZero() {
			begin = pBegin
		}
		if end.IsZero() {
			end = pEnd
		}
	}
	if end.IsZero() {
		now := time.Now()
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if begin.IsZero() {
		begin = end.AddDate(-10, 0, 0)
	}
	if end.Before(begin) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "endDate is before startDate"})
	}

	ticker := strings.ToUpper(c.Params("ticker"))
	rf := a.RiskFreeRate(ctx, begin, end)
	ref := a.Performance(ctx, ticker, begin, end, rf.Value)

	resp := BenchmarkResponse{
		RiskFree:  rf,
		Reference: ref,
		Begin:     begin.Format("2006-01-02"),
		End:       end.Format("2006-01-02"),
	}
	if rf.Fallback && rf.Err != nil {
		resp.Warnings = append(resp.Warnings, "risk-free rate unavailable: "+rf.Err.Error())
	}
	if ref.Fallback && ref.Err != nil {
		resp.Warnings = append(resp.Warnings, ticker+" unavailable: "+ref.Err.Error())
	}

	return c.JSON(resp)
}
