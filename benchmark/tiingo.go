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
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type tiingoJSONResponse struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
}

// Performance downloads daily adjusted closes for ticker, resamples them to month-end,
// and evaluates the resulting monthly returns against rf. Missing or unreadable data
// yields a zero-valued fallback Reference.
func (p *Provider) Performance(ctx context.Context, ticker string, begin, end time.Time, rf float64) Reference {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.Performance")
	defer span.End()

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	subLog := log.With().Str("Ticker", ticker).Time("Begin", begin).Time("End", end).Logger()
	span.SetAttributes(attribute.String("Ticker", ticker))

	dates, closes, err := p.dailyCloses(ctx, ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "benchmark unavailable")
		subLog.Warn().Err(err).Msg("benchmark unavailable; reporting zero performance")
		return FallbackReference(ticker, err)
	}

	ref := Evaluate(ticker, MonthlyReturns(dates, closes), rf)
	if ref.Fallback {
		span.SetStatus(codes.Error, "not enough data")
		subLog.Warn().Int("Days", len(dates)).Msg("not enough benchmark history; reporting zero performance")
		return ref
	}

	span.SetAttributes(attribute.Float64("Sharpe", ref.Sharpe), attribute.Int("Months", ref.Months))
	subLog.Info().Float64("Sharpe", ref.Sharpe).Float64("AnnualReturn", ref.AnnualReturn).Int("Months", ref.Months).Msg("evaluated benchmark")
	return ref
}

func (p *Provider) dailyCloses(ctx context.Context, ticker string, begin, end time.Time) ([]time.Time, []float64, error) {
	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&token=%s", p.TiingoURL, ticker, begin.Format("2006-01-02"), end.Format("2006-01-02"), p.Token)
	cacheKey, err := common.HashKey("tiingo", ticker, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, nil, err
	}

	body, err := p.get(ctx, url, cacheKey)
	if err != nil {
		return nil, nil, err
	}

	jsonResp := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		return nil, nil, err
	}

	if len(jsonResp) == 0 {
		return nil, nil, ErrNoData
	}

	dates := make([]time.Time, 0, len(jsonResp))
	closes := make([]float64, 0, len(jsonResp))
	for _, quote := range jsonResp {
		dtParts := strings.Split(quote.Date, "T")
		dt, err := time.Parse("2006-01-02", dtParts[0])
		if err != nil {
			return nil, nil, err
		}

		price := quote.AdjClose
		if price == 0 {
			price = quote.Close
		}

		dates = append(dates, dt)
		closes = append(closes, price)
	}

	return dates, closes, nil
}
