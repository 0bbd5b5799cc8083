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
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	imports "github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/stat"
)

// RiskFreeRate averages the daily 3-month T-bill rate over [begin, end] and converts
// it from percent to a decimal. Any failure yields the provider's default rate.
func (p *Provider) RiskFreeRate(ctx context.Context, begin, end time.Time) Rate {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fred.RiskFreeRate")
	defer span.End()

	subLog := log.With().Str("Series", RiskFreeSeries).Time("Begin", begin).Time("End", end).Logger()

	vals, err := p.fredSeries(ctx, RiskFreeSeries, begin, end)
	if err == nil && len(vals) == 0 {
		err = ErrNoData
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "risk-free rate unavailable")
		subLog.Warn().Err(err).Float64("Default", p.DefaultRate).Msg("risk-free rate unavailable; using default")
		return FallbackRate(p.DefaultRate, err)
	}

	rate := stat.Mean(vals, nil) / 100.0
	span.SetAttributes(attribute.Float64("Rate", rate), attribute.Int("Observations", len(vals)))
	subLog.Info().Float64("Rate", rate).Int("Observations", len(vals)).Msg("loaded risk-free rate")

	return Rate{
		Value:        rate,
		Observations: len(vals),
	}
}

// fredSeries downloads a FRED series as CSV and returns its finite values in [begin, end]
func (p *Provider) fredSeries(ctx context.Context, symbol string, begin, end time.Time) ([]float64, error) {
	url := fmt.Sprintf("%s/graph/fredgraph.csv?mode=fred&id=%s&cosd=%s&coed=%s", p.FredURL, symbol, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	cacheKey, err := common.HashKey("fred", symbol, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	body, err := p.get(ctx, url, cacheKey)
	if err != nil {
		return nil, err
	}

	return parseFredCSV(ctx, body, symbol, begin, end)
}

func parseFredCSV(ctx context.Context, body []byte, symbol string, begin, end time.Time) ([]float64, error) {
	// FRED has used both DATE and observation_date for the date column
	header := string(body)
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}
	cols := strings.Split(strings.TrimSpace(header), ",")
	if len(cols) < 2 {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrNoData, header)
	}
	dateCol := strings.Trim(cols[0], "\"")

	res, err := imports.LoadFromCSV(ctx, bytes.NewReader(body), imports.CSVLoadOptions{
		DictateDataType: map[string]interface{}{
			dateCol: imports.Converter{
				ConcreteType: time.Time{},
				ConverterFunc: func(in interface{}) (interface{}, error) {
					return time.Parse("2006-01-02", in.(string))
				},
			},
			symbol: imports.Converter{
				ConcreteType: float64(0),
				ConverterFunc: func(in interface{}) (interface{}, error) {
					// FRED writes "." for days without an observation
					v, err := strconv.ParseFloat(in.(string), 64)
					if err != nil {
						return math.NaN(), nil
					}
					return v, nil
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	dateIdx, err := res.NameToColumn(dateCol)
	if err != nil {
		return nil, err
	}
	valIdx, err := res.NameToColumn(symbol)
	if err != nil {
		return nil, err
	}

	vals := make([]float64, 0, res.NRows())
	for row := 0; row < res.NRows(); row++ {
		dt, ok := res.Series[dateIdx].Value(row).(time.Time)
		if !ok || dt.Before(begin) || dt.After(end) {
			continue
		}
		v, ok := res.Series[valIdx].Value(row).(float64)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vals = append(vals, v)
	}

	return vals, nil
}
