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
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const ctxCheckInterval = 10_000

var dateLayouts = []string{"20060102", "2006-01-02"}

// LoadFile opens path and loads it with LoadCSV. On failure an empty panel is
// returned along with the error.
func LoadFile(ctx context.Context, path string, opts Options) (*Panel, error) {
	fh, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("Path", path).Msg("could not open universe file")
		return EmptyPanel(), err
	}
	defer fh.Close()

	return LoadCSV(ctx, fh, opts)
}

// LoadCSV reads a security-month table (date, ticker, total return, market cap),
// applies the investability filter, and pivots it into an aligned Panel. Any
// unrecoverable error (unreadable input, missing column) yields an empty, non-nil
// panel together with the error; callers should check Panel.Empty before simulating.
func LoadCSV(ctx context.Context, r io.Reader, opts Options) (*Panel, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "universe.LoadCSV")
	defer span.End()

	opts = opts.withDefaults()
	subLog := log.With().Float64("MinMarketCap", opts.MinMarketCap).Str("CapUnit", opts.CapUnit.String()).
		Float64("ThresholdDollars", opts.ThresholdDollars()).Logger()
	subLog.Info().Msg("loading universe panel")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not read header")
		subLog.Error().Err(err).Msg("could not read universe header")
		return EmptyPanel(), err
	}

	cols, err := locateColumns(header, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing column")
		subLog.Error().Err(err).Strs("Header", header).Msg("universe file is missing a required column")
		return EmptyPanel(), err
	}

	b := newBuilder(opts)
	for {
		if b.rows%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return EmptyPanel(), err
			}
		}

		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// a single malformed line is treated like any other unusable row
				b.drop()
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "read failed")
			subLog.Error().Err(err).Msg("could not read universe file")
			return EmptyPanel(), err
		}

		if len(rec) <= cols.max {
			b.drop()
			continue
		}

		date, err := ParseDate(rec[cols.date])
		if err != nil {
			b.drop()
			continue
		}

		b.add(date, strings.ToUpper(strings.TrimSpace(rec[cols.ticker])), parseNumber(rec[cols.ret]), parseNumber(rec[cols.mktCap]))
	}

	panel := b.build()
	span.SetAttributes(
		attribute.Int("Rows", b.rows),
		attribute.Int("Periods", panel.NumPeriods()),
		attribute.Int("Tickers", panel.NumTickers()),
	)

	subLog.Info().Int("Tickers", panel.NumTickers()).Int("Periods", panel.NumPeriods()).Msg("universe panel ready")
	return panel, nil
}

// ParseDate accepts YYYYMMDD or ISO (YYYY-MM-DD) dates
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// some exports write YYYYMMDD as a float
	s = strings.TrimSuffix(s, ".0")

	var err error
	for _, layout := range dateLayouts {
		var dt time.Time
		dt, err = time.Parse(layout, s)
		if err == nil {
			return dt, nil
		}
	}
	return time.Time{}, err
}

// parseNumber coerces a field to float64; blanks and non-numeric codes become NaN
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

type columnMap struct {
	date   int
	ticker int
	ret    int
	mktCap int
	max    int
}

func locateColumns(header []string, opts Options) (columnMap, error) {
	find := func(name string) int {
		for idx, col := range header {
			// strip a UTF-8 BOM that some spreadsheet exports prepend
			col = strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
			if strings.EqualFold(col, name) {
				return idx
			}
		}
		return -1
	}

	cols := columnMap{
		date:   find(opts.DateColumn),
		ticker: find(opts.TickerColumn),
		ret:    find(opts.ReturnColumn),
		mktCap: find(opts.CapColumn),
	}

	required := []struct {
		name string
		idx  int
	}{
		{opts.DateColumn, cols.date},
		{opts.TickerColumn, cols.ticker},
		{opts.ReturnColumn, cols.ret},
		{opts.CapColumn, cols.mktCap},
	}

	for _, col := range required {
		if col.idx == -1 {
			return cols, fmt.Errorf("%w: %s", ErrMissingColumn, col.name)
		}
		if col.idx > cols.max {
			cols.max = col.idx
		}
	}

	return cols, nil
}
