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
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/dartboard/database"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTable = "crsp_monthly"

// DBOptions selects the table and optional date bounds for LoadDB. A zero Begin or End
// leaves that side of the range open.
type DBOptions struct {
	Options

	Table string
	Begin time.Time
	End   time.Time
}

// BuildQuery returns the SQL used by LoadDB. Missing values are returned as NaN so
// they fall through the same filtering as blank CSV cells.
func BuildQuery(opts DBOptions) (string, []interface{}) {
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}

	stmt := &pgsql.SelectStatement{}
	stmt.Select("event_date")
	stmt.Select("ticker")
	stmt.Select("COALESCE(total_ret, 'NaN'::float8) AS total_ret")
	stmt.Select("COALESCE(mkt_cap, 'NaN'::float8) AS mkt_cap")
	stmt.From(pgx.Identifier{table}.Sanitize())

	if !opts.Begin.IsZero() {
		stmt.Where("event_date >= ?", opts.Begin)
	}
	if !opts.End.IsZero() {
		stmt.Where("event_date <= ?", opts.End)
	}
	stmt.Order("event_date, ticker")

	return pgsql.Build(stmt)
}

// LoadDB builds a Panel from a security-month table in PostgreSQL. Filtering and
// alignment are identical to LoadCSV.
func LoadDB(ctx context.Context, opts DBOptions) (*Panel, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "universe.LoadDB")
	defer span.End()

	opts.Options = opts.Options.withDefaults()
	subLog := log.With().Str("Table", opts.Table).Time("Begin", opts.Begin).Time("End", opts.End).
		Float64("MinMarketCap", opts.MinMarketCap).Logger()

	sql, args := BuildQuery(opts)
	subLog.Debug().Str("Query", sql).Msg("loading universe panel from database")

	trx, err := database.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		subLog.Error().Stack().Err(err).Msg("could not begin transaction")
		return EmptyPanel(), err
	}

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		subLog.Error().Stack().Err(err).Msg("universe query failed")
		if rbErr := trx.Rollback(ctx); rbErr != nil {
			subLog.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return EmptyPanel(), fmt.Errorf("query universe: %w", err)
	}

	b := newBuilder(opts.Options)
	for rows.Next() {
		var (
			date   time.Time
			ticker string
			ret    float64
			mktCap float64
		)
		if err := rows.Scan(&date, &ticker, &ret, &mktCap); err != nil {
			subLog.Warn().Err(err).Msg("could not scan universe row")
			b.drop()
			continue
		}
		b.add(date, strings.ToUpper(strings.TrimSpace(ticker)), ret, mktCap)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "row iteration failed")
		subLog.Error().Stack().Err(err).Msg("error while reading universe rows")
		if rbErr := trx.Rollback(ctx); rbErr != nil {
			subLog.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return EmptyPanel(), err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Err(err).Msg("could not commit transaction")
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
