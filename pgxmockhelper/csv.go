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

package pgxmockhelper

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

// CSVRows is a fixture table read from a CSV file. Columns listed in the type map
// are converted ("date" as 2006-01-02, "float64" with blanks as NaN); all others are
// kept as strings.
type CSVRows struct {
	rows    [][]interface{}
	header  []string
	dateCol int
}

func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]interface{}, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	lines := strings.Split(strings.TrimRight(string(rawData), "\n"), "\n")
	if len(lines) < 1 || lines[0] == "" {
		subLog.Panic().Msg("fixture is missing a header")
	}

	rows.header = strings.Split(lines[0], ",")
	for _, ll := range lines[1:] {
		parts := strings.Split(ll, ",")
		if len(parts) != len(rows.header) {
			subLog.Panic().Str("Line", ll).Int("Want", len(rows.header)).Int("Have", len(parts)).Msg("wrong number of fields")
		}

		cols := make([]interface{}, len(rows.header))
		for idx, val := range parts {
			colName := rows.header[idx]
			switch typeMap[colName] {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "float64":
				if val == "" {
					cols[idx] = math.NaN()
					continue
				}
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			default:
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

// Between keeps rows whose date column lies in [a, b]; a zero bound is open
func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	newRows := make([][]interface{}, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if !a.IsZero() && t.Before(a) {
			continue
		}
		if !b.IsZero() && t.After(b) {
			continue
		}
		newRows = append(newRows, row)
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Len() int {
	return len(csvRows.rows)
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockUniverseQuery expects one transaction that reads the security-month table and
// answers it with the fixture rows dated in [begin, end]
func MockUniverseQuery(db pgxmock.PgxConnIface, fn string, begin, end time.Time) {
	db.ExpectBegin()
	db.ExpectQuery(`(?is)select\s+event_date.+from\s+"crsp_monthly"`).WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"event_date": "date",
			"total_ret":  "float64",
			"mkt_cap":    "float64",
		}).Between(begin, end).Rows())
	db.ExpectCommit()
}
