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

package dataframe

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

// ColIndex returns the index of the specified column or -1 if the column doesn't exist
func (df *DataFrame[T]) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame[T]) ColCount() int {
	return len(df.ColNames)
}

// Column returns the values of the named column; the returned slice is shared with
// the dataframe
func (df *DataFrame[T]) Column(colName string) ([]float64, error) {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[colIdx], nil
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame[T]) Copy() *DataFrame[T] {
	df2 := &DataFrame[T]{
		ColNames: make([]string, len(df.ColNames)),
		Index:    make([]T, len(df.Index)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Index, df.Index)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// Filter returns a new dataframe holding only the rows where keep is true for every
// column. The receiver is not modified.
func (df *DataFrame[T]) Filter(keep func(float64) bool) *DataFrame[T] {
	res := &DataFrame[T]{
		Index:    make([]T, 0, len(df.Index)),
		ColNames: append([]string{}, df.ColNames...),
		Vals:     make([][]float64, len(df.Vals)),
	}
	for colIdx := range res.Vals {
		res.Vals[colIdx] = make([]float64, 0, len(df.Index))
	}

rows:
	for row := range df.Index {
		for _, col := range df.Vals {
			if !keep(col[row]) {
				continue rows
			}
		}
		res.Index = append(res.Index, df.Index[row])
		for colIdx, col := range df.Vals {
			res.Vals[colIdx] = append(res.Vals[colIdx], col[row])
		}
	}

	return res
}

// End returns the last time in the DataFrame
func (df *DataFrame[T]) End() time.Time {
	if len(df.Index) == 0 {
		return time.Time{}
	}

	if lastDate, ok := any(df.Index[len(df.Index)-1]).(time.Time); ok {
		return lastDate
	}

	return time.Time{}
}

// Fill replaces every NaN in the dataframe with val, in place
func (df *DataFrame[T]) Fill(val float64) *DataFrame[T] {
	for _, col := range df.Vals {
		for rowIdx, v := range col {
			if math.IsNaN(v) {
				col[rowIdx] = val
			}
		}
	}
	return df
}

// Lag shifts the dataframe down by n rows, replacing shifted values by math.NaN(), and returns a new dataframe.
// Row t of the result holds row t-n of the input.
func (df *DataFrame[T]) Lag(n int) *DataFrame[T] {
	if n < 0 {
		log.Panic().Int("N", n).Msg("lag must be non-negative")
	}

	df = df.Copy()
	for idx, col := range df.Vals {
		l := len(col)
		shifted := make([]float64, l)
		for rowIdx := range shifted {
			if rowIdx < n {
				shifted[rowIdx] = math.NaN()
			} else {
				shifted[rowIdx] = col[rowIdx-n]
			}
		}
		df.Vals[idx] = shifted
	}
	return df
}

// Len returns the number of rows in the dataframe
func (df *DataFrame[T]) Len() int {
	return len(df.Index)
}

// Start returns the first date of the dataframe
func (df *DataFrame[T]) Start() time.Time {
	if len(df.Index) == 0 {
		return time.Time{}
	}

	if firstDate, ok := any(df.Index[0]).(time.Time); ok {
		return firstDate
	}

	return time.Time{}
}

// Table renders an ASCII formatted table of the dataframe
func (df *DataFrame[T]) Table() string {
	if len(df.Index) == 0 {
		return "<NO DATA>" // nothing to do as there is no data available in the dataframe
	}

	// construct table header
	tableCols := append([]string{"Index"}, df.ColNames...)

	// initialize table
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for idx, rowIdx := range df.Index {
		row := make([]string, 0, len(df.Vals)+1)

		switch v := any(rowIdx).(type) {
		case time.Time:
			row = append(row, v.Format("2006-01-02"))
		case string:
			row = append(row, v)
		}

		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[idx]))
		}

		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Trim the dataframe to the specified date range (inclusive). Values are shared with
// the source dataframe, not copied.
// NOTE: If T is not time.Time then the dataframe is returned unchanged
func (df *DataFrame[T]) Trim(begin, end time.Time) *DataFrame[T] {
	df2 := &DataFrame[T]{
		ColNames: df.ColNames,
		Index:    df.Index,
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(df2.Vals, df.Vals)

	emptyVals := func() [][]float64 {
		vals := make([][]float64, len(df.Vals))
		for idx := range vals {
			vals[idx] = []float64{}
		}
		return vals
	}

	// special case 0: requested range is invalid
	if end.Before(begin) {
		df2.Index = []T{}
		df2.Vals = emptyVals()
		return df2
	}

	// special case 1: data frame is empty
	if df.Len() == 0 {
		return df2
	}

	// ensure that index is a date index
	first, ok := any(df.Index[0]).(time.Time)
	if !ok {
		return df2
	}
	last := any(df.Index[len(df.Index)-1]).(time.Time)

	// special case 2: requested range does not overlap the dataframe
	if end.Before(first) || begin.After(last) {
		df2.Index = []T{}
		df2.Vals = emptyVals()
		return df2
	}

	// use binary search to find the first row >= begin and the first row > end
	beginIdx := sort.Search(len(df.Index), func(i int) bool {
		return !any(df.Index[i]).(time.Time).Before(begin)
	})

	endIdx := sort.Search(len(df.Index), func(i int) bool {
		return any(df.Index[i]).(time.Time).After(end)
	})

	df2.Index = df.Index[beginIdx:endIdx]
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}
