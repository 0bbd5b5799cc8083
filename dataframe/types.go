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
	"errors"
	"time"
)

// DataFrame stores a table of values organized by an index (typically a date). The
// vals array is column major - e.g.,
//
//	      AAPL  MSFT
//	Jan   1     4
//	Feb   2     5
//	Mar   3     6
//
// Vals[0] = [1 2 3]
// Vals[1][0] = 4
type DataFrame[T IndexType] struct {
	Index    []T
	ColNames []string
	Vals     [][]float64
}

// IndexType lists the types a dataframe may be indexed by
type IndexType interface {
	time.Time | string
}

var (
	ErrDateIndexNotAligned = errors.New("date index does not align")
	ErrColumnNotFound      = errors.New("column not found")
)

// New creates a dataframe with the given index and column names where every value
// is initialized to zero
func New[T IndexType](index []T, colNames []string) *DataFrame[T] {
	vals := make([][]float64, len(colNames))
	for idx := range vals {
		vals[idx] = make([]float64, len(index))
	}

	return &DataFrame[T]{
		Index:    index,
		ColNames: colNames,
		Vals:     vals,
	}
}
