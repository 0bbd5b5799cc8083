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

package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/dartboard/simulation"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrialsFrame converts a result into a row-per-trial dataframe with the columns
// trial, equal_weight, and cap_weight
func TrialsFrame(res *simulation.Result) *dataframe.DataFrame {
	n := len(res.EqualWeight)
	trial := dataframe.NewSeriesInt64("trial", &dataframe.SeriesInit{Capacity: n})
	ew := dataframe.NewSeriesFloat64("equal_weight", &dataframe.SeriesInit{Capacity: n})
	cw := dataframe.NewSeriesFloat64("cap_weight", &dataframe.SeriesInit{Capacity: n})

	for idx := 0; idx < n; idx++ {
		trial.Append(int64(idx + 1))
		ew.Append(res.EqualWeight[idx])
		cw.Append(res.CapWeight[idx])
	}

	return dataframe.NewDataFrame(trial, ew, cw)
}

// WriteTrialsCSV exports the paired trial results as CSV
func WriteTrialsCSV(ctx context.Context, w io.Writer, res *simulation.Result) error {
	return exports.ExportToCSV(ctx, w, TrialsFrame(res))
}

// WriteText renders a plain-text summary of the analysis
func (a *Analysis) WriteText(w io.Writer) error {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "DARTBOARD SIMULATION REPORT\n")
	fmt.Fprintf(sb, "Run:            %s\n", a.RunID)
	fmt.Fprintf(sb, "Window:         %s to %s (%d months)\n", a.Start.Format("2006-01-02"), a.End.Format("2006-01-02"), a.Periods)
	fmt.Fprintf(sb, "Universe:       %d tickers\n", a.Universe)
	fmt.Fprintf(sb, "Trials:         %d portfolios of %d stocks (seed %d)\n", a.Trials, a.PortfolioSize, a.Seed)
	rfNote := ""
	if a.RiskFree.Fallback {
		rfNote = " (default)"
	}
	fmt.Fprintf(sb, "Risk-free rate: %.2f%%%s\n\n", a.RiskFree.Value*100, rfNote)

	summary := tablewriter.NewWriter(sb)
	summary.SetHeader([]string{"Statistic", "Equal Weight", "Cap Weight"})
	summary.SetBorder(false)
	rows := []struct {
		name   string
		ew, cw float64
	}{
		{"Mean Sharpe", a.EqualWeight.Mean, a.CapWeight.Mean},
		{"Std Dev", a.EqualWeight.StdDev, a.CapWeight.StdDev},
		{"Std Error", a.EqualWeight.StdErr, a.CapWeight.StdErr},
		{"95% CI Low", a.EqualWeight.CI95Low, a.CapWeight.CI95Low},
		{"95% CI High", a.EqualWeight.CI95High, a.CapWeight.CI95High},
		{"5th Pct", a.EqualWeight.P5, a.CapWeight.P5},
		{"25th Pct", a.EqualWeight.P25, a.CapWeight.P25},
		{"Median", a.EqualWeight.Median, a.CapWeight.Median},
		{"75th Pct", a.EqualWeight.P75, a.CapWeight.P75},
		{"95th Pct", a.EqualWeight.P95, a.CapWeight.P95},
	}
	for _, row := range rows {
		summary.Append([]string{row.name, fmt.Sprintf("%.4f", row.ew), fmt.Sprintf("%.4f", row.cw)})
	}
	summary.Render()

	fmt.Fprintf(sb, "\nEqual weight vs cap weight (paired t-test)\n")
	fmt.Fprintf(sb, "  t = %.4f, p = %.4f, Cohen's d = %.4f, significant: %t\n", a.Paired.T, a.Paired.P, a.Paired.CohensD, a.Paired.Significant)
	fmt.Fprintf(sb, "  equal weight beat cap weight in %.1f%% of trials\n\n", a.EqualWeightWinRate)

	if len(a.Benchmarks) > 0 {
		bench := tablewriter.NewWriter(sb)
		bench.SetHeader([]string{"Benchmark", "Sharpe", "Ann. Return", "EW Pct", "EW Win", "EW p", "CW Pct", "CW Win", "CW p"})
		bench.SetBorder(false)
		for _, p := range a.Benchmarks {
			name := p.Reference.Ticker
			if p.Reference.Fallback {
				name += " (n/a)"
			}
			bench.Append([]string{
				name,
				fmt.Sprintf("%.4f", p.Reference.Sharpe),
				fmt.Sprintf("%.2f%%", p.Reference.AnnualReturn*100),
				fmt.Sprintf("%.1f", p.EqualWeight.Percentile),
				fmt.Sprintf("%.1f%%", p.EqualWeight.WinRate),
				fmt.Sprintf("%.4f", p.EqualWeightTest.P),
				fmt.Sprintf("%.1f", p.CapWeight.Percentile),
				fmt.Sprintf("%.1f%%", p.CapWeight.WinRate),
				fmt.Sprintf("%.4f", p.CapWeightTest.P),
			})
		}
		bench.Render()
		sb.WriteString("\n")
	}

	if len(a.Samples) > 0 {
		sb.WriteString("Sample portfolios\n")
		for idx, sample := range a.Samples {
			fmt.Fprintf(sb, "  #%d: %s\n", idx+1, strings.Join(sample, ", "))
		}
		sb.WriteString("\n")
	}

	for _, warning := range a.Warnings {
		fmt.Fprintf(sb, "WARNING: %s\n", warning)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Histogram plots the distribution of x as bin counts. Non-finite values are ignored;
// an empty string is returned when nothing can be plotted.
func Histogram(x []float64, bins int, caption string) string {
	vals := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 || bins < 2 {
		return ""
	}

	lo, hi := floats.Min(vals), floats.Max(vals)
	if lo == hi {
		return ""
	}

	dividers := make([]float64, bins+1)
	// the upper bound must be strictly greater than every value
	floats.Span(dividers, lo, hi+(hi-lo)*1e-9)

	sort.Float64s(vals)
	counts := stat.Histogram(nil, dividers, vals, nil)

	return asciigraph.Plot(counts,
		asciigraph.Height(10),
		asciigraph.Width(bins),
		asciigraph.Caption(fmt.Sprintf("%s  [%.3f .. %.3f]", caption, lo, hi)),
	)
}
