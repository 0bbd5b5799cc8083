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

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/dartboard/benchmark"
	"github.com/spf13/cobra"
)

var (
	benchStart string
	benchEnd   string
)

func init() {
	benchmarkCmd.Flags().StringVar(&benchStart, "start", "", "First day of the window (YYYY-MM-DD, default: 10 years ago)")
	benchmarkCmd.Flags().StringVar(&benchEnd, "end", "", "Last day of the window (YYYY-MM-DD, default: today)")

	rootCmd.AddCommand(benchmarkCmd)
}

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark TICKER...",
	Short: "Show the Sharpe ratio of reference indexes",
	Long: `Fetch the average risk-free rate and the monthly performance of each ticker over the
window, and print the Sharpe ratio and annualized return the simulation compares
against.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		begin, err := parseDateFlag("start", benchStart)
		if err != nil {
			return err
		}
		end, err := parseDateFlag("end", benchEnd)
		if err != nil {
			return err
		}
		if end.IsZero() {
			now := time.Now()
			end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		}
		if begin.IsZero() {
			begin = end.AddDate(-10, 0, 0)
		}
		if end.Before(begin) {
			return fmt.Errorf("--end %s is before --start %s", end.Format("2006-01-02"), begin.Format("2006-01-02"))
		}

		tickers := make([]string, len(args))
		for idx, arg := range args {
			tickers[idx] = strings.ToUpper(strings.TrimSpace(arg))
		}

		provider := benchmark.NewProvider()
		rf := provider.RiskFreeRate(ctx, begin, end)
		refs := benchmark.Compare(ctx, provider, tickers, begin, end, rf.Value)

		rfNote := ""
		if rf.Fallback {
			rfNote = " (default)"
		}
		fmt.Printf("Window:         %s to %s\n", begin.Format("2006-01-02"), end.Format("2006-01-02"))
		fmt.Printf("Risk-free rate: %.2f%%%s\n\n", rf.Value*100, rfNote)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Ticker", "Description", "Sharpe", "Annual Return", "Months", "Note"})
		table.SetBorder(false)
		for _, ref := range refs {
			note := ""
			if ref.Fallback && ref.Err != nil {
				note = ref.Err.Error()
			}
			table.Append([]string{
				ref.Ticker,
				ref.Description,
				fmt.Sprintf("%.3f", ref.Sharpe),
				fmt.Sprintf("%.2f%%", ref.AnnualReturn*100),
				fmt.Sprintf("%d", ref.Months),
				note,
			})
		}
		table.Render()
		return nil
	},
}
