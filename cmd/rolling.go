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
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/simulation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	rollWindowYears int
	rollStepMonths  int
	rollSeed        uint64
	rollJSON        bool
)

func init() {
	rollingCmd.Flags().IntP("trials", "n", 100, "Number of random portfolios to draw per window")
	rollingCmd.Flags().IntP("stocks", "k", 30, "Number of stocks in each portfolio")
	rollingCmd.Flags().IntVar(&rollWindowYears, "window-years", 5, "Length of each window in years")
	rollingCmd.Flags().IntVar(&rollStepMonths, "step-months", simulation.DefaultStepMonths, "Months between window starts")
	rollingCmd.Flags().Uint64Var(&rollSeed, "seed", 0, "Random seed; 0 picks one from the clock")
	rollingCmd.Flags().BoolVar(&rollJSON, "json", false, "Print the windows as JSON")

	rootCmd.AddCommand(rollingCmd)
}

var rollingCmd = &cobra.Command{
	Use:   "rolling",
	Short: "Compare weighting schemes over rolling windows",
	Long: `Run a smaller simulation over successive windows of the universe to show how the
equal-weight versus cap-weight comparison changes through time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		trials, _ := cmd.Flags().GetInt("trials")
		stocks, _ := cmd.Flags().GetInt("stocks")
		if err := simulation.LimitsFromConfig().Check(trials, stocks); err != nil {
			return err
		}

		panel, err := loadPanel(ctx)
		if err != nil {
			return err
		}

		begin, end, _ := panel.Bounds()
		rf := benchmark.NewProvider().RiskFreeRate(ctx, begin, end)

		windows, err := simulation.Rolling(ctx, panel, simulation.RollingParams{
			Params: simulation.Params{
				Trials:        trials,
				PortfolioSize: stocks,
				RiskFreeRate:  rf.Value,
				Seed:          rollSeed,
			},
			WindowYears: rollWindowYears,
			StepMonths:  rollStepMonths,
		}, func(fraction float64) {
			fmt.Fprintf(os.Stderr, "\rwindows... %3.0f%%", fraction*100)
			if fraction >= 1 {
				fmt.Fprintln(os.Stderr)
			}
		})
		if err != nil {
			log.Error().Stack().Err(err).Msg("rolling analysis failed")
			return err
		}

		if rollJSON {
			return writeJSON(os.Stdout, windows)
		}

		if len(windows) == 0 {
			fmt.Println("universe is too short for a single window")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Start", "End", "EW Mean Sharpe", "CW Mean Sharpe", "EW Win %"})
		table.SetBorder(false)
		for _, w := range windows {
			table.Append([]string{
				w.Start.Format("2006-01-02"),
				w.End.Format("2006-01-02"),
				fmt.Sprintf("%.3f", w.EqualWeightMean),
				fmt.Sprintf("%.3f", w.CapWeightMean),
				fmt.Sprintf("%.1f", w.EqualWeightWinRate),
			})
		}
		table.Render()
		return nil
	},
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("could not encode json")
		return err
	}
	return nil
}
