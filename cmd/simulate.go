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

	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/report"
	"github.com/penny-vault/dartboard/simulation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	simStart      string
	simEnd        string
	simSeed       uint64
	simWorkers    int
	simBenchmarks []string
	simExportCSV  string
	simReport     string
	simJSON       bool
	simHistogram  bool
	simQuiet      bool
)

func init() {
	simulateCmd.Flags().IntP("trials", "n", 500, "Number of random portfolios to draw")
	viper.BindPFlag("simulation.trials", simulateCmd.Flags().Lookup("trials"))

	simulateCmd.Flags().IntP("stocks", "k", 30, "Number of stocks in each portfolio")
	viper.BindPFlag("simulation.stocks", simulateCmd.Flags().Lookup("stocks"))

	simulateCmd.Flags().StringVar(&simStart, "start", "", "First month to include (YYYY-MM-DD)")
	simulateCmd.Flags().StringVar(&simEnd, "end", "", "Last month to include (YYYY-MM-DD)")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "Random seed; 0 picks one from the clock")
	simulateCmd.Flags().IntVar(&simWorkers, "workers", 0, "Number of worker goroutines (default: number of CPUs)")
	simulateCmd.Flags().StringSliceVar(&simBenchmarks, "benchmarks", benchmark.DefaultTickers, "Reference indexes to place in the distribution")
	simulateCmd.Flags().StringVar(&simExportCSV, "export-csv", "", "Write one row per trial to this CSV file")
	simulateCmd.Flags().StringVar(&simReport, "report", "", "Write the text report to this file instead of stdout")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print the analysis as JSON")
	simulateCmd.Flags().BoolVar(&simHistogram, "histogram", false, "Plot the Sharpe ratio distributions")
	simulateCmd.Flags().BoolVarP(&simQuiet, "quiet", "q", false, "Do not print progress")

	rootCmd.AddCommand(simulateCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate random portfolios and compare weighting schemes",
	Long: `Draw random portfolios from the universe, compute the Sharpe ratio of each under
equal and capitalization weighting, and report the distributions, a paired test of
the difference, and where each benchmark falls.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		trials := viper.GetInt("simulation.trials")
		stocks := viper.GetInt("simulation.stocks")
		if err := simulation.LimitsFromConfig().Check(trials, stocks); err != nil {
			return err
		}

		begin, err := parseDateFlag("start", simStart)
		if err != nil {
			return err
		}
		end, err := parseDateFlag("end", simEnd)
		if err != nil {
			return err
		}

		panel, err := loadPanel(ctx)
		if err != nil {
			return err
		}

		tickers := append([]string{}, simBenchmarks...)
		common.ArrToUpper(tickers)

		var progress simulation.ProgressFunc
		if !simQuiet {
			progress = func(fraction float64) {
				fmt.Fprintf(os.Stderr, "\rsimulating... %3.0f%%", fraction*100)
				if fraction >= 1 {
					fmt.Fprintln(os.Stderr)
				}
			}
		}

		analysis, res, err := report.Build(ctx, panel, benchmark.NewProvider(), report.Request{
			Params: simulation.Params{
				Trials:        trials,
				PortfolioSize: stocks,
				Seed:          simSeed,
				Workers:       simWorkers,
			},
			Begin:      begin,
			End:        end,
			Benchmarks: tickers,
		}, progress)
		if err != nil {
			log.Error().Stack().Err(err).Msg("simulation failed")
			return err
		}

		if simExportCSV != "" {
			if err := exportTrials(cmd, simExportCSV, res); err != nil {
				return err
			}
		}

		var out io.Writer = os.Stdout
		if simReport != "" {
			fh, err := os.Create(simReport)
			if err != nil {
				log.Error().Err(err).Str("File", simReport).Msg("could not create report file")
				return err
			}
			defer fh.Close()
			out = fh
		}

		if simJSON {
			if err := writeJSON(out, analysis); err != nil {
				return err
			}
		} else if err := analysis.WriteText(out); err != nil {
			return err
		}

		if simHistogram {
			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, report.Histogram(res.EqualWeight, 40, "equal weight Sharpe ratio"))
			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, report.Histogram(res.CapWeight, 40, "cap weight Sharpe ratio"))
		}

		return nil
	},
}

func exportTrials(cmd *cobra.Command, fn string, res *simulation.Result) error {
	fh, err := os.Create(fn)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("could not create trial export")
		return err
	}
	defer fh.Close()

	if err := report.WriteTrialsCSV(cmd.Context(), fh, res); err != nil {
		log.Error().Err(err).Str("File", fn).Msg("could not write trial export")
		return err
	}

	log.Info().Str("File", fn).Int("Trials", res.Trials).Msg("exported trials")
	return nil
}
