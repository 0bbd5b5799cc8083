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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/database"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"github.com/penny-vault/dartboard/universe"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	shutdownTrace func(context.Context) error
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dartboard/config.toml)")

	// Logging configuration
	viper.BindEnv("log.level", "DARTBOARD_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "DARTBOARD_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "DARTBOARD_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	rootCmd.PersistentFlags().Bool("log-pretty", true, "Pretty print log output")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Universe source
	rootCmd.PersistentFlags().String("data", "", "CSV file of monthly security returns (DATE,TICKER,total_ret,mkt_cap)")
	viper.BindPFlag("universe.file", rootCmd.PersistentFlags().Lookup("data"))

	rootCmd.PersistentFlags().Bool("db", false, "Load the universe from PostgreSQL instead of a CSV file")
	viper.BindPFlag("universe.db", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.PersistentFlags().String("db-table", universe.DefaultTable, "Table holding the monthly security returns")
	viper.BindPFlag("universe.table", rootCmd.PersistentFlags().Lookup("db-table"))

	viper.SetDefault("universe.min_market_cap", 10_000)
	rootCmd.PersistentFlags().Float64("min-market-cap", 10_000, "Drop rows with a market cap at or below this value (in cap units)")
	viper.BindPFlag("universe.min_market_cap", rootCmd.PersistentFlags().Lookup("min-market-cap"))

	viper.SetDefault("universe.cap_unit", "thousands")
	rootCmd.PersistentFlags().String("cap-unit", "thousands", "Unit of the market cap column: dollars, thousands, or millions")
	viper.BindPFlag("universe.cap_unit", rootCmd.PersistentFlags().Lookup("cap-unit"))

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Reference data
	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token used to fetch benchmark prices")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	viper.SetDefault("benchmark.default_rf", 0.03)

	// Cache
	viper.SetDefault("cache.ttl", 3600)
	viper.SetDefault("cache.local_size", 128)
	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().Bool("redis", false, "Share cached reference data through redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("redis"))

	// Simulation defaults
	viper.SetDefault("simulation.trials", 500)
	viper.SetDefault("simulation.stocks", 30)
	viper.SetDefault("simulation.min_trials", 100)
	viper.SetDefault("simulation.max_trials", 5000)
	viper.SetDefault("simulation.min_stocks", 10)
	viper.SetDefault("simulation.max_stocks", 100)
}

// initConfig reads the config file and environment; a missing config file is not an
// error
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
		viper.AddConfigPath("/etc/dartboard/")
		viper.AddConfigPath("$HOME/.config/dartboard")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("dartboard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()

	common.SetupLogging()

	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("could not read config file")
		}
	} else {
		log.Debug().Str("ConfigFile", viper.ConfigFileUsed()).Msg("loaded config")
	}

	if err := common.SetupCache(); err != nil {
		log.Warn().Err(err).Msg("cache setup failed; using local cache only")
	}

	shutdownTrace, err = opentelemetry.Setup()
	if err != nil {
		log.Warn().Err(err).Msg("could not configure tracing")
	}
}

var rootCmd = &cobra.Command{
	Use:     "dartboard",
	Version: common.CurrentVersion.String(),
	Short:   "Monte Carlo test of random stock portfolios",
	Long: `Dartboard draws thousands of random portfolios from a universe of monthly stock
returns, scores each by its Sharpe ratio under equal and capitalization weighting, and
asks whether equal weighting wins and where reference indexes fall in the distribution.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTrace == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTrace(ctx); err != nil {
			log.Warn().Err(err).Msg("could not flush traces")
		}
	},
}

// Execute runs the root command; an interrupt cancels the command's context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// panelOptions builds universe options from the `universe.*` config keys
func panelOptions() (universe.Options, error) {
	opts := universe.DefaultOptions()
	opts.MinMarketCap = viper.GetFloat64("universe.min_market_cap")

	unit, err := universe.ParseCapUnit(viper.GetString("universe.cap_unit"))
	if err != nil {
		return opts, err
	}
	opts.CapUnit = unit
	return opts, nil
}

// loadPanel loads the universe from the configured source: PostgreSQL when
// `universe.db` is set, otherwise the CSV file in `universe.file`
func loadPanel(ctx context.Context) (*universe.Panel, error) {
	opts, err := panelOptions()
	if err != nil {
		return nil, err
	}

	subLog := log.With().Float64("MinMarketCap", opts.MinMarketCap).Str("CapUnit", opts.CapUnit.String()).Logger()

	var panel *universe.Panel
	if viper.GetBool("universe.db") {
		if err := database.Connect(ctx); err != nil {
			return nil, err
		}
		panel, err = universe.LoadDB(ctx, universe.DBOptions{
			Options: opts,
			Table:   viper.GetString("universe.table"),
		})
		if open := database.OpenTransactions(); open > 0 {
			subLog.Warn().Int("OpenTransactions", open).Msg("universe load left transactions open")
		}
	} else {
		fn := viper.GetString("universe.file")
		if fn == "" {
			return nil, errors.New("no universe source: pass --data FILE or --db")
		}
		subLog = subLog.With().Str("File", fn).Logger()
		panel, err = universe.LoadFile(ctx, fn, opts)
	}
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not load universe")
		return nil, err
	}

	if panel.Empty() {
		return nil, universe.ErrNoObservations
	}

	begin, end, _ := panel.Bounds()
	subLog.Info().Int("Tickers", panel.NumTickers()).Int("Periods", panel.NumPeriods()).
		Time("Begin", begin).Time("End", end).Msg("loaded universe")

	return panel, nil
}

// parseDateFlag accepts an empty string (zero time) or YYYY-MM-DD
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}
