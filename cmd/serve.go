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
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/common"
	"github.com/penny-vault/dartboard/database"
	"github.com/penny-vault/dartboard/handler"
	"github.com/penny-vault/dartboard/middleware"
	"github.com/penny-vault/dartboard/router"
	"github.com/penny-vault/dartboard/universe"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Profile bool
	Trace   bool
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.api_key", "DARTBOARD_API_KEY")
	serveCmd.Flags().String("api-key", "", "Key clients must present; blank disables authentication")
	viper.BindPFlag("server.api_key", serveCmd.Flags().Lookup("api-key"))

	viper.SetDefault("server.cors_origins", "*")

	serveCmd.Flags().BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
	serveCmd.Flags().BoolVar(&Trace, "trace", false, "Trace program execution and save in trace.out")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dartboard API server",
	Long:  `Run HTTP server that simulates random portfolios on request`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Error().Err(err).Msg("could not create cpu profile")
				return err
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Error().Err(err).Msg("could not start cpu profile")
				return err
			}
			defer pprof.StopCPUProfile()
		}

		if Trace {
			f, err := os.Create("trace.out")
			if err != nil {
				log.Error().Err(err).Msg("failed to create trace output file")
				return err
			}
			defer func() {
				if err := f.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close trace file")
				}
			}()

			if err := trace.Start(f); err != nil {
				log.Error().Err(err).Msg("failed to start trace")
				return err
			}
			defer trace.Stop()
		}

		ctx := cmd.Context()

		panel, err := loadPanel(ctx)
		if err != nil {
			return err
		}

		provider := benchmark.NewProvider()
		handler.Setup(panel, provider)
		log.Info().Msg("initialized universe")

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			AppName:     common.ProgramName,
			JSONEncoder: json.Marshal,
		})

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Error().Err(err).Msg("error shutting down server")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD",
		}
		app.Use(cors.New(corsConfig))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app, viper.GetString("server.api_key"))

		// Keep the risk-free rate for the universe's window warm in the cache
		scheduler := gocron.NewScheduler(common.GetTimezone())
		if _, err := scheduler.Every(1).Hours().Do(refreshRiskFree, panel); err != nil {
			log.Error().Err(err).Msg("could not schedule risk-free refresh")
			return err
		}
		scheduler.StartAsync()
		defer scheduler.Stop()

		// Start server on http://${heroku-url}:${port}
		err = app.Listen(":" + viper.GetString("server.port"))

		// report transaction leaks on shutdown
		if viper.GetBool("universe.db") {
			if open := database.OpenTransactions(); open > 0 {
				log.Warn().Int("OpenTransactions", open).Msg("transactions open at shutdown")
			}
		}

		if err != nil {
			log.Error().Err(err).Msg("server stopped")
			return err
		}
		return nil
	},
}

// refreshRiskFree refetches the risk-free series for the panel's window and replaces
// the cached copy
func refreshRiskFree(panel *universe.Panel) {
	begin, end, ok := panel.Bounds()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	provider := benchmark.NewProvider()
	provider.Refresh = true
	rate := provider.RiskFreeRate(ctx, begin, end)
	if rate.Fallback {
		log.Warn().Err(rate.Err).Msg("risk-free refresh failed")
		return
	}
	log.Info().Float64("RiskFreeRate", rate.Value).Int("Observations", rate.Observations).Msg("refreshed risk-free rate")
}
