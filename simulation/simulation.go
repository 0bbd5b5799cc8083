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

package simulation

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/dartboard/observability/opentelemetry"
	"github.com/penny-vault/dartboard/performance"
	"github.com/penny-vault/dartboard/universe"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/sampleuv"
)

type batch struct {
	start int
	end   int
}

// Validate checks params against a panel without running anything
func (params Params) Validate(panel *universe.Panel) error {
	if panel.Empty() {
		return ErrEmptyPanel
	}
	if params.Trials <= 0 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveTrials, params.Trials)
	}
	if params.PortfolioSize <= 0 || params.PortfolioSize >= panel.NumTickers() {
		return fmt.Errorf("%w: portfolio size %d, universe has %d tickers", ErrPortfolioTooLarge, params.PortfolioSize, panel.NumTickers())
	}
	if panel.NumPeriods() < performance.MinPeriods {
		return fmt.Errorf("%w: %d periods, need at least %d", ErrWindowTooShort, panel.NumPeriods(), performance.MinPeriods)
	}
	return nil
}

// Draws generates trials independent selections of k distinct column indices out of
// universe, each uniformly at random without replacement. Draws depend only on the
// seed.
func Draws(trials, k, universe int, seed uint64) [][]int {
	src := rand.NewSource(seed)
	draws := make([][]int, trials)
	for idx := range draws {
		draws[idx] = make([]int, k)
		sampleuv.WithoutReplacement(draws[idx], universe, src)
	}
	return draws
}

// Run draws params.Trials random portfolios of params.PortfolioSize tickers from the
// panel and computes the Sharpe ratio of each under equal and capitalization
// weighting. Trials are evaluated concurrently; results are identical for a given
// seed regardless of the number of workers. progress may be nil.
func Run(ctx context.Context, panel *universe.Panel, params Params, progress ProgressFunc) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "simulation.Run")
	defer span.End()

	if err := params.Validate(panel); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid parameters")
		return nil, err
	}

	startTime := time.Now()

	if params.Seed == 0 {
		params.Seed = uint64(startTime.UnixNano())
	}
	if params.Workers <= 0 {
		params.Workers = runtime.NumCPU()
	}
	if params.ProgressEvery <= 0 {
		params.ProgressEvery = DefaultProgressEvery
	}

	begin, end, _ := panel.Bounds()
	result := &Result{
		RunID:         uuid.New(),
		EqualWeight:   make([]float64, params.Trials),
		CapWeight:     make([]float64, params.Trials),
		Samples:       make([][]string, 0, SampleCount),
		Trials:        params.Trials,
		PortfolioSize: params.PortfolioSize,
		Universe:      panel.NumTickers(),
		Periods:       panel.NumPeriods(),
		RiskFreeRate:  params.RiskFreeRate,
		Seed:          params.Seed,
		Start:         begin,
		End:           end,
	}

	subLog := log.With().Str("RunID", result.RunID.String()).Int("Trials", params.Trials).
		Int("PortfolioSize", params.PortfolioSize).Int("Universe", result.Universe).
		Int("Periods", result.Periods).Uint64("Seed", params.Seed).Logger()
	subLog.Info().Int("Workers", params.Workers).Msg("starting simulation")

	span.SetAttributes(
		attribute.String("RunID", result.RunID.String()),
		attribute.Int("Trials", params.Trials),
		attribute.Int("PortfolioSize", params.PortfolioSize),
		attribute.Int("Universe", result.Universe),
		attribute.Int("Periods", result.Periods),
	)

	draws := Draws(params.Trials, params.PortfolioSize, result.Universe, params.Seed)
	tickers := panel.Tickers()
	for idx := 0; idx < params.Trials && idx < SampleCount; idx++ {
		sample := make([]string, len(draws[idx]))
		for jj, col := range draws[idx] {
			sample[jj] = tickers[col]
		}
		result.Samples = append(result.Samples, sample)
	}

	m := prepare(panel)
	batches := make(chan batch)
	done := make(chan int)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		for start := 0; start < params.Trials; start += params.ProgressEvery {
			if err := gctx.Err(); err != nil {
				return err
			}
			end := start + params.ProgressEvery
			if end > params.Trials {
				end = params.Trials
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case batches <- batch{start: start, end: end}:
			}
		}
		return nil
	})

	for w := 0; w < params.Workers; w++ {
		g.Go(func() error {
			k := newKernel(m, params.RiskFreeRate)
			for b := range batches {
				for idx := b.start; idx < b.end; idx++ {
					result.EqualWeight[idx], result.CapWeight[idx] = k.trial(draws[idx])
				}
				done <- b.end - b.start
			}
			return nil
		})
	}

	var runErr error
	go func() {
		runErr = g.Wait()
		close(done)
	}()

	// progress is only reported from this goroutine
	completed := 0
	for count := range done {
		completed += count
		if progress != nil && completed < params.Trials {
			progress(float64(completed) / float64(params.Trials))
		}
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "simulation cancelled")
		subLog.Warn().Err(runErr).Int("Completed", completed).Msg("simulation cancelled")
		return nil, runErr
	}

	if progress != nil {
		progress(1.0)
	}

	result.Elapsed = time.Since(startTime)
	subLog.Info().Dur("Elapsed", result.Elapsed).Msg("simulation complete")

	return result, nil
}
