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
	"time"

	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/simulation"
	"github.com/penny-vault/dartboard/universe"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Request describes one end-to-end run: restrict the panel to [Begin, End], look up
// the risk-free rate, then simulate and evaluate the benchmarks concurrently. A zero
// Begin or End means the panel's own bound.
type Request struct {
	Params     simulation.Params
	Begin      time.Time
	End        time.Time
	Benchmarks []string
}

// Build performs the run described by req and analyzes the result. The simulation's
// RiskFreeRate is replaced by the rate the adapter reports.
func Build(ctx context.Context, panel *universe.Panel, adapter benchmark.Adapter, req Request, progress simulation.ProgressFunc) (*Analysis, *simulation.Result, error) {
	begin, end, ok := panel.Bounds()
	if !ok {
		return nil, nil, simulation.ErrEmptyPanel
	}
	if !req.Begin.IsZero() && req.Begin.After(begin) {
		begin = req.Begin
	}
	if !req.End.IsZero() && req.End.Before(end) {
		end = req.End
	}

	sub := panel.Trim(begin, end)
	if err := req.Params.Validate(sub); err != nil {
		return nil, nil, err
	}

	// use the dates actually present so the benchmarks cover the same months
	begin, end, _ = sub.Bounds()

	rf := adapter.RiskFreeRate(ctx, begin, end)
	params := req.Params
	params.RiskFreeRate = rf.Value

	var (
		res  *simulation.Result
		refs []benchmark.Reference
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = simulation.Run(gctx, sub, params, progress)
		return err
	})
	g.Go(func() error {
		refs = benchmark.Compare(gctx, adapter, req.Benchmarks, begin, end, rf.Value)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		return nil, nil, err
	}

	analysis, err := Analyze(res, rf, refs)
	if err != nil {
		return nil, res, err
	}
	return analysis, res, nil
}
