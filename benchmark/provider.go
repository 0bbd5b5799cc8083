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

package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/penny-vault/dartboard/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultFredURL   = "https://fred.stlouisfed.org"
	DefaultTiingoURL = "https://api.tiingo.com"
)

// Provider is the Adapter backed by FRED (risk-free rate) and Tiingo (benchmark
// prices). Responses are cached with common.CacheSet for the configured TTL.
type Provider struct {
	FredURL     string
	TiingoURL   string
	Token       string
	DefaultRate float64
	NoCache     bool

	// Refresh skips cache reads but still stores responses, replacing stale entries
	Refresh bool

	client *http.Client
}

// NewProvider configures a Provider from viper: `benchmark.fred_url`,
// `benchmark.tiingo_url`, `benchmark.default_rf`, and `tiingo.token`
func NewProvider() *Provider {
	p := &Provider{
		FredURL:     viper.GetString("benchmark.fred_url"),
		TiingoURL:   viper.GetString("benchmark.tiingo_url"),
		Token:       viper.GetString("tiingo.token"),
		DefaultRate: DefaultRiskFreeRate,
		client:      &http.Client{Timeout: 30 * time.Second},
	}

	if viper.IsSet("benchmark.default_rf") {
		p.DefaultRate = viper.GetFloat64("benchmark.default_rf")
	}
	if p.FredURL == "" {
		p.FredURL = DefaultFredURL
	}
	if p.TiingoURL == "" {
		p.TiingoURL = DefaultTiingoURL
	}
	if p.Token == "" {
		log.Warn().Msg("tiingo.token is not set; benchmark lookups will fall back to zero performance")
	}

	return p
}

// get downloads url, consulting the cache under cacheKey first
func (p *Provider) get(ctx context.Context, url, cacheKey string) ([]byte, error) {
	if !p.NoCache && !p.Refresh {
		if body, err := common.CacheGet(ctx, cacheKey); err == nil {
			log.Debug().Str("CacheKey", cacheKey).Msg("cache hit")
			return body, nil
		} else if !errors.Is(err, common.ErrCacheMiss) {
			log.Warn().Err(err).Str("CacheKey", cacheKey).Msg("could not read cache")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := p.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %d", ErrStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if !p.NoCache {
		if err := common.CacheSet(ctx, cacheKey, body); err != nil {
			log.Warn().Err(err).Str("CacheKey", cacheKey).Msg("could not write cache")
		}
	}

	return body, nil
}
