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

package handler

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/dartboard/benchmark"
	"github.com/penny-vault/dartboard/universe"
	"github.com/rs/zerolog/log"
)

var (
	panel   *universe.Panel
	adapter benchmark.Adapter
	lock    sync.RWMutex
)

// Setup registers the universe panel and benchmark adapter the handlers serve from
func Setup(p *universe.Panel, a benchmark.Adapter) {
	lock.Lock()
	defer lock.Unlock()
	panel = p
	adapter = a
}

func state() (*universe.Panel, benchmark.Adapter) {
	lock.RLock()
	defer lock.RUnlock()
	return panel, adapter
}

type PingResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"API is alive"`
	Time    string `json:"time" example:"2021-06-19T08:09:10.115924-05:00"`
}

func Ping(c *fiber.Ctx) error {
	var response PingResponse
	now, err := time.Now().MarshalText()
	if err != nil {
		log.Error().Err(err).Msg("error while getting time in ping")
		response = PingResponse{
			Status:  "error",
			Message: err.Error(),
			Time:    string(now),
		}
	} else {
		response = PingResponse{
			Status:  "success",
			Message: "API is alive",
			Time:    string(now),
		}
	}
	return c.JSON(response)
}

// parseDate accepts an empty string (zero time) or YYYY-MM-DD
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func errorResponse(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": err.Error()})
}
