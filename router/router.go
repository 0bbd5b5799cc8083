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

package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/dartboard/handler"
	"github.com/penny-vault/dartboard/middleware"
)

// SetupRoutes registers the API routes on app. When apiKey is not empty every route
// except ping requires it.
func SetupRoutes(app *fiber.App, apiKey string) {
	// Setup the API routes
	api := app.Group("/api/v1")

	// Ping
	api.Get("/ping", handler.Ping)

	auth := middleware.APIKeyAuth(apiKey)

	// Simulation
	api.Post("/simulation", auth, handler.RunSimulation)

	// Benchmark
	api.Get("/benchmark/:ticker", auth, handler.Benchmark)
}
