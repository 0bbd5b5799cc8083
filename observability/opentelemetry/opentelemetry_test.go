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

package opentelemetry_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/dartboard/observability/opentelemetry"
)

var _ = Describe("Tracing setup", func() {
	AfterEach(func() {
		viper.Set("otlp.endpoint", "")
		viper.Set("otlp.sample_ratio", 0)
	})

	It("is a no-op without an endpoint", func() {
		shutdown, err := opentelemetry.Setup()
		Expect(err).To(BeNil())
		Expect(shutdown(context.Background())).To(Succeed())
	})

	DescribeTable("chooses a sampler from the configured ratio",
		func(ratio float64, description string) {
			viper.Set("otlp.sample_ratio", ratio)
			Expect(opentelemetry.SamplerFromConfig().Description()).To(ContainSubstring(description))
		},
		Entry("unset", 0.0, "AlwaysOnSampler"),
		Entry("everything", 1.0, "AlwaysOnSampler"),
		Entry("a fraction", 0.25, "TraceIDRatioBased{0.25}"),
	)
})
