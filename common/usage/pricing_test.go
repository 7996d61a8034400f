// Copyright 2026 CampusFlow
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

package usage

import (
	"testing"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name             string
		modelID          string
		promptTokens     int
		completionTokens int
		expected         int
	}{
		{
			name:             "GPT-4o basic",
			modelID:          "openai/gpt-4o",
			promptTokens:     100,
			completionTokens: 200,
			expected:         (100 * 250 / 1000) + (200 * 1000 / 1000), // 25 + 200
		},
		{
			name:             "Gemini flash",
			modelID:          "google/gemini-2.5-flash",
			promptTokens:     1000,
			completionTokens: 500,
			expected:         (1000 * 30 / 1000) + (500 * 250 / 1000), // 30 + 125
		},
		{
			name:             "Claude sonnet",
			modelID:          "anthropic/claude-sonnet-4",
			promptTokens:     500,
			completionTokens: 300,
			expected:         (500 * 300 / 1000) + (300 * 1500 / 1000), // 150 + 450
		},
		{
			name:             "Unknown model falls back to default",
			modelID:          "custom/some-model",
			promptTokens:     1000,
			completionTokens: 1000,
			expected:         (1000 * 300 / 1000) + (1000 * 1500 / 1000), // 300 + 1500
		},
		{
			name:             "Zero tokens",
			modelID:          "openai/gpt-4o",
			promptTokens:     0,
			completionTokens: 0,
			expected:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(tt.modelID, tt.promptTokens, tt.completionTokens)
			if got != tt.expected {
				t.Errorf("CalculateCost(%s, %d, %d) = %d, want %d",
					tt.modelID, tt.promptTokens, tt.completionTokens, got, tt.expected)
			}
		})
	}
}

func TestGetModelPricing(t *testing.T) {
	if _, ok := GetModelPricing("openai/gpt-4o"); !ok {
		t.Error("Expected pricing for openai/gpt-4o")
	}
	if _, ok := GetModelPricing("no/such-model"); ok {
		t.Error("Did not expect pricing for unknown model")
	}
}

func TestFormatCostToDollars(t *testing.T) {
	tests := []struct {
		cents    int
		expected string
	}{
		{13500, "$1.3500"},
		{0, "$0.0000"},
		{1, "$0.0001"},
		{10000, "$1.0000"},
	}

	for _, tt := range tests {
		if got := FormatCostToDollars(tt.cents); got != tt.expected {
			t.Errorf("FormatCostToDollars(%d) = %s, want %s", tt.cents, got, tt.expected)
		}
	}
}
