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

import "fmt"

// Model pricing as of mid 2026.
// Prices stored in hundredths of a cent per 1K tokens to avoid floating
// point issues. All prices are USD.

// ModelPricing contains pricing for a specific model
type ModelPricing struct {
	PromptCostPer1K     int // hundredths of a cent per 1K prompt tokens
	CompletionCostPer1K int // hundredths of a cent per 1K completion tokens
}

// modelPricing maps fully-qualified model ids to pricing. Model ids carry
// the provider family prefix used throughout the platform.
var modelPricing = map[string]ModelPricing{
	// OpenAI
	"openai/gpt-4o":      {250, 1000}, // $0.0025/$0.010 per 1K tokens
	"openai/gpt-4o-mini": {15, 60},    // $0.00015/$0.0006 per 1K tokens
	"openai/gpt-4.1":     {200, 800},  // $0.002/$0.008 per 1K tokens

	// Anthropic
	"anthropic/claude-sonnet-4":   {300, 1500}, // $0.003/$0.015 per 1K tokens
	"anthropic/claude-3-5-haiku":  {80, 400},   // $0.0008/$0.004 per 1K tokens

	// Google
	"google/gemini-2.5-flash": {30, 250},   // $0.0003/$0.0025 per 1K tokens
	"google/gemini-2.5-pro":   {125, 1000}, // $0.00125/$0.010 per 1K tokens

	// Default fallback pricing (conservative estimate)
	"default": {300, 1500},
}

// CalculateCost calculates the estimated cost for a completion request.
// Returns cost in hundredths of a cent (integer) to avoid floating point
// precision issues.
func CalculateCost(modelID string, promptTokens, completionTokens int) int {
	pricing, ok := modelPricing[modelID]
	if !ok {
		pricing = modelPricing["default"]
	}

	promptCost := (promptTokens * pricing.PromptCostPer1K) / 1000
	completionCost := (completionTokens * pricing.CompletionCostPer1K) / 1000

	return promptCost + completionCost
}

// GetModelPricing returns the pricing for a specific model id.
// This is useful for displaying pricing information to tenant admins.
func GetModelPricing(modelID string) (ModelPricing, bool) {
	pricing, ok := modelPricing[modelID]
	return pricing, ok
}

// FormatCostToDollars converts hundredths of a cent to a dollar string
// (e.g., 13500 -> "$1.35")
func FormatCostToDollars(hundredthsCents int) string {
	dollars := float64(hundredthsCents) / 10000.0
	return fmt.Sprintf("$%.4f", dollars)
}
