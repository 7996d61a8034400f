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

/*
Package usage provides token pricing and usage metering for CampusFlow.

# Overview

The usage package estimates completion costs from a per-model pricing
table and records completion events to PostgreSQL for analytics. Cost
recording is best-effort: failures are logged and never block a response.

# Cost Estimation

	cost := usage.CalculateCost("google/gemini-2.5-flash", 1200, 400)

Costs are integers in hundredths of a cent to avoid floating point
precision issues.

# Usage Recording

	recorder := usage.NewUsageRecorder(db)
	_ = recorder.RecordCompletion(usage.CompletionEvent{
	    OrgID:            "org-123",
	    UserID:           "user-456",
	    ToolID:           "lesson-planner",
	    Model:            "google/gemini-2.5-flash",
	    PromptTokens:     1200,
	    CompletionTokens: 400,
	    TotalTokens:      1600,
	    LatencyMs:        845,
	    HTTPStatusCode:   200,
	})
*/
package usage
