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
	"database/sql"
	"log"
)

// UsageRecorder handles recording usage events to the database
type UsageRecorder struct {
	db *sql.DB
}

// NewUsageRecorder creates a new usage recorder with a database connection
func NewUsageRecorder(db *sql.DB) *UsageRecorder {
	return &UsageRecorder{db: db}
}

// CompletionEvent represents a completion-provider call to be recorded
type CompletionEvent struct {
	OrgID            string
	UserID           string
	ToolID           string
	InstanceID       string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMs        int64
	HTTPStatusCode   int
	TenantKey        bool
}

// RecordCompletion records a completion-provider call with token usage and
// estimated cost. Errors are logged but never block the response path.
func (r *UsageRecorder) RecordCompletion(event CompletionEvent) error {
	if r.db == nil {
		return nil
	}

	costCents := CalculateCost(event.Model, event.PromptTokens, event.CompletionTokens)

	_, err := r.db.Exec(`
		INSERT INTO usage_events (
			org_id, user_id, tool_id, event_type, instance_id,
			model, prompt_tokens, completion_tokens, total_tokens,
			estimated_cost, latency_ms, http_status_code, tenant_key
		) VALUES ($1, $2, $3, 'completion', $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, nullString(event.OrgID), event.UserID, event.ToolID, event.InstanceID,
		event.Model, event.PromptTokens, event.CompletionTokens,
		event.TotalTokens, costCents, event.LatencyMs, event.HTTPStatusCode,
		event.TenantKey)

	if err != nil {
		log.Printf("[USAGE] Failed to record completion event: %v", err)
	}

	return err
}

// nullString converts an empty string to NULL for database insertion
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
