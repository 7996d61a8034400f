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

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campusflow/platform/shared/logger"
)

const (
	auditStatusSuccess = "success"
	auditStatusBlocked = "blocked"
)

// AuditEntry is one immutable row in the audit log: a completed request
// attempt, accepted or blocked. Never mutated after insert.
type AuditEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	UserID         string    `json:"user_id"`
	OrgID          string    `json:"org_id,omitempty"`
	ToolID         string    `json:"tool_id"`
	Capability     string    `json:"capability"`
	Model          string    `json:"model,omitempty"`
	Status         string    `json:"status"`
	MessageChars   int       `json:"message_chars"`
	ResponseChars  int       `json:"response_chars"`
	LatencyMs      int64     `json:"latency_ms"`
	RulesEvaluated int       `json:"rules_evaluated"`
	KnowledgeUsed  bool      `json:"knowledge_used"`
	TenantKeyUsed  bool      `json:"tenant_key_used"`
	ToolCallCount  int       `json:"tool_call_count"`
	CostEstimate   int       `json:"cost_estimate"`
	SessionID      string    `json:"session_id,omitempty"`
}

// AuditRecorder writes the append-only audit log. Writes are best-effort:
// a failure is logged and never prevents the primary response.
type AuditRecorder struct {
	db  *sql.DB
	log *logger.Logger
}

// NewAuditRecorder creates a new audit recorder.
func NewAuditRecorder(db *sql.DB) *AuditRecorder {
	return &AuditRecorder{
		db:  db,
		log: logger.New("gateway-audit"),
	}
}

// Record inserts one audit entry. Fills id and timestamp when absent.
func (a *AuditRecorder) Record(ctx context.Context, entry *AuditEntry) {
	if entry.ID == "" {
		entry.ID = generateAuditID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO ai_audit_log (
			id, timestamp, request_id, user_id, org_id, tool_id, capability,
			model, status, message_chars, response_chars, latency_ms,
			rules_evaluated, knowledge_used, tenant_key_used, tool_call_count,
			cost_estimate, session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := a.db.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, entry.RequestID, entry.UserID,
		nullableOrg(entry.OrgID), entry.ToolID, entry.Capability,
		entry.Model, entry.Status, entry.MessageChars, entry.ResponseChars,
		entry.LatencyMs, entry.RulesEvaluated, entry.KnowledgeUsed,
		entry.TenantKeyUsed, entry.ToolCallCount, entry.CostEstimate,
		nullString(entry.SessionID),
	)
	if err != nil {
		a.log.Warn(entry.OrgID, entry.RequestID, "Audit write failed", map[string]interface{}{
			"status": entry.Status,
			"error":  err.Error(),
		})
	}
}

// ListByOrg returns a tenant's audit entries, newest first.
func (a *AuditRecorder) ListByOrg(ctx context.Context, orgID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, COALESCE(request_id, ''), user_id, COALESCE(org_id, ''),
		       tool_id, capability, COALESCE(model, ''), status, message_chars,
		       response_chars, latency_ms, rules_evaluated, knowledge_used,
		       tenant_key_used, tool_call_count, cost_estimate, COALESCE(session_id, '')
		FROM ai_audit_log
		WHERE org_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := a.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.RequestID, &e.UserID, &e.OrgID,
			&e.ToolID, &e.Capability, &e.Model, &e.Status, &e.MessageChars,
			&e.ResponseChars, &e.LatencyMs, &e.RulesEvaluated, &e.KnowledgeUsed,
			&e.TenantKeyUsed, &e.ToolCallCount, &e.CostEstimate, &e.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// generateAuditID creates an audit id in the form
// "audit_<timestamp>_<random8chars>".
func generateAuditID() string {
	return fmt.Sprintf("audit_%d_%s", time.Now().Unix(), generateRandomString(8))
}

// nullString converts an empty string to NULL for insertion.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
