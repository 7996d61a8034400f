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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	db.Mock.ExpectExec("INSERT INTO ai_audit_log").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &AuditEntry{
		UserID:     "user-1",
		OrgID:      "org-123",
		ToolID:     "lesson-planner",
		Capability: "content_generation",
		Status:     auditStatusSuccess,
	}

	recorder := NewAuditRecorder(db.DB)
	recorder.Record(context.Background(), entry)

	if !strings.HasPrefix(entry.ID, "audit_") {
		t.Errorf("Entry id = %q, want audit_ prefix", entry.ID)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp not filled")
	}

	if err := db.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

// TestRecordFailureIsSwallowed verifies the best-effort contract: an
// insert failure is logged, never returned.
func TestRecordFailureIsSwallowed(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	db.Mock.ExpectExec("INSERT INTO ai_audit_log").
		WillReturnError(fmt.Errorf("table locked"))

	recorder := NewAuditRecorder(db.DB)
	// Must not panic or surface the error.
	recorder.Record(context.Background(), &AuditEntry{
		UserID: "user-1",
		ToolID: "lesson-planner",
		Status: auditStatusBlocked,
	})
}

func TestListByOrg(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "request_id", "user_id", "org_id", "tool_id",
		"capability", "model", "status", "message_chars", "response_chars",
		"latency_ms", "rules_evaluated", "knowledge_used", "tenant_key_used",
		"tool_call_count", "cost_estimate", "session_id",
	}).
		AddRow("audit_2_b", now, "req_2", "user-1", "org-123", "lesson-planner",
			"content_generation", "openai/gpt-4o", "success", 40, 900, 1200, 3, true, false, 0, 42, "sess_2").
		AddRow("audit_1_a", now.Add(-time.Minute), "req_1", "user-2", "org-123", "image-studio",
			"image_generation", "", "blocked", 25, 0, 0, 3, false, false, 0, 0, "sess_1")
	db.Mock.ExpectQuery("FROM ai_audit_log").
		WithArgs("org-123", 100).
		WillReturnRows(rows)

	recorder := NewAuditRecorder(db.DB)
	entries, err := recorder.ListByOrg(context.Background(), "org-123", 0)
	if err != nil {
		t.Fatalf("ListByOrg() error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "audit_2_b" {
		t.Errorf("Expected newest first, got %q", entries[0].ID)
	}
	if entries[1].Status != auditStatusBlocked {
		t.Errorf("Status = %q", entries[1].Status)
	}
	if !entries[0].KnowledgeUsed || entries[0].CostEstimate != 42 {
		t.Errorf("Entry fields not carried: %+v", entries[0])
	}
}

func TestListByOrgLimitClamped(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	db.Mock.ExpectQuery("FROM ai_audit_log").
		WithArgs("org-123", 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "timestamp", "request_id", "user_id", "org_id", "tool_id",
			"capability", "model", "status", "message_chars", "response_chars",
			"latency_ms", "rules_evaluated", "knowledge_used", "tenant_key_used",
			"tool_call_count", "cost_estimate", "session_id",
		}))

	recorder := NewAuditRecorder(db.DB)
	if _, err := recorder.ListByOrg(context.Background(), "org-123", 10000); err != nil {
		t.Fatalf("ListByOrg() error: %v", err)
	}

	if err := db.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
