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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var assignmentColumns = []string{"tool_id", "org_id", "model_id", "provider", "temperature", "max_tokens"}

func testTool() *ToolDefinition {
	return &ToolDefinition{
		ID:           "lesson-planner",
		Name:         "Lesson Planner",
		DefaultModel: "openai/gpt-4o-mini",
		Temperature:  0.7,
		MaxTokens:    1024,
		Active:       true,
	}
}

// TestResolveOrgAssignmentWins covers the precedence contract: an
// org-scoped assignment shadows both the global assignment and the tool
// default, even when the org row points at a cheaper model.
func TestResolveOrgAssignmentWins(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(assignmentColumns).
		AddRow("lesson-planner", "org-123", "anthropic/claude-sonnet-4", "anthropic", 0.3, 4096)
	mock.ExpectQuery("org_id = \\$2").WithArgs("lesson-planner", "org-123").WillReturnRows(rows)

	resolver := NewModelResolver(NewModelAssignmentRepository(db))
	resolved, err := resolver.Resolve(context.Background(), testTool(), "org-123")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if resolved.ModelID != "anthropic/claude-sonnet-4" {
		t.Errorf("ModelID = %q, want org assignment", resolved.ModelID)
	}
	if resolved.Source != "org" {
		t.Errorf("Source = %q, want org", resolved.Source)
	}
	if resolved.Temperature != 0.3 || resolved.MaxTokens != 4096 {
		t.Errorf("Assignment generation params not carried: %+v", resolved)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("org_id = \\$2").
		WithArgs("lesson-planner", "org-123").
		WillReturnRows(sqlmock.NewRows(assignmentColumns))
	mock.ExpectQuery("org_id IS NULL").
		WithArgs("lesson-planner").
		WillReturnRows(sqlmock.NewRows(assignmentColumns).
			AddRow("lesson-planner", "", "google/gemini-2.5-flash", "google", 0.7, 2048))

	resolver := NewModelResolver(NewModelAssignmentRepository(db))
	resolved, err := resolver.Resolve(context.Background(), testTool(), "org-123")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if resolved.ModelID != "google/gemini-2.5-flash" {
		t.Errorf("ModelID = %q, want global assignment", resolved.ModelID)
	}
	if resolved.Source != "global" {
		t.Errorf("Source = %q, want global", resolved.Source)
	}
}

// TestResolveToolDefault covers the unconfigured case: no assignment at
// either scope means the tool's own default model is used unchanged.
func TestResolveToolDefault(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("org_id = \\$2").
		WithArgs("lesson-planner", "org-123").
		WillReturnRows(sqlmock.NewRows(assignmentColumns))
	mock.ExpectQuery("org_id IS NULL").
		WithArgs("lesson-planner").
		WillReturnRows(sqlmock.NewRows(assignmentColumns))

	resolver := NewModelResolver(NewModelAssignmentRepository(db))
	resolved, err := resolver.Resolve(context.Background(), testTool(), "org-123")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if resolved.ModelID != "openai/gpt-4o-mini" {
		t.Errorf("ModelID = %q, want tool default", resolved.ModelID)
	}
	if resolved.Source != "tool_default" {
		t.Errorf("Source = %q, want tool_default", resolved.Source)
	}
}

// TestResolveEmptyOrgSkipsOrgLookup verifies that an empty org id goes
// straight to the global scope instead of querying with a blank key.
func TestResolveEmptyOrgSkipsOrgLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("org_id IS NULL").
		WithArgs("lesson-planner").
		WillReturnRows(sqlmock.NewRows(assignmentColumns))

	resolver := NewModelResolver(NewModelAssignmentRepository(db))
	resolved, err := resolver.Resolve(context.Background(), testTool(), "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if resolved.Source != "tool_default" {
		t.Errorf("Source = %q, want tool_default", resolved.Source)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
