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

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecordCompletion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO usage_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder := NewUsageRecorder(db)
	err = recorder.RecordCompletion(CompletionEvent{
		OrgID:            "org-123",
		UserID:           "user-1",
		ToolID:           "lesson-planner",
		Model:            "openai/gpt-4o",
		PromptTokens:     1000,
		CompletionTokens: 500,
		TotalTokens:      1500,
		LatencyMs:        850,
		HTTPStatusCode:   200,
	})
	if err != nil {
		t.Fatalf("RecordCompletion() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRecordCompletionNilDB(t *testing.T) {
	recorder := NewUsageRecorder(nil)
	if err := recorder.RecordCompletion(CompletionEvent{UserID: "user-1"}); err != nil {
		t.Errorf("Expected nil error without a database, got %v", err)
	}
}
