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
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var documentColumns = []string{"title", "chunks"}

// TestRetrieveSkipsUnlistedTool verifies the fixed allow-list: tools
// outside it never touch the database.
func TestRetrieveSkipsUnlistedTool(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	sampler := NewDocumentSampler(db.DB)
	block, err := sampler.Retrieve(context.Background(), "org-123", "image-studio")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if block != "" {
		t.Errorf("Expected empty context, got %q", block)
	}

	if err := db.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRetrieveSkipsEmptyOrg(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	sampler := NewDocumentSampler(db.DB)
	block, err := sampler.Retrieve(context.Background(), "", "lesson-planner")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if block != "" {
		t.Errorf("Expected empty context, got %q", block)
	}
}

func TestRetrieveBuildsTitledBlock(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(documentColumns).
		AddRow("Grading Policy", `["Grades are A through F.", "Late work loses one letter.", "Third chunk never sent"]`).
		AddRow("", `["Untitled doc chunk"]`).
		AddRow("Empty Doc", `[]`)
	db.Mock.ExpectQuery("FROM knowledge_documents").
		WithArgs("org-123", knowledgeMaxDocuments).
		WillReturnRows(rows)

	sampler := NewDocumentSampler(db.DB)
	block, err := sampler.Retrieve(context.Background(), "org-123", "lesson-planner")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	if !strings.HasPrefix(block, "## Organization Reference Material") {
		t.Errorf("Missing block header: %q", block)
	}
	if !strings.Contains(block, "### Grading Policy") {
		t.Errorf("Missing document title: %q", block)
	}
	if !strings.Contains(block, "Late work loses one letter.") {
		t.Errorf("Missing second chunk: %q", block)
	}
	// Only the first two chunks per document are sampled.
	if strings.Contains(block, "Third chunk never sent") {
		t.Errorf("Chunk cap not applied: %q", block)
	}
	if !strings.Contains(block, "Untitled doc chunk") {
		t.Errorf("Untitled document dropped: %q", block)
	}
}

func TestRetrieveNoDocuments(t *testing.T) {
	db := newSqlmockDB(t)
	defer db.Close()

	db.Mock.ExpectQuery("FROM knowledge_documents").
		WithArgs("org-123", knowledgeMaxDocuments).
		WillReturnRows(sqlmock.NewRows(documentColumns))

	sampler := NewDocumentSampler(db.DB)
	block, err := sampler.Retrieve(context.Background(), "org-123", "study-buddy")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if block != "" {
		t.Errorf("Expected empty context with no documents, got %q", block)
	}
}
