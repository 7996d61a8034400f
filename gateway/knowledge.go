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
	"encoding/json"
	"fmt"
	"strings"
)

// ContextRetriever fetches tenant-private reference text for the prompt
// composer. The document sampler behind it is a positional sampling
// heuristic; the interface exists so it can later be swapped for real
// vector search without touching the orchestration path.
type ContextRetriever interface {
	Retrieve(ctx context.Context, orgID, toolID string) (string, error)
}

const (
	knowledgeMaxDocuments = 5
	knowledgeChunksPerDoc = 2
)

// knowledgeEnabledTools is the fixed allow-list of tools that may inject
// tenant knowledge context.
var knowledgeEnabledTools = map[string]bool{
	"lesson-planner":  true,
	"quiz-builder":    true,
	"study-buddy":     true,
	"homework-helper": true,
}

// DocumentSampler retrieves a bounded slice of active knowledge documents
// for an org: at most five documents, first two chunks each, no ranking.
type DocumentSampler struct {
	db *sql.DB
}

// NewDocumentSampler creates a new document sampler.
func NewDocumentSampler(db *sql.DB) *DocumentSampler {
	return &DocumentSampler{db: db}
}

// Retrieve returns a titled context block, or an empty string when the
// org is absent, the tool is not allow-listed or no documents exist.
func (s *DocumentSampler) Retrieve(ctx context.Context, orgID, toolID string) (string, error) {
	if orgID == "" || !knowledgeEnabledTools[toolID] {
		return "", nil
	}

	query := `
		SELECT COALESCE(title, ''), chunks
		FROM knowledge_documents
		WHERE org_id = $1 AND active = true
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, orgID, knowledgeMaxDocuments)
	if err != nil {
		return "", fmt.Errorf("failed to query knowledge documents: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	found := false

	for rows.Next() {
		var title string
		var chunksJSON []byte

		if err := rows.Scan(&title, &chunksJSON); err != nil {
			return "", fmt.Errorf("failed to scan knowledge document: %w", err)
		}

		var chunks []string
		if err := json.Unmarshal(chunksJSON, &chunks); err != nil {
			return "", fmt.Errorf("failed to unmarshal document chunks: %w", err)
		}
		if len(chunks) == 0 {
			continue
		}
		if len(chunks) > knowledgeChunksPerDoc {
			chunks = chunks[:knowledgeChunksPerDoc]
		}

		if !found {
			b.WriteString("## Organization Reference Material\n\n")
			found = true
		}

		if title != "" {
			b.WriteString("### ")
			b.WriteString(title)
			b.WriteString("\n")
		}
		for _, chunk := range chunks {
			b.WriteString(chunk)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate knowledge documents: %w", err)
	}

	if !found {
		return "", nil
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
