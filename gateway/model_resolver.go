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
)

// ModelAssignmentRepository handles database reads for model assignments.
type ModelAssignmentRepository struct {
	db *sql.DB
}

// NewModelAssignmentRepository creates a new model assignment repository.
func NewModelAssignmentRepository(db *sql.DB) *ModelAssignmentRepository {
	return &ModelAssignmentRepository{db: db}
}

// lookupOrg returns the org-scoped assignment for (tool, org), or
// (nil, nil) when none exists.
func (r *ModelAssignmentRepository) lookupOrg(ctx context.Context, toolID, orgID string) (*ModelAssignment, error) {
	query := `
		SELECT tool_id, COALESCE(org_id, ''), model_id, COALESCE(provider, ''),
		       COALESCE(temperature, 0.7), COALESCE(max_tokens, 1024)
		FROM model_assignments
		WHERE tool_id = $1 AND org_id = $2
	`
	return r.scanAssignment(r.db.QueryRowContext(ctx, query, toolID, orgID))
}

// lookupGlobal returns the platform-wide (org-null) assignment for a
// tool, or (nil, nil) when none exists.
func (r *ModelAssignmentRepository) lookupGlobal(ctx context.Context, toolID string) (*ModelAssignment, error) {
	query := `
		SELECT tool_id, COALESCE(org_id, ''), model_id, COALESCE(provider, ''),
		       COALESCE(temperature, 0.7), COALESCE(max_tokens, 1024)
		FROM model_assignments
		WHERE tool_id = $1 AND org_id IS NULL
	`
	return r.scanAssignment(r.db.QueryRowContext(ctx, query, toolID))
}

func (r *ModelAssignmentRepository) scanAssignment(row *sql.Row) (*ModelAssignment, error) {
	assignment := &ModelAssignment{}
	err := row.Scan(
		&assignment.ToolID, &assignment.OrgID, &assignment.ModelID,
		&assignment.Provider, &assignment.Temperature, &assignment.MaxTokens,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model assignment: %w", err)
	}

	return assignment, nil
}

// ModelResolver decides which completion model applies for a
// (tool, organization) pair.
type ModelResolver struct {
	assignments *ModelAssignmentRepository
}

// NewModelResolver creates a new model resolver.
func NewModelResolver(assignments *ModelAssignmentRepository) *ModelResolver {
	return &ModelResolver{assignments: assignments}
}

// Resolve returns the model for a request. Precedence is a hard
// contract: org-scoped assignment > global assignment > tool default.
func (m *ModelResolver) Resolve(ctx context.Context, tool *ToolDefinition, orgID string) (*ResolvedModel, error) {
	if orgID != "" {
		assignment, err := m.assignments.lookupOrg(ctx, tool.ID, orgID)
		if err != nil {
			return nil, err
		}
		if assignment != nil {
			return resolvedFromAssignment(assignment, "org"), nil
		}
	}

	assignment, err := m.assignments.lookupGlobal(ctx, tool.ID)
	if err != nil {
		return nil, err
	}
	if assignment != nil {
		return resolvedFromAssignment(assignment, "global"), nil
	}

	return &ResolvedModel{
		ModelID:     tool.DefaultModel,
		Temperature: tool.Temperature,
		MaxTokens:   tool.MaxTokens,
		Source:      "tool_default",
	}, nil
}

func resolvedFromAssignment(a *ModelAssignment, source string) *ResolvedModel {
	return &ResolvedModel{
		ModelID:     a.ModelID,
		Provider:    a.Provider,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
		Source:      source,
	}
}
