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
	"time"

	"github.com/google/uuid"

	"campusflow/platform/shared/logger"
)

// taskPreviewLimit bounds the message excerpt stored on approval requests.
const taskPreviewLimit = 200

// GovernanceRuleRepository handles database reads for governance rules.
type GovernanceRuleRepository struct {
	db *sql.DB
}

// NewGovernanceRuleRepository creates a new governance rule repository.
func NewGovernanceRuleRepository(db *sql.DB) *GovernanceRuleRepository {
	return &GovernanceRuleRepository{db: db}
}

// RulesVisibleToOrg returns the union of org-scoped and platform-wide
// rules. With an empty org id only platform-wide rules are returned.
func (r *GovernanceRuleRepository) RulesVisibleToOrg(ctx context.Context, orgID string) ([]GovernanceRule, error) {
	query := `
		SELECT id, COALESCE(org_id, ''), capability, allowed,
		       COALESCE(applicable_roles, '[]'),
		       COALESCE(name, ''), COALESCE(description, ''), COALESCE(category, '')
		FROM governance_rules
		WHERE org_id IS NULL OR org_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query governance rules: %w", err)
	}
	defer rows.Close()

	var rules []GovernanceRule
	for rows.Next() {
		var rule GovernanceRule
		var rolesJSON []byte

		if err := rows.Scan(&rule.ID, &rule.OrgID, &rule.Capability, &rule.Allowed,
			&rolesJSON, &rule.Name, &rule.Description, &rule.Category); err != nil {
			return nil, fmt.Errorf("failed to scan governance rule: %w", err)
		}

		if err := json.Unmarshal(rolesJSON, &rule.Roles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule roles: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate governance rules: %w", err)
	}

	return rules, nil
}

// ApprovalRepository handles database writes and reads for approval
// requests.
type ApprovalRepository struct {
	db *sql.DB
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new pending approval request.
func (r *ApprovalRepository) Create(ctx context.Context, approval *ApprovalRequest) error {
	if approval.ID == "" {
		approval.ID = uuid.New().String()
	}
	approval.Status = "pending"
	approval.CreatedAt = time.Now().UTC()

	detailsJSON, err := json.Marshal(approval.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal approval details: %w", err)
	}

	query := `
		INSERT INTO approval_requests (
			id, user_id, org_id, task_preview, category, status, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		approval.ID, approval.UserID, nullableOrg(approval.OrgID),
		approval.TaskPreview, approval.Category, approval.Status,
		detailsJSON, approval.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert approval request: %w", err)
	}

	return nil
}

// ListByOrg returns approval requests for a tenant, newest first,
// optionally filtered by status.
func (r *ApprovalRepository) ListByOrg(ctx context.Context, orgID, status string, limit int) ([]ApprovalRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, COALESCE(org_id, ''), task_preview, category, status, details, created_at
		FROM approval_requests
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval requests: %w", err)
	}
	defer rows.Close()

	var approvals []ApprovalRequest
	for rows.Next() {
		var approval ApprovalRequest
		var detailsJSON []byte

		if err := rows.Scan(&approval.ID, &approval.UserID, &approval.OrgID,
			&approval.TaskPreview, &approval.Category, &approval.Status,
			&detailsJSON, &approval.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &approval.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal approval details: %w", err)
			}
		}

		approvals = append(approvals, approval)
	}

	return approvals, rows.Err()
}

// GovernanceEvaluator decides whether a request is permitted for the
// caller's role and raises an approval workflow when it is not.
type GovernanceEvaluator struct {
	rules     *GovernanceRuleRepository
	approvals *ApprovalRepository
	registry  CapabilityRegistry
	audit     *AuditRecorder
	sessions  *SessionTracker
	log       *logger.Logger
}

// NewGovernanceEvaluator creates a new governance evaluator.
func NewGovernanceEvaluator(rules *GovernanceRuleRepository, approvals *ApprovalRepository,
	registry CapabilityRegistry, audit *AuditRecorder, sessions *SessionTracker) *GovernanceEvaluator {
	return &GovernanceEvaluator{
		rules:     rules,
		approvals: approvals,
		registry:  registry,
		audit:     audit,
		sessions:  sessions,
		log:       logger.New("gateway-governance"),
	}
}

// GovernanceInput carries everything the evaluator needs for one request.
type GovernanceInput struct {
	Tool      *ToolDefinition
	OrgID     string
	UserID    string
	Role      string
	Message   string
	Model     string
	SessionID string
	RequestID string
}

// GovernanceDecision is the evaluator's verdict for one request.
type GovernanceDecision struct {
	Allowed        bool
	Capability     string
	BlockingRules  []GovernanceRule
	RulesEvaluated int
	// PolicyNotice summarizes deny-rules for unrelated capabilities so
	// the prompt composer can instruct the model to self-censor.
	PolicyNotice string
	// Explanation is the user-facing text returned for blocked requests.
	Explanation string
	ApprovalID  string
}

// Evaluate resolves the tool's capability, filters the org's deny rules
// by capability and role, and blocks the request when any match. A block
// files exactly one approval request, writes a blocked audit entry and
// ends the session. A pass additionally carries a policy notice covering
// the org's deny rules for other capabilities.
func (e *GovernanceEvaluator) Evaluate(ctx context.Context, in GovernanceInput) (*GovernanceDecision, error) {
	capability := e.registry.CapabilityFor(in.Tool.ID)

	rules, err := e.rules.RulesVisibleToOrg(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	decision := &GovernanceDecision{
		Allowed:        true,
		Capability:     capability,
		RulesEvaluated: len(rules),
	}

	for _, rule := range rules {
		if rule.Allowed || rule.Capability != capability {
			continue
		}
		if !roleMatches(rule.Roles, in.Role) {
			continue
		}
		decision.BlockingRules = append(decision.BlockingRules, rule)
	}

	if len(decision.BlockingRules) > 0 {
		decision.Allowed = false
		decision.Explanation = blockedExplanation(decision.BlockingRules)
		e.handleBlock(ctx, in, decision)
		return decision, nil
	}

	decision.PolicyNotice = policyNotice(rules, capability, in.Role)
	return decision, nil
}

// handleBlock performs the side effects of a governance block. All three
// writes are best-effort: a storage failure must not turn a clean policy
// verdict into a 500.
func (e *GovernanceEvaluator) handleBlock(ctx context.Context, in GovernanceInput, decision *GovernanceDecision) {
	first := decision.BlockingRules[0]

	ruleSummaries := make([]map[string]string, 0, len(decision.BlockingRules))
	for _, rule := range decision.BlockingRules {
		ruleSummaries = append(ruleSummaries, map[string]string{
			"id":         rule.ID,
			"name":       rule.Name,
			"capability": rule.Capability,
		})
	}

	approval := &ApprovalRequest{
		UserID:      in.UserID,
		OrgID:       in.OrgID,
		TaskPreview: truncateText(in.Message, taskPreviewLimit),
		Category:    first.Category,
		Details: map[string]interface{}{
			"tool_id":        in.Tool.ID,
			"capability":     decision.Capability,
			"blocking_rules": ruleSummaries,
		},
	}

	if err := e.approvals.Create(ctx, approval); err != nil {
		e.log.Warn(in.OrgID, in.RequestID, "Failed to create approval request", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		decision.ApprovalID = approval.ID
	}

	e.audit.Record(ctx, &AuditEntry{
		UserID:         in.UserID,
		OrgID:          in.OrgID,
		ToolID:         in.Tool.ID,
		Capability:     decision.Capability,
		Model:          in.Model,
		Status:         auditStatusBlocked,
		MessageChars:   len(in.Message),
		RulesEvaluated: decision.RulesEvaluated,
		SessionID:      in.SessionID,
		RequestID:      in.RequestID,
	})

	if in.SessionID != "" {
		e.sessions.EndSession(ctx, in.SessionID, "blocked_by_governance")
	}
}

// roleMatches reports whether a rule applies to the caller's role. A rule
// with an empty role list applies to everyone.
func roleMatches(roles []string, role string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// blockedExplanation builds the user-facing text enumerating every
// blocking rule.
func blockedExplanation(rules []GovernanceRule) string {
	var b strings.Builder
	b.WriteString("This request is not permitted by your organization's AI usage policy.\n\n")
	b.WriteString("Blocked by:\n")
	for _, rule := range rules {
		b.WriteString("- ")
		b.WriteString(rule.Name)
		if rule.Description != "" {
			b.WriteString(": ")
			b.WriteString(rule.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nAn approval request has been sent to your organization's administrators.")
	return b.String()
}

// policyNotice summarizes the org's deny rules for capabilities other
// than the current tool's, so the model can decline out-of-policy asks.
func policyNotice(rules []GovernanceRule, currentCapability, role string) string {
	var restricted []string
	seen := make(map[string]bool)

	for _, rule := range rules {
		if rule.Allowed || rule.Capability == currentCapability {
			continue
		}
		if !roleMatches(rule.Roles, role) {
			continue
		}
		if seen[rule.Capability] {
			continue
		}
		seen[rule.Capability] = true

		entry := rule.Capability
		if rule.Name != "" {
			entry = fmt.Sprintf("%s (%s)", rule.Capability, rule.Name)
		}
		restricted = append(restricted, entry)
	}

	if len(restricted) == 0 {
		return ""
	}

	return fmt.Sprintf(
		"The following capabilities are restricted for this user by organization policy: %s. "+
			"If the user asks for content of these kinds, politely decline and refer them to their organization's AI policy.",
		strings.Join(restricted, ", "))
}

// truncateText bounds a string to max runes, appending an ellipsis when
// anything was cut.
func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// nullableOrg converts an empty org id to NULL for insertion.
func nullableOrg(orgID string) *string {
	if orgID == "" {
		return nil
	}
	return &orgID
}
