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
	"encoding/json"
	"time"
)

// InvokeRequest is the wire format accepted by POST /api/v1/invoke.
// Every AI tool invocation in the product goes through this single shape.
type InvokeRequest struct {
	ToolID               string            `json:"toolId"`
	Message              string            `json:"message"`
	UserID               string            `json:"userId,omitempty"`
	OrgID                string            `json:"orgId,omitempty"`
	UserRole             string            `json:"userRole,omitempty"`
	SystemPromptOverride string            `json:"systemPromptOverride,omitempty"`
	MessageHistory       []ChatMessage     `json:"messageHistory,omitempty"`
	AdditionalContext    string            `json:"additionalContext,omitempty"`
	Temperature          *float64          `json:"temperature,omitempty"`
	TemperatureOverride  *float64          `json:"temperatureOverride,omitempty"`
	MaxTokens            int               `json:"maxTokens,omitempty"`
	Tools                []json.RawMessage `json:"tools,omitempty"`
	ToolChoice           json.RawMessage   `json:"toolChoice,omitempty"`
}

// ChatMessage is a single turn in a conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall is a tool/function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

// ToolCallFunc carries the function name and raw JSON arguments of a tool call.
type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// InvokeResponse is returned for both accepted and governance-blocked
// requests. Blocked requests come back with HTTP 200 and Blocked=true so
// UI clients can render the policy explanation inline.
type InvokeResponse struct {
	Response               string         `json:"response"`
	ToolCalls              []ToolCall     `json:"toolCalls,omitempty"`
	Model                  string         `json:"model,omitempty"`
	LatencyMs              int64          `json:"latencyMs"`
	GovernanceRulesApplied int            `json:"governanceRulesApplied"`
	KnowledgeBaseUsed      bool           `json:"knowledgeBaseUsed"`
	SessionID              string         `json:"sessionId,omitempty"`
	Blocked                bool           `json:"blocked,omitempty"`
	BlockedCapability      string         `json:"blockedCapability,omitempty"`
	BlockingRules          []BlockingRule `json:"blockingRules,omitempty"`
	ApprovalRequested      bool           `json:"approvalRequested,omitempty"`
}

// BlockingRule is the caller-visible slice of a governance rule that
// vetoed a request.
type BlockingRule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Capability string `json:"capability"`
}

// ToolDefinition describes an AI tool as configured by the platform.
// Read-only input to the gateway; immutable during a request.
type ToolDefinition struct {
	ID           string
	Name         string
	DefaultModel string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Active       bool
}

// ModelAssignment maps a (tool, org) pair to a model. OrgID is empty for
// the platform-wide (global) assignment.
type ModelAssignment struct {
	ToolID      string
	OrgID       string
	ModelID     string
	Provider    string
	Temperature float64
	MaxTokens   int
}

// ResolvedModel is the outcome of model resolution for one request.
type ResolvedModel struct {
	ModelID     string
	Provider    string
	Temperature float64
	MaxTokens   int
	// Source records which tier won: "org", "global" or "tool_default".
	Source string
}

// GovernanceRule scopes whether a capability is allowed for a set of
// roles. OrgID is empty for platform-wide rules.
type GovernanceRule struct {
	ID          string
	OrgID       string
	Capability  string
	Allowed     bool
	Roles       []string
	Name        string
	Description string
	Category    string
}

// ApprovalRequest is the human-review ticket filed when governance blocks
// an invocation. Terminal states are managed by the review surfaces, not
// by this gateway.
type ApprovalRequest struct {
	ID          string
	UserID      string
	OrgID       string
	TaskPreview string
	Category    string
	Status      string
	Details     map[string]interface{}
	CreatedAt   time.Time
}

// Session groups consecutive interactions between one caller and one
// tool for analytics.
type Session struct {
	ID           string
	UserID       string
	ToolID       string
	OrgID        string
	StartedAt    time.Time
	EndedAt      *time.Time
	MessageCount int
	Metadata     map[string]interface{}
}

// KnowledgeDocument holds tenant-private, pre-chunked reference text.
type KnowledgeDocument struct {
	ID     string
	OrgID  string
	Title  string
	Chunks []string
	Active bool
}

// CallerProfile is the per-user record consulted by the consent gate
// before any other processing.
type CallerProfile struct {
	ID            string
	Email         string
	Role          string
	IsMinor       bool
	ConsentStatus string
}

// ResolvedCredential is the outcome of credential resolution: which
// endpoint and API key to use, and the model id as the provider expects it.
type ResolvedCredential struct {
	Endpoint string
	APIKey   string
	ModelID  string
	Provider string
	// TenantKey is true when the call is routed with an org-supplied
	// credential rather than the shared platform credential.
	TenantKey bool
}
