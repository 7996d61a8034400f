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
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"campusflow/platform/common/usage"
	"campusflow/platform/shared/logger"
)

// Gateway is the policy-governed entry point every AI tool invocation in
// the product passes through.
type Gateway struct {
	auth        *Authenticator
	tools       *ToolRepository
	models      *ModelResolver
	governance  *GovernanceEvaluator
	knowledge   ContextRetriever
	credentials *CredentialResolver
	provider    *CompletionClient
	sessions    *SessionTracker
	audit       *AuditRecorder
	approvals   *ApprovalRepository
	usage       *usage.UsageRecorder
	metrics     *GatewayMetrics
	log         *logger.Logger
}

// HandleInvoke serves POST /api/v1/invoke. Control flow is strictly
// linear: auth/consent, session touch, model resolution, governance
// (may short-circuit), knowledge retrieval, prompt composition,
// credential resolution, provider call, session update and audit.
func (g *Gateway) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	// Audit integrity: session and audit writes, and the in-flight
	// provider call, must complete even if the client disconnects.
	ctx := context.WithoutCancel(r.Context())

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := g.auth.Authenticate(ctx, r)
	if err != nil {
		g.failRequest(w, requestID, req.OrgID, err, startTime)
		return
	}

	if err := g.auth.CheckConsent(profile); err != nil {
		g.log.Info(req.OrgID, requestID, "Request gated on parental consent", map[string]interface{}{
			"user_id": profile.ID,
		})
		sendErrorWithCode(w, "Parental consent is required before AI tools can be used",
			"PARENTAL_CONSENT_REQUIRED", http.StatusForbidden)
		g.metrics.recordRequest(time.Since(startTime).Milliseconds(), false, false)
		return
	}

	if req.ToolID == "" {
		g.failRequest(w, requestID, req.OrgID, &ValidationError{Field: "toolId"}, startTime)
		return
	}
	if req.Message == "" {
		g.failRequest(w, requestID, req.OrgID, &ValidationError{Field: "message"}, startTime)
		return
	}

	role := req.UserRole
	if role == "" {
		role = profile.Role
	}

	tool, err := g.tools.GetTool(ctx, req.ToolID)
	if err != nil {
		g.failRequest(w, requestID, req.OrgID, err, startTime)
		return
	}
	if tool == nil {
		g.failRequest(w, requestID, req.OrgID, ErrToolNotFound, startTime)
		return
	}

	sessionID := g.sessions.TouchSession(ctx, profile.ID, tool.ID, req.OrgID)

	resolved, err := g.models.Resolve(ctx, tool, req.OrgID)
	if err != nil {
		g.failRequest(w, requestID, req.OrgID, err, startTime)
		return
	}

	decision, err := g.governance.Evaluate(ctx, GovernanceInput{
		Tool:      tool,
		OrgID:     req.OrgID,
		UserID:    profile.ID,
		Role:      role,
		Message:   req.Message,
		Model:     resolved.ModelID,
		SessionID: sessionID,
		RequestID: requestID,
	})
	if err != nil {
		g.failRequest(w, requestID, req.OrgID, err, startTime)
		return
	}

	if !decision.Allowed {
		g.respondBlocked(w, requestID, req.OrgID, decision, sessionID, startTime)
		return
	}

	knowledgeContext := ""
	if g.knowledge != nil {
		knowledgeContext, err = g.knowledge.Retrieve(ctx, req.OrgID, tool.ID)
		if err != nil {
			// Degrade to an empty context rather than failing the request.
			g.log.Warn(req.OrgID, requestID, "Knowledge retrieval failed, continuing without context", map[string]interface{}{
				"error": err.Error(),
			})
			knowledgeContext = ""
		}
	}

	basePrompt := tool.SystemPrompt
	if req.SystemPromptOverride != "" {
		basePrompt = req.SystemPromptOverride
	}
	systemPrompt := ComposeSystemPrompt(knowledgeContext, decision.PolicyNotice, basePrompt, req.AdditionalContext)
	messages := BuildMessages(systemPrompt, req.MessageHistory, req.Message)

	temperature := resolved.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if req.TemperatureOverride != nil {
		temperature = *req.TemperatureOverride
	}

	maxTokens := resolved.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	cred := g.credentials.Resolve(ctx, req.OrgID, resolved.ModelID, requestID)

	providerStart := time.Now()
	result, err := g.provider.Complete(ctx, cred, &CompletionRequest{
		Model:       cred.ModelID,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	})
	promRequestDuration.WithLabelValues("provider").Observe(float64(time.Since(providerStart).Milliseconds()))

	if err != nil {
		promProviderCalls.WithLabelValues(cred.Provider, "error").Inc()
		g.failRequest(w, requestID, req.OrgID, err, startTime)
		return
	}
	promProviderCalls.WithLabelValues(cred.Provider, "success").Inc()

	latencyMs := time.Since(startTime).Milliseconds()
	costEstimate := usage.CalculateCost(resolved.ModelID, result.PromptTokens, result.CompletionTokens)

	if sessionID != "" {
		g.sessions.RecordUsage(ctx, sessionID, resolved.ModelID, costEstimate)
	}

	if g.usage != nil {
		_ = g.usage.RecordCompletion(usage.CompletionEvent{
			OrgID:            req.OrgID,
			UserID:           profile.ID,
			ToolID:           tool.ID,
			Model:            resolved.ModelID,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.TotalTokens,
			LatencyMs:        result.LatencyMs,
			HTTPStatusCode:   http.StatusOK,
			TenantKey:        cred.TenantKey,
		})
	}

	g.audit.Record(ctx, &AuditEntry{
		RequestID:      requestID,
		UserID:         profile.ID,
		OrgID:          req.OrgID,
		ToolID:         tool.ID,
		Capability:     decision.Capability,
		Model:          resolved.ModelID,
		Status:         auditStatusSuccess,
		MessageChars:   len(req.Message),
		ResponseChars:  len(result.Content),
		LatencyMs:      latencyMs,
		RulesEvaluated: decision.RulesEvaluated,
		KnowledgeUsed:  knowledgeContext != "",
		TenantKeyUsed:  cred.TenantKey,
		ToolCallCount:  len(result.ToolCalls),
		CostEstimate:   costEstimate,
		SessionID:      sessionID,
	})

	promRequestsTotal.WithLabelValues("success").Inc()
	promRequestDuration.WithLabelValues("total").Observe(float64(latencyMs))
	g.metrics.recordRequest(latencyMs, true, false)

	g.log.InfoWithDuration(req.OrgID, requestID, "Request completed", float64(latencyMs), map[string]interface{}{
		"tool_id":    tool.ID,
		"model":      resolved.ModelID,
		"tenant_key": cred.TenantKey,
	})

	writeJSON(w, http.StatusOK, InvokeResponse{
		Response:               result.Content,
		ToolCalls:              result.ToolCalls,
		Model:                  resolved.ModelID,
		LatencyMs:              latencyMs,
		GovernanceRulesApplied: decision.RulesEvaluated,
		KnowledgeBaseUsed:      knowledgeContext != "",
		SessionID:              sessionID,
	})
}

// respondBlocked writes the HTTP 200 blocked response. The approval
// request, blocked audit entry and session close already happened inside
// the evaluator.
func (g *Gateway) respondBlocked(w http.ResponseWriter, requestID, orgID string,
	decision *GovernanceDecision, sessionID string, startTime time.Time) {

	latencyMs := time.Since(startTime).Milliseconds()

	blockingRules := make([]BlockingRule, 0, len(decision.BlockingRules))
	for _, rule := range decision.BlockingRules {
		blockingRules = append(blockingRules, BlockingRule{
			ID:         rule.ID,
			Name:       rule.Name,
			Capability: rule.Capability,
		})
	}

	promRequestsTotal.WithLabelValues("blocked").Inc()
	promBlockedRequests.Inc()
	g.metrics.recordRequest(latencyMs, false, true)

	g.log.Info(orgID, requestID, "Request blocked by governance", map[string]interface{}{
		"capability": decision.Capability,
		"rule_count": len(blockingRules),
	})

	writeJSON(w, http.StatusOK, InvokeResponse{
		Response:               decision.Explanation,
		LatencyMs:              latencyMs,
		GovernanceRulesApplied: decision.RulesEvaluated,
		SessionID:              sessionID,
		Blocked:                true,
		BlockedCapability:      decision.Capability,
		BlockingRules:          blockingRules,
		ApprovalRequested:      true,
	})
}

// failRequest maps an error to its wire status, records metrics and
// writes the error body. Internal detail is never leaked for 500s.
func (g *Gateway) failRequest(w http.ResponseWriter, requestID, orgID string, err error, startTime time.Time) {
	status := httpStatusForError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		g.log.ErrorWithCode(orgID, requestID, "Request failed", status, err, nil)
		message = "Internal error"
	}

	var pErr *ProviderError
	if errors.As(err, &pErr) {
		switch {
		case pErr.IsRateLimited():
			message = "The AI provider is rate limiting requests. Please try again shortly."
		case pErr.IsCreditsExhausted():
			message = "The AI provider reports exhausted credits."
		}
	}

	sendErrorResponse(w, message, status)
	promRequestsTotal.WithLabelValues("error").Inc()
	g.metrics.recordRequest(time.Since(startTime).Milliseconds(), false, false)
}

// HandleOrgAudit serves GET /api/v1/audit/org/{org_id}.
func (g *Gateway) HandleOrgAudit(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := g.audit.ListByOrg(r.Context(), orgID, limit)
	if err != nil {
		g.log.ErrorWithCode(orgID, "", "Audit listing failed", http.StatusInternalServerError, err, nil)
		sendErrorResponse(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"org_id":  orgID,
		"count":   len(entries),
		"entries": entries,
	})
}

// HandleOrgApprovals serves GET /api/v1/approvals/org/{org_id}.
func (g *Gateway) HandleOrgApprovals(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	approvals, err := g.approvals.ListByOrg(r.Context(), orgID, status, limit)
	if err != nil {
		g.log.ErrorWithCode(orgID, "", "Approval listing failed", http.StatusInternalServerError, err, nil)
		sendErrorResponse(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"org_id":    orgID,
		"count":     len(approvals),
		"approvals": approvals,
	})
}

// HandleMetrics serves the legacy JSON metrics endpoint.
func (g *Gateway) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// sendErrorResponse writes a JSON error body with the given status.
func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// sendErrorWithCode writes a JSON error body with a machine-readable code.
func sendErrorWithCode(w http.ResponseWriter, message, code string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":   message,
		"code":    code,
		"message": message,
	})
}
