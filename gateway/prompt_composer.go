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

import "strings"

// maxHistoryTurns bounds the conversation history forwarded to the
// model. Older turns are dropped, not summarized.
const maxHistoryTurns = 10

// ComposeSystemPrompt assembles the final instruction text. Ordering is
// fixed: knowledge context and policy notice precede the tool's own
// instructions so the model treats them as authoritative framing.
func ComposeSystemPrompt(knowledgeContext, policyNotice, basePrompt, additionalContext string) string {
	var parts []string

	if knowledgeContext != "" {
		parts = append(parts, knowledgeContext)
	}
	if policyNotice != "" {
		parts = append(parts, policyNotice)
	}
	if basePrompt != "" {
		parts = append(parts, basePrompt)
	}
	if additionalContext != "" {
		parts = append(parts, additionalContext)
	}

	return strings.Join(parts, "\n\n")
}

// BuildMessages builds the message sequence sent to the provider: one
// system message, the last ten history turns, then the current user
// message.
func BuildMessages(systemPrompt string, history []ChatMessage, userMessage string) []ChatMessage {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: userMessage})

	return messages
}
