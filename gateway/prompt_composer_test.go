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
	"fmt"
	"strings"
	"testing"
)

// TestComposeSystemPromptOrdering verifies the fixed assembly order:
// knowledge context, then policy notice, then base prompt, then
// caller-supplied context.
func TestComposeSystemPromptOrdering(t *testing.T) {
	knowledge := "## Organization Reference Material\nGrading policy excerpt"
	notice := "The following capabilities are restricted: image_generation"
	base := "You are a lesson planning assistant."
	additional := "Focus on 8th grade science."

	composed := ComposeSystemPrompt(knowledge, notice, base, additional)

	idxKnowledge := strings.Index(composed, knowledge)
	idxNotice := strings.Index(composed, notice)
	idxBase := strings.Index(composed, base)
	idxAdditional := strings.Index(composed, additional)

	if idxKnowledge == -1 || idxNotice == -1 || idxBase == -1 || idxAdditional == -1 {
		t.Fatalf("Composed prompt missing a section: %q", composed)
	}

	if !(idxKnowledge < idxNotice && idxNotice < idxBase && idxBase < idxAdditional) {
		t.Errorf("Sections out of order: knowledge=%d notice=%d base=%d additional=%d",
			idxKnowledge, idxNotice, idxBase, idxAdditional)
	}
}

func TestComposeSystemPromptSkipsEmptySections(t *testing.T) {
	tests := []struct {
		name       string
		knowledge  string
		notice     string
		base       string
		additional string
		expected   string
	}{
		{
			name:     "only base prompt",
			base:     "You are a tutor.",
			expected: "You are a tutor.",
		},
		{
			name:     "all empty",
			expected: "",
		},
		{
			name:      "knowledge and base",
			knowledge: "Reference text",
			base:      "You are a tutor.",
			expected:  "Reference text\n\nYou are a tutor.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeSystemPrompt(tt.knowledge, tt.notice, tt.base, tt.additional)
			if got != tt.expected {
				t.Errorf("ComposeSystemPrompt() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBuildMessagesStructure(t *testing.T) {
	history := []ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	messages := BuildMessages("system text", history, "current question")

	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "system text" {
		t.Errorf("First message should be the system prompt, got %+v", messages[0])
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Error("History should follow the system message in order")
	}
	last := messages[len(messages)-1]
	if last.Role != "user" || last.Content != "current question" {
		t.Errorf("Last message should be the current user message, got %+v", last)
	}
}

// TestBuildMessagesHistoryWindow verifies that only the last ten history
// turns survive; older turns are dropped, not summarized.
func TestBuildMessagesHistoryWindow(t *testing.T) {
	var history []ChatMessage
	for i := 0; i < 25; i++ {
		history = append(history, ChatMessage{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	messages := BuildMessages("sys", history, "latest")

	// system + 10 history + current
	if len(messages) != 12 {
		t.Fatalf("Expected 12 messages, got %d", len(messages))
	}

	if messages[1].Content != "turn 15" {
		t.Errorf("Oldest surviving turn should be 'turn 15', got %q", messages[1].Content)
	}
	if messages[10].Content != "turn 24" {
		t.Errorf("Newest history turn should be 'turn 24', got %q", messages[10].Content)
	}
}

func TestBuildMessagesNoSystemPrompt(t *testing.T) {
	messages := BuildMessages("", nil, "hello")
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if messages[0].Role != "user" {
		t.Errorf("Expected user message, got %s", messages[0].Role)
	}
}
