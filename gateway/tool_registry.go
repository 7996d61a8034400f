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
	"os"

	"gopkg.in/yaml.v3"
)

// ToolRepository handles database reads for tool definitions.
type ToolRepository struct {
	db *sql.DB
}

// NewToolRepository creates a new tool repository.
func NewToolRepository(db *sql.DB) *ToolRepository {
	return &ToolRepository{db: db}
}

// GetTool retrieves an active tool definition by id. Returns (nil, nil)
// when the tool does not exist or is inactive.
func (r *ToolRepository) GetTool(ctx context.Context, toolID string) (*ToolDefinition, error) {
	query := `
		SELECT id, name, COALESCE(default_model, ''), COALESCE(system_prompt, ''),
		       COALESCE(temperature, 0.7), COALESCE(max_tokens, 1024), active
		FROM ai_tools
		WHERE id = $1 AND active = true
	`

	tool := &ToolDefinition{}
	err := r.db.QueryRowContext(ctx, query, toolID).Scan(
		&tool.ID, &tool.Name, &tool.DefaultModel, &tool.SystemPrompt,
		&tool.Temperature, &tool.MaxTokens, &tool.Active,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tool: %w", err)
	}

	return tool, nil
}

// CapabilityRegistry maps tool ids to the abstract capability governance
// rules are written against. Injected into the governance evaluator so new
// tools can be added without redeploying it.
type CapabilityRegistry interface {
	CapabilityFor(toolID string) string
}

// CapabilityGeneralChat is the capability assumed for unmapped tools.
const CapabilityGeneralChat = "general_chat"

// defaultToolCapabilities is the built-in tool-to-capability mapping.
var defaultToolCapabilities = map[string]string{
	"lesson-planner":      "content_generation",
	"quiz-builder":        "content_generation",
	"rubric-generator":    "content_generation",
	"essay-feedback":      "writing_assistance",
	"writing-coach":       "writing_assistance",
	"study-buddy":         "general_chat",
	"homework-helper":     "general_chat",
	"code-tutor":          "code_generation",
	"image-studio":        "image_generation",
	"slide-illustrator":   "image_generation",
	"translation-helper":  "translation",
}

// StaticCapabilityRegistry is a map-backed capability registry with
// built-in defaults and optional overrides from a YAML file.
type StaticCapabilityRegistry struct {
	capabilities map[string]string
}

// capabilityConfigFile is the YAML shape of a capability override file.
type capabilityConfigFile struct {
	Capabilities map[string]string `yaml:"capabilities"`
}

// NewCapabilityRegistry builds the registry from the built-in defaults.
func NewCapabilityRegistry() *StaticCapabilityRegistry {
	m := make(map[string]string, len(defaultToolCapabilities))
	for k, v := range defaultToolCapabilities {
		m[k] = v
	}
	return &StaticCapabilityRegistry{capabilities: m}
}

// LoadCapabilityRegistry builds the registry from the defaults plus an
// override file. Entries in the file win over the built-in table.
func LoadCapabilityRegistry(path string) (*StaticCapabilityRegistry, error) {
	registry := NewCapabilityRegistry()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability config: %w", err)
	}

	var cfg capabilityConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse capability config: %w", err)
	}

	for toolID, capability := range cfg.Capabilities {
		if capability != "" {
			registry.capabilities[toolID] = capability
		}
	}

	return registry, nil
}

// CapabilityFor returns the capability tag for a tool id, defaulting to
// general_chat for unmapped tools.
func (r *StaticCapabilityRegistry) CapabilityFor(toolID string) string {
	if capability, ok := r.capabilities[toolID]; ok {
		return capability
	}
	return CapabilityGeneralChat
}
