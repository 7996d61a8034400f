// Copyright 2026 CampusFlow
// SPDX-License-Identifier: Apache-2.0
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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// providerTimeout bounds the synchronous completion call. Timeouts are
// reported as generic provider errors and never retried here.
const providerTimeout = 60 * time.Second

// CompletionClient performs the single synchronous HTTP call to the
// resolved completion endpoint.
type CompletionClient struct {
	httpClient *http.Client
}

// NewCompletionClient creates a completion client with the gateway's
// provider timeout.
func NewCompletionClient() *CompletionClient {
	return &CompletionClient{
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

// CompletionRequest is the provider-facing request body.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []ChatMessage     `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Tools       []json.RawMessage `json:"tools,omitempty"`
	ToolChoice  json.RawMessage   `json:"tool_choice,omitempty"`
}

// CompletionResult is the parsed provider response.
type CompletionResult struct {
	Content          string
	ToolCalls        []ToolCall
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMs        int64
}

// completionResponseBody matches the OpenAI-compatible response shape all
// supported endpoints return.
type completionResponseBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs the provider call and classifies the response status:
// 2xx parses as success, 429 and 402 surface as typed provider errors,
// anything else becomes a generic provider error.
func (c *CompletionClient) Complete(ctx context.Context, cred *ResolvedCredential, req *CompletionRequest) (*CompletionResult, error) {
	start := time.Now()

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", cred.Endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+cred.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{StatusCode: http.StatusBadGateway, Body: err.Error()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing provider response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed completionResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	result := &CompletionResult{
		Model:            parsed.Model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		LatencyMs:        time.Since(start).Milliseconds(),
	}
	if result.Model == "" {
		result.Model = req.Model
	}
	if len(parsed.Choices) > 0 {
		result.Content = parsed.Choices[0].Message.Content
		result.ToolCalls = parsed.Choices[0].Message.ToolCalls
	}

	return result, nil
}
