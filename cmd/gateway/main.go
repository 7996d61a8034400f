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

// Package main is the entry point for the CampusFlow AI Gateway service.
//
// The gateway is the single request-handling entry point for every AI
// tool invocation in the platform:
// - Authenticates callers and enforces the minors' consent gate
// - Resolves the model and credentials per (organization, tool) pair
// - Evaluates role-based governance rules and files approval requests
// - Injects tenant-private knowledge context for allow-listed tools
// - Calls the completion provider and records audit and session analytics
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8090)
//	DATABASE_URL - PostgreSQL connection string
//	JWT_SECRET - HMAC secret for bearer-token validation
//	REDIS_URL - optional Redis URL for session caching
//	PLATFORM_LLM_API_KEY - shared platform provider credential
//	PLATFORM_LLM_ENDPOINT - shared platform provider endpoint
//	AWS_REGION - optional, enables Secrets Manager key unwrapping
//	CAPABILITY_CONFIG_FILE - optional YAML tool-capability overrides
package main

import (
	"campusflow/platform/gateway"
)

func main() {
	gateway.Run()
}
