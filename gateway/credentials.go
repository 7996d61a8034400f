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
	"encoding/base64"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"campusflow/platform/shared/logger"
)

// providerFamilies maps model-id prefixes to provider families. First
// match wins; order matters only for readability since prefixes do not
// overlap.
var providerFamilies = []struct {
	Prefix   string
	Provider string
}{
	{"openai/", "openai"},
	{"anthropic/", "anthropic"},
	{"google/", "google"},
}

// nativeEndpoints are the direct chat-completions endpoints used for
// tenant-credentialed calls. All three expose an OpenAI-compatible shape.
var nativeEndpoints = map[string]string{
	"openai":    "https://api.openai.com/v1/chat/completions",
	"anthropic": "https://api.anthropic.com/v1/chat/completions",
	"google":    "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
}

// providerFamilyFor returns the provider family for a model id, falling
// back to the shared platform gateway family.
func providerFamilyFor(modelID string) (family string, prefix string) {
	for _, f := range providerFamilies {
		if strings.HasPrefix(modelID, f.Prefix) {
			return f.Provider, f.Prefix
		}
	}
	return "platform", ""
}

// SecretUnwrapper turns a stored org credential into a usable API key.
// The stored value is not real encryption; implementations decide how to
// reverse whatever encoding provisioning applied.
type SecretUnwrapper interface {
	Unwrap(ctx context.Context, stored string) (string, error)
}

// encodedKeyUnwrapper reverses the base64 encoding applied by the key
// provisioning flow.
type encodedKeyUnwrapper struct{}

func (encodedKeyUnwrapper) Unwrap(_ context.Context, stored string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored key: %w", err)
	}
	return string(decoded), nil
}

// secretsManagerUnwrapper resolves stored values that are AWS Secrets
// Manager ARNs.
type secretsManagerUnwrapper struct {
	client *secretsmanager.Client
}

func newSecretsManagerUnwrapper(ctx context.Context, region string) (*secretsManagerUnwrapper, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &secretsManagerUnwrapper{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (u *secretsManagerUnwrapper) Unwrap(ctx context.Context, stored string) (string, error) {
	out, err := u.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &stored,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret has no string value")
	}
	return *out.SecretString, nil
}

// OrgKeyRepository handles database reads for tenant-supplied provider
// credentials.
type OrgKeyRepository struct {
	db *sql.DB
}

// NewOrgKeyRepository creates a new org key repository.
func NewOrgKeyRepository(db *sql.DB) *OrgKeyRepository {
	return &OrgKeyRepository{db: db}
}

// ActiveKey returns the stored credential for (org, provider), or
// ("", nil) when the org has no active key for that provider. Only one
// active key per (org, provider) is honored.
func (r *OrgKeyRepository) ActiveKey(ctx context.Context, orgID, provider string) (string, error) {
	query := `
		SELECT encoded_key
		FROM org_api_keys
		WHERE org_id = $1 AND provider = $2 AND active = true
		ORDER BY created_at DESC
		LIMIT 1
	`

	var stored string
	err := r.db.QueryRowContext(ctx, query, orgID, provider).Scan(&stored)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query org api key: %w", err)
	}

	return stored, nil
}

// CredentialResolver decides which API key and endpoint serve a request:
// a tenant-supplied credential routed to the provider's native endpoint,
// or the shared platform credential routed through the platform gateway.
type CredentialResolver struct {
	keys             *OrgKeyRepository
	platformKey      string
	platformEndpoint string
	unwrapper        SecretUnwrapper
	arnUnwrapper     SecretUnwrapper
	log              *logger.Logger
}

// NewCredentialResolver creates a credential resolver. arnUnwrapper may
// be nil when no Secrets Manager region is configured; ARN-valued keys
// then fall back to the platform credential.
func NewCredentialResolver(keys *OrgKeyRepository, platformKey, platformEndpoint string,
	arnUnwrapper SecretUnwrapper) *CredentialResolver {
	return &CredentialResolver{
		keys:             keys,
		platformKey:      platformKey,
		platformEndpoint: platformEndpoint,
		unwrapper:        encodedKeyUnwrapper{},
		arnUnwrapper:     arnUnwrapper,
		log:              logger.New("gateway-credentials"),
	}
}

// Resolve picks the credential route for a request. Any failure to load
// or unwrap a tenant key degrades silently to the platform credential;
// BYOK problems must never fail the request.
func (c *CredentialResolver) Resolve(ctx context.Context, orgID, modelID, requestID string) *ResolvedCredential {
	platform := &ResolvedCredential{
		Endpoint: c.platformEndpoint,
		APIKey:   c.platformKey,
		ModelID:  modelID,
		Provider: "platform",
	}

	family, prefix := providerFamilyFor(modelID)
	if family == "platform" || orgID == "" {
		return platform
	}

	stored, err := c.keys.ActiveKey(ctx, orgID, family)
	if err != nil {
		c.log.Warn(orgID, requestID, "Org key lookup failed, using platform credential", map[string]interface{}{
			"provider": family,
			"error":    err.Error(),
		})
		return platform
	}
	if stored == "" {
		return platform
	}

	apiKey, err := c.unwrapStored(ctx, stored)
	if err != nil {
		c.log.Warn(orgID, requestID, "Org key unwrap failed, using platform credential", map[string]interface{}{
			"provider": family,
			"error":    err.Error(),
		})
		return platform
	}

	return &ResolvedCredential{
		Endpoint:  nativeEndpoints[family],
		APIKey:    apiKey,
		ModelID:   strings.TrimPrefix(modelID, prefix),
		Provider:  family,
		TenantKey: true,
	}
}

func (c *CredentialResolver) unwrapStored(ctx context.Context, stored string) (string, error) {
	if strings.HasPrefix(stored, "arn:") {
		if c.arnUnwrapper == nil {
			return "", fmt.Errorf("secrets manager unwrapper not configured")
		}
		return c.arnUnwrapper.Unwrap(ctx, stored)
	}
	return c.unwrapper.Unwrap(ctx, stored)
}
