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
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the terminal, non-audited failure modes.
var (
	// ErrUnauthorized is returned for a missing or invalid bearer credential.
	ErrUnauthorized = errors.New("missing or invalid credential")

	// ErrConsentRequired is returned for a minor whose parental consent
	// is still pending. No tool, model or governance processing happens
	// after this error.
	ErrConsentRequired = errors.New("parental consent required")

	// ErrToolNotFound is returned for an unknown or inactive tool id.
	ErrToolNotFound = errors.New("tool not found or inactive")
)

// ValidationError reports a missing required request field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// ProviderError classifies a non-2xx response from the completion
// provider. Rate-limit and credits-exhausted statuses are surfaced to the
// caller verbatim; everything else maps to a generic provider failure.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether the provider rejected the call for rate limiting.
func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsCreditsExhausted reports whether the provider rejected the call for
// exhausted credits.
func (e *ProviderError) IsCreditsExhausted() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

// httpStatusForError maps the error taxonomy to the wire status codes in
// the API contract. Unrecognized errors map to 500 with no internal
// detail leaked to the caller.
func httpStatusForError(err error) int {
	var vErr *ValidationError
	var pErr *ProviderError

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConsentRequired):
		return http.StatusForbidden
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrToolNotFound):
		return http.StatusNotFound
	case errors.As(err, &pErr):
		if pErr.IsRateLimited() {
			return http.StatusTooManyRequests
		}
		if pErr.IsCreditsExhausted() {
			return http.StatusPaymentRequired
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
