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
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"campusflow/platform/shared/logger"
)

// Authenticator verifies the bearer credential on each request and loads
// the caller's profile for the consent gate.
type Authenticator struct {
	db        *sql.DB
	jwtSecret []byte
	log       *logger.Logger
}

// NewAuthenticator creates an authenticator backed by the given database
// and HMAC signing secret.
func NewAuthenticator(db *sql.DB, jwtSecret []byte) *Authenticator {
	return &Authenticator{
		db:        db,
		jwtSecret: jwtSecret,
		log:       logger.New("gateway-auth"),
	}
}

// Authenticate validates the Authorization header and returns the
// caller's profile. Returns ErrUnauthorized for a missing or invalid
// credential or an unknown caller.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*CallerProfile, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrUnauthorized
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return nil, ErrUnauthorized
	}

	userID, err := a.validateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	profile, err := a.lookupProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller profile: %w", err)
	}
	if profile == nil {
		return nil, ErrUnauthorized
	}

	return profile, nil
}

// CheckConsent enforces the minors' consent gate. A minor whose parental
// consent is still pending gets a terminal ErrConsentRequired before any
// tool, model or governance processing.
func (a *Authenticator) CheckConsent(profile *CallerProfile) error {
	if profile.IsMinor && profile.ConsentStatus == "pending" {
		return ErrConsentRequired
	}
	return nil
}

// validateToken parses and verifies the HMAC-signed JWT and extracts the
// subject user id.
func (a *Authenticator) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sub := getClaimString(claims, "sub")
	if sub == "" {
		sub = getClaimString(claims, "user_id")
	}
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return sub, nil
}

// lookupProfile loads the caller profile row. Returns (nil, nil) for an
// unknown user.
func (a *Authenticator) lookupProfile(ctx context.Context, userID string) (*CallerProfile, error) {
	query := `
		SELECT id, COALESCE(email, ''), COALESCE(role, 'student'),
		       COALESCE(is_minor, false), COALESCE(parental_consent_status, 'none')
		FROM user_profiles
		WHERE id = $1
	`

	profile := &CallerProfile{}
	err := a.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID, &profile.Email, &profile.Role,
		&profile.IsMinor, &profile.ConsentStatus,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user profile: %w", err)
	}

	return profile, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
