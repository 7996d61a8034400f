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
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"campusflow/platform/shared/logger"
)

// sessionWindow is how long a session stays active after it starts.
const sessionWindow = time.Hour

// SessionTracker maintains a rolling per-(user, tool, org) interaction
// session for analytics. Every operation is best-effort: storage errors
// are logged and the request proceeds without session correlation.
type SessionTracker struct {
	db    *sql.DB
	cache *redis.Client
	log   *logger.Logger
}

// NewSessionTracker creates a session tracker. cache may be nil; Redis
// only short-circuits the active-session lookup and is never required.
func NewSessionTracker(db *sql.DB, cache *redis.Client) *SessionTracker {
	return &SessionTracker{
		db:    db,
		cache: cache,
		log:   logger.New("gateway-sessions"),
	}
}

// TouchSession finds the active session for (user, tool, org) and
// increments its message count, or starts a new one with count 1.
// Returns the session id, or "" when tracking failed.
//
// The find-then-create sequence is not atomic: two concurrent requests
// for the same triple can each create a session. Duplicate sessions are
// an accepted analytics degradation, never a correctness hazard.
func (t *SessionTracker) TouchSession(ctx context.Context, userID, toolID, orgID string) string {
	// Fast path: a cached session id lets us skip the lookup.
	if cachedID := t.cachedSessionID(ctx, userID, toolID, orgID); cachedID != "" {
		if t.incrementSession(ctx, cachedID) {
			return cachedID
		}
		// Cached session expired or was closed under us.
	}

	sessionID, found, err := t.findActiveSession(ctx, userID, toolID, orgID)
	if err != nil {
		t.log.Warn(orgID, "", "Session lookup failed, continuing without session", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}

	if found {
		if !t.incrementSession(ctx, sessionID) {
			return ""
		}
	} else {
		sessionID = generateSessionID()
		if err := t.createSession(ctx, sessionID, userID, toolID, orgID); err != nil {
			t.log.Warn(orgID, "", "Session create failed, continuing without session", map[string]interface{}{
				"error": err.Error(),
			})
			return ""
		}
	}

	t.cacheSessionID(ctx, userID, toolID, orgID, sessionID)
	return sessionID
}

// EndSession closes a session with an end reason. Best-effort.
func (t *SessionTracker) EndSession(ctx context.Context, sessionID, reason string) {
	query := `
		UPDATE ai_sessions
		SET ended_at = NOW(),
		    metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('end_reason', $2::text)
		WHERE id = $1 AND ended_at IS NULL
		RETURNING user_id, tool_id, COALESCE(org_id, '')
	`

	var userID, toolID, orgID string
	err := t.db.QueryRowContext(ctx, query, sessionID, reason).Scan(&userID, &toolID, &orgID)
	if err != nil && err != sql.ErrNoRows {
		t.log.Warn("", "", "Session end failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return
	}
	if err == nil {
		t.invalidateCache(ctx, userID, toolID, orgID)
	}
}

// RecordUsage merges post-completion metadata (model used, estimated
// credit cost) into the session. Best-effort.
func (t *SessionTracker) RecordUsage(ctx context.Context, sessionID, model string, costCents int) {
	meta, err := json.Marshal(map[string]interface{}{
		"last_model":          model,
		"last_cost_estimate":  costCents,
	})
	if err != nil {
		return
	}

	query := `
		UPDATE ai_sessions
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb
		WHERE id = $1
	`
	if _, err := t.db.ExecContext(ctx, query, sessionID, meta); err != nil {
		t.log.Warn("", "", "Session usage update failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

// findActiveSession returns the newest open session inside the window.
func (t *SessionTracker) findActiveSession(ctx context.Context, userID, toolID, orgID string) (string, bool, error) {
	query := `
		SELECT id
		FROM ai_sessions
		WHERE user_id = $1 AND tool_id = $2
		  AND COALESCE(org_id, '') = $3
		  AND ended_at IS NULL
		  AND started_at > NOW() - INTERVAL '1 hour'
		ORDER BY started_at DESC
		LIMIT 1
	`

	var sessionID string
	err := t.db.QueryRowContext(ctx, query, userID, toolID, orgID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query active session: %w", err)
	}

	return sessionID, true, nil
}

// incrementSession bumps the message count of an open in-window session.
// Returns false when the session is no longer active.
func (t *SessionTracker) incrementSession(ctx context.Context, sessionID string) bool {
	query := `
		UPDATE ai_sessions
		SET message_count = message_count + 1
		WHERE id = $1 AND ended_at IS NULL
		  AND started_at > NOW() - INTERVAL '1 hour'
	`

	result, err := t.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		t.log.Warn("", "", "Session increment failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return false
	}

	affected, err := result.RowsAffected()
	return err == nil && affected > 0
}

func (t *SessionTracker) createSession(ctx context.Context, sessionID, userID, toolID, orgID string) error {
	query := `
		INSERT INTO ai_sessions (id, user_id, tool_id, org_id, started_at, message_count, metadata)
		VALUES ($1, $2, $3, $4, NOW(), 1, '{}'::jsonb)
	`
	_, err := t.db.ExecContext(ctx, query, sessionID, userID, toolID, nullableOrg(orgID))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func sessionCacheKey(userID, toolID, orgID string) string {
	return fmt.Sprintf("gateway:session:%s:%s:%s", userID, toolID, orgID)
}

func (t *SessionTracker) cachedSessionID(ctx context.Context, userID, toolID, orgID string) string {
	if t.cache == nil {
		return ""
	}
	id, err := t.cache.Get(ctx, sessionCacheKey(userID, toolID, orgID)).Result()
	if err != nil {
		return ""
	}
	return id
}

func (t *SessionTracker) cacheSessionID(ctx context.Context, userID, toolID, orgID, sessionID string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Set(ctx, sessionCacheKey(userID, toolID, orgID), sessionID, sessionWindow).Err(); err != nil {
		t.log.Debug(orgID, "", "Session cache set failed", map[string]interface{}{"error": err.Error()})
	}
}

func (t *SessionTracker) invalidateCache(ctx context.Context, userID, toolID, orgID string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Del(ctx, sessionCacheKey(userID, toolID, orgID)).Err(); err != nil {
		t.log.Debug(orgID, "", "Session cache delete failed", map[string]interface{}{"error": err.Error()})
	}
}

// generateSessionID creates a session id in the form
// "sess_<timestamp>_<random8chars>".
func generateSessionID() string {
	return fmt.Sprintf("sess_%d_%s", time.Now().Unix(), generateRandomString(8))
}
