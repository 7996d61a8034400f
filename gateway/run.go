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
	"log"
	mathRand "math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"campusflow/platform/common/usage"
	"campusflow/platform/shared/logger"
)

// CampusFlow AI Gateway - the policy-governed entry point for every AI
// tool invocation in the product.

// Config carries the environment-level configuration surface.
type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	PlatformKey      string
	PlatformEndpoint string
	AWSRegion        string
	CapabilityFile   string
}

// LoadConfig reads the configuration from environment variables.
// DATABASE_URL wins; otherwise the connection string is assembled from
// the discrete DATABASE_* variables.
func LoadConfig() Config {
	cfg := Config{
		Port:             getEnv("PORT", "8090"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		PlatformKey:      os.Getenv("PLATFORM_LLM_API_KEY"),
		PlatformEndpoint: getEnv("PLATFORM_LLM_ENDPOINT", "https://openrouter.ai/api/v1/chat/completions"),
		AWSRegion:        os.Getenv("AWS_REGION"),
		CapabilityFile:   os.Getenv("CAPABILITY_CONFIG_FILE"),
	}

	if cfg.DatabaseURL == "" {
		dbHost := os.Getenv("DATABASE_HOST")
		dbPassword := os.Getenv("DATABASE_PASSWORD")
		if dbHost != "" && dbPassword != "" {
			dbPort := getEnv("DATABASE_PORT", "5432")
			dbName := getEnv("DATABASE_NAME", "campusflow")
			dbUser := getEnv("DATABASE_USER", "campusflow_app")
			dbSSLMode := getEnv("DATABASE_SSLMODE", "require")
			// URL-encode credentials to handle special characters in URI format
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				url.QueryEscape(dbUser), url.QueryEscape(dbPassword),
				dbHost, dbPort, dbName, dbSSLMode)
		}
	}

	return cfg
}

// NewGateway wires all components from a config and open connections.
func NewGateway(cfg Config, db *sql.DB, cache *redis.Client) (*Gateway, error) {
	var registry CapabilityRegistry
	if cfg.CapabilityFile != "" {
		loaded, err := LoadCapabilityRegistry(cfg.CapabilityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load capability registry: %w", err)
		}
		registry = loaded
	} else {
		registry = NewCapabilityRegistry()
	}

	var arnUnwrapper SecretUnwrapper
	if cfg.AWSRegion != "" {
		unwrapper, err := newSecretsManagerUnwrapper(context.Background(), cfg.AWSRegion)
		if err != nil {
			// BYOK keys stored as ARNs will fall back to the platform
			// credential until the region config is fixed.
			log.Printf("[Gateway] Secrets Manager unavailable: %v", err)
		} else {
			arnUnwrapper = unwrapper
		}
	}

	sessions := NewSessionTracker(db, cache)
	audit := NewAuditRecorder(db)
	approvals := NewApprovalRepository(db)

	return &Gateway{
		auth:        NewAuthenticator(db, []byte(cfg.JWTSecret)),
		tools:       NewToolRepository(db),
		models:      NewModelResolver(NewModelAssignmentRepository(db)),
		governance:  NewGovernanceEvaluator(NewGovernanceRuleRepository(db), approvals, registry, audit, sessions),
		knowledge:   NewDocumentSampler(db),
		credentials: NewCredentialResolver(NewOrgKeyRepository(db), cfg.PlatformKey, cfg.PlatformEndpoint, arnUnwrapper),
		provider:    NewCompletionClient(),
		sessions:    sessions,
		audit:       audit,
		approvals:   approvals,
		usage:       usage.NewUsageRecorder(db),
		metrics:     NewGatewayMetrics(),
		log:         logger.New("gateway"),
	}, nil
}

// Router builds the HTTP routes for a gateway.
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()

	// Health and metrics
	r.HandleFunc("/health", g.HandleHealth).Methods("GET")
	r.HandleFunc("/metrics", g.HandleMetrics).Methods("GET") // JSON metrics (legacy)
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	// Main AI invocation endpoint
	r.HandleFunc("/api/v1/invoke", g.HandleInvoke).Methods("POST")

	// Tenant admin read surfaces
	r.HandleFunc("/api/v1/audit/org/{org_id}", g.HandleOrgAudit).Methods("GET")
	r.HandleFunc("/api/v1/approvals/org/{org_id}", g.HandleOrgApprovals).Methods("GET")

	return r
}

// HandleHealth serves GET /health.
func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"database": "ok",
		"provider": "ok",
	}
	healthy := true

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.auth.db.PingContext(ctx); err != nil {
		components["database"] = "unavailable"
		healthy = false
	}

	if g.sessions.cache != nil {
		components["redis"] = "ok"
		if err := g.sessions.cache.Ping(ctx).Err(); err != nil {
			components["redis"] = "unavailable"
			// Redis is best-effort; not counted against overall health.
		}
	}

	if g.credentials.platformKey == "" {
		components["provider"] = "unconfigured"
		healthy = false
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}

// Run starts the gateway service and blocks until shutdown.
func Run() {
	log.Println("Starting CampusFlow AI Gateway...")

	cfg := LoadConfig()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL (or DATABASE_HOST/DATABASE_PASSWORD) is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("[Gateway] Invalid REDIS_URL, session caching disabled: %v", err)
		} else {
			cache = redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := cache.Ping(ctx).Err(); err != nil {
				log.Printf("[Gateway] Redis unreachable, session caching disabled: %v", err)
				cache = nil
			}
			cancel()
		}
	}

	gateway, err := NewGateway(cfg, db, cache)
	if err != nil {
		log.Fatalf("Failed to initialize gateway: %v", err)
	}

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: c.Handler(gateway.Router()),
	}

	go func() {
		log.Printf("CampusFlow AI Gateway listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// getEnv returns the environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// generateRequestID creates a request id for log and audit correlation.
func generateRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), generateRandomString(6))
}

// generateRandomString returns a random lowercase alphanumeric string.
func generateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[mathRand.Intn(len(charset))]
	}
	return string(b)
}
