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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusflow_gateway_requests_total",
			Help: "Total number of AI requests processed by the gateway",
		},
		[]string{"status"},
	)
	promBlockedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campusflow_gateway_blocked_requests_total",
			Help: "Total number of requests blocked by governance rules",
		},
	)
	promProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusflow_gateway_provider_calls_total",
			Help: "Total number of completion provider calls",
		},
		[]string{"provider", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusflow_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds by stage",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promBlockedRequests)
	prometheus.MustRegister(promProviderCalls)
	prometheus.MustRegister(promRequestDuration)
}

// GatewayMetrics tracks request counters and latency samples for the
// JSON metrics endpoint.
type GatewayMetrics struct {
	mu sync.RWMutex

	startTime       time.Time
	totalRequests   int64
	successRequests int64
	failedRequests  int64
	blockedRequests int64

	latencies []int64
}

// NewGatewayMetrics creates a metrics tracker.
func NewGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{startTime: time.Now()}
}

// recordRequest records one completed request.
func (m *GatewayMetrics) recordRequest(latencyMs int64, success, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	switch {
	case blocked:
		m.blockedRequests++
	case success:
		m.successRequests++
	default:
		m.failedRequests++
	}

	if len(m.latencies) >= 1000 {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, latencyMs)
}

// Snapshot returns a JSON-ready view of the counters.
func (m *GatewayMetrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latencies := make([]int64, len(m.latencies))
	copy(latencies, m.latencies)

	return map[string]interface{}{
		"uptime_seconds":   int64(time.Since(m.startTime).Seconds()),
		"total_requests":   m.totalRequests,
		"success_requests": m.successRequests,
		"failed_requests":  m.failedRequests,
		"blocked_requests": m.blockedRequests,
		"latency_p50_ms":   calculatePercentile(latencies, 0.50),
		"latency_p95_ms":   calculatePercentile(latencies, 0.95),
		"latency_p99_ms":   calculatePercentile(latencies, 0.99),
	}
}

// calculatePercentile computes a percentile over unsorted samples.
func calculatePercentile(timings []int64, percentile float64) float64 {
	if len(timings) == 0 {
		return 0
	}

	sorted := make([]int64, len(timings))
	copy(sorted, timings)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	index := int(float64(len(sorted)-1) * percentile)
	return float64(sorted[index])
}
