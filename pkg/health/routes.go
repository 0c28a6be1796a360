package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the five §6 health routes plus /metrics onto
// engine. None of these routes carry a rate limit or require auth (§6:
// "/health, /health/*, /api/system/info ... GET, no limit").
func (m *Monitor) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", m.handleHealth)
	engine.GET("/health/readiness", m.handleReadiness)
	engine.GET("/health/detailed", m.handleDetailed)
	engine.GET("/health/circuit-breakers", m.handleCircuitBreakers)
	engine.GET("/health/recovery-stats", m.handleRecoveryStats)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// handleHealth is a bare liveness check: 200 whenever the process is up.
func (m *Monitor) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// handleReadiness reports ready only when the database breaker is
// CLOSED and the last database probe succeeded (§4.11): a degraded
// LLM/vector-store/email dependency does not fail readiness, since
// requests can still be served in degraded mode.
func (m *Monitor) handleReadiness(c *gin.Context) {
	m.mu.RLock()
	dbUp := m.dbStatus.State == "UP"
	m.mu.RUnlock()
	if b, ok := m.breakers["database"]; ok && b.State() != "CLOSED" {
		dbUp = false
	}

	if !dbUp {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleDetailed reports full per-component state.
func (m *Monitor) handleDetailed(c *gin.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"database":        m.dbStatus,
		"components":      m.components,
		"queue_depth":     m.queue.Len(),
		"last_probe_at":   m.lastTick,
		"errors_per_minute": m.errorsPerMinute,
	})
}

// handleCircuitBreakers reports just the breaker state table.
func (m *Monitor) handleCircuitBreakers(c *gin.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"breakers": m.components})
}

// handleRecoveryStats reports rolling error/fallback-activation counters.
func (m *Monitor) handleRecoveryStats(c *gin.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"errors_per_minute":    m.errorsPerMinute,
		"consecutive_llm_open": m.consecutiveLLMOpen,
		"failed_over_primary":  m.failedOver,
		"as_of":                time.Now().UTC(),
	})
}
