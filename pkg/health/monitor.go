// Package health implements the Health & Degradation Monitor (spec.md
// §4.11): a periodic probe loop over the database and every named
// circuit breaker, rolling error/fallback counters, and the five
// health routes of §6.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/database"
	"github.com/codeready-toolchain/grantfinder/pkg/scheduler"
)

// DefaultProbeInterval is the §4.11 default probe cadence.
const DefaultProbeInterval = 5 * time.Minute

// sustainedOpenThreshold is how many consecutive OPEN probes of the
// primary LLM breaker trigger an automatic failover via
// adapters.Registry.SetPrimary.
const sustainedOpenThreshold = 3

var (
	breakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "grantfinder", Subsystem: "health", Name: "breaker_state", Help: "0=CLOSED 1=HALF_OPEN 2=OPEN"},
		[]string{"breaker"},
	)
	fallbackActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "grantfinder", Subsystem: "health", Name: "fallback_activations_total", Help: "Count of breaker fallback activations observed per probe."},
		[]string{"breaker"},
	)
	queueDepthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "grantfinder", Subsystem: "health", Name: "queue_depth", Help: "Current scheduler job queue depth."},
	)
	dbHealthyGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "grantfinder", Subsystem: "health", Name: "database_healthy", Help: "1 if the last DB probe succeeded, else 0."},
	)
)

func init() {
	prometheus.MustRegister(breakerStateGauge, fallbackActivations, queueDepthGauge, dbHealthyGauge)
}

// componentSnapshot is one breaker's rolling state, consumed by
// /health/detailed and /health/circuit-breakers.
type componentSnapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	TotalFailures       uint32    `json:"total_failures"`
	TotalSuccesses      uint32    `json:"total_successes"`
	LastProbeAt         time.Time `json:"last_probe_at"`
}

// Monitor owns the probe loop and the rolling counters it maintains.
type Monitor struct {
	db          *pgxpool.Pool
	breakers    map[string]*breaker.Breaker
	registry    *adapters.Registry
	fallbackLLM string
	queue       *scheduler.Queue
	interval    time.Duration
	log         *slog.Logger

	mu                 sync.RWMutex
	components         map[string]componentSnapshot
	dbStatus           componentSnapshot
	consecutiveLLMOpen int
	failedOver         bool
	errorsPerMinute    float64
	lastTick           time.Time
}

// New constructs a Monitor over the named breakers (cmd/grantfinder
// registers "database", "llm", "vector-store" and "email") and the
// primary database pool. fallbackLLM names the
// registry entry to fail over to once the "llm" breaker is sustained
// OPEN; pass "" to disable automatic failover.
func New(db *pgxpool.Pool, breakers map[string]*breaker.Breaker, registry *adapters.Registry, fallbackLLM string, queue *scheduler.Queue, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		db:          db,
		breakers:    breakers,
		registry:    registry,
		fallbackLLM: fallbackLLM,
		queue:       queue,
		interval:    interval,
		log:         slog.With("component", "health-monitor"),
		components:  make(map[string]componentSnapshot, len(breakers)),
	}
}

// Start runs the probe loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// probe samples DB connectivity and every breaker's state once.
func (m *Monitor) probe(ctx context.Context) {
	now := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := database.Health(probeCtx, m.db)
	m.mu.Lock()
	if err != nil {
		m.dbStatus = componentSnapshot{State: "DOWN", LastProbeAt: now}
		dbHealthyGauge.Set(0)
		m.log.Warn("database probe failed", "error", err)
	} else {
		m.dbStatus = componentSnapshot{State: "UP", LastProbeAt: now}
		dbHealthyGauge.Set(1)
	}
	m.mu.Unlock()

	var errCount float64
	snapshots := make(map[string]componentSnapshot, len(m.breakers))
	for name, b := range m.breakers {
		counts := b.Counts()
		snap := componentSnapshot{
			State:               b.State(),
			ConsecutiveFailures: counts.ConsecutiveFailures,
			TotalFailures:       counts.TotalFailures,
			TotalSuccesses:      counts.TotalSuccesses,
			LastProbeAt:         now,
		}
		snapshots[name] = snap
		errCount += float64(counts.ConsecutiveFailures)
		breakerStateGauge.WithLabelValues(name).Set(stateToFloat(snap.State))
		if snap.State == "OPEN" {
			fallbackActivations.WithLabelValues(name).Inc()
		}
	}

	m.mu.Lock()
	m.components = snapshots
	m.errorsPerMinute = errCount / m.interval.Minutes()
	m.lastTick = now
	m.mu.Unlock()

	queueDepthGauge.Set(float64(m.queue.Len()))
	m.maybeFailoverPrimary(snapshots)
}

// maybeFailoverPrimary repoints the LLM registry's primary pointer
// after sustainedOpenThreshold consecutive OPEN probes of the "llm"
// breaker, per §4.11's degradation-monitor responsibility and the
// adapters.Registry.SetPrimary seam it exists for.
func (m *Monitor) maybeFailoverPrimary(snapshots map[string]componentSnapshot) {
	if m.registry == nil || m.fallbackLLM == "" || m.failedOver {
		return
	}
	llm, ok := snapshots["llm"]
	if !ok {
		return
	}
	if llm.State != "OPEN" {
		m.consecutiveLLMOpen = 0
		return
	}
	m.consecutiveLLMOpen++
	if m.consecutiveLLMOpen >= sustainedOpenThreshold {
		m.log.Warn("primary LLM breaker sustained OPEN, failing over", "fallback", m.fallbackLLM, "consecutive_probes", m.consecutiveLLMOpen)
		m.registry.SetPrimary(m.fallbackLLM)
		m.failedOver = true
	}
}

func stateToFloat(s string) float64 {
	switch s {
	case "OPEN":
		return 2
	case "HALF_OPEN":
		return 1
	default:
		return 0
	}
}
