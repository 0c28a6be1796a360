package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service delivers internal ops alerts (§4.2/§4.11/§4.12: breaker OPEN,
// run FAILED) to a single Slack channel, distinct from the per-user
// notification email path in pkg/notify.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack ops-alert service. Returns nil if Token
// or Channel is empty, so callers can wire it unconditionally and treat
// it as optional.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyBreakerOpen alerts ops that a circuit breaker tripped to OPEN.
// Deduplicates against an existing thread for the same breaker within
// the last 24h via the breaker name as a fingerprint, so a flapping
// dependency doesn't spam the channel (§4.2).
func (s *Service) NotifyBreakerOpen(ctx context.Context, breakerName string, consecutiveFailures uint32) {
	if s == nil {
		return
	}
	fingerprint := "breaker-open:" + breakerName
	threadTS, err := s.client.FindMessageByFingerprint(ctx, fingerprint)
	if err != nil {
		s.logger.Warn("failed to find existing breaker-open thread", "breaker", breakerName, "error", err)
	}

	blocks := BuildBreakerOpenMessage(breakerName, consecutiveFailures, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("failed to send breaker-open alert", "breaker", breakerName, "error", err)
	}
}

// NotifyRunFailed alerts ops that a search run transitioned to FAILED
// (§3, §4.9). Fail-open: errors are logged, never returned, since an
// alerting failure must never fail the run itself.
func (s *Service) NotifyRunFailed(ctx context.Context, runID, userID, errorMessage string) {
	if s == nil {
		return
	}
	blocks := BuildRunFailedMessage(runID, userID, errorMessage, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, "", 10*time.Second); err != nil {
		s.logger.Error("failed to send run-failed alert", "run_id", runID, "error", err)
	}
}
