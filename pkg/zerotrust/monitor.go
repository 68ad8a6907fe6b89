package zerotrust

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/accessguard/accessd/pkg/events"
)

// BehaviorAnalyzer is the pluggable behavioral re-analysis hook run by the
// trust refresh loop.
type BehaviorAnalyzer interface {
	Analyze(ctx context.Context, agentID string) (*BehaviorAnalysis, error)
}

// ComplianceChecker is the pluggable per-policy compliance hook run by the
// compliance loop.
type ComplianceChecker interface {
	Check(ctx context.Context, policy *Policy) ([]Violation, error)
}

// MonitorConfig holds the background loop intervals.
type MonitorConfig struct {
	TrustRefreshInterval      time.Duration
	ComplianceCheckInterval   time.Duration
	SegmentValidationInterval time.Duration
	MetricsInterval           time.Duration
}

// DefaultMonitorConfig returns the standard loop intervals.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		TrustRefreshInterval:      5 * time.Minute,
		ComplianceCheckInterval:   10 * time.Minute,
		SegmentValidationInterval: 30 * time.Minute,
		MetricsInterval:           time.Minute,
	}
}

// Monitor supervises the four periodic loops: trust refresh, compliance
// checks, segment validation, and metrics snapshots. A failing iteration is
// logged and the loop continues; one Stop terminates all loops.
type Monitor struct {
	config   *MonitorConfig
	engine   *Engine
	analyzer BehaviorAnalyzer
	checker  ComplianceChecker
	logger   *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewMonitor creates a monitor over an engine. Analyzer and checker may be
// nil, which disables their loops' work without stopping the timers.
func NewMonitor(config *MonitorConfig, engine *Engine, analyzer BehaviorAnalyzer, checker ComplianceChecker, logger *slog.Logger) *Monitor {
	if config == nil {
		config = DefaultMonitorConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		config:   config,
		engine:   engine,
		analyzer: analyzer,
		checker:  checker,
		logger:   logger.With("component", "continuous-monitor"),
	}
}

// Start launches the four loops. It returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.group, ctx = errgroup.WithContext(ctx)

	m.runLoop(ctx, "trust-refresh", m.config.TrustRefreshInterval, m.refreshTrustScores)
	m.runLoop(ctx, "compliance-check", m.config.ComplianceCheckInterval, m.checkPolicyCompliance)
	m.runLoop(ctx, "segment-validation", m.config.SegmentValidationInterval, m.validateSegments)
	m.runLoop(ctx, "metrics-snapshot", m.config.MetricsInterval, m.collectMetrics)

	m.logger.Info("continuous monitoring started")
}

// Stop terminates all loops and waits for them to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	_ = m.group.Wait()
	m.logger.Info("continuous monitoring stopped")
}

func (m *Monitor) runLoop(ctx context.Context, name string, interval time.Duration, iteration func(context.Context) error) {
	m.group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m.runIteration(ctx, name, iteration)
			}
		}
	})
}

// runIteration contains one loop tick's failure so neither an error nor a
// panic can take down the loop or its siblings.
func (m *Monitor) runIteration(ctx context.Context, name string, iteration func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitor iteration panicked", "loop", name, "panic", r)
		}
	}()
	if err := iteration(ctx); err != nil {
		m.logger.Error("monitor iteration failed", "loop", name, "error", err)
	}
}

func (m *Monitor) refreshTrustScores(ctx context.Context) error {
	if m.analyzer == nil {
		return nil
	}

	for _, agentID := range m.engine.trust.AgentIDs() {
		analysis, err := m.analyzer.Analyze(ctx, agentID)
		if err != nil {
			m.logger.Warn("behavior analysis failed", "agent_id", agentID, "error", err)
			continue
		}
		if analysis == nil || !analysis.HasChanges {
			continue
		}
		if _, err := m.engine.UpdateTrustScore(ctx, agentID, TrustEvent{
			Type:    EventBehavior,
			Outcome: analysis.Outcome,
			Details: analysis.Details,
		}); err != nil {
			m.logger.Warn("trust refresh update failed", "agent_id", agentID, "error", err)
		}
	}
	return nil
}

func (m *Monitor) checkPolicyCompliance(ctx context.Context) error {
	if m.checker == nil {
		return nil
	}

	var violations []Violation
	for _, policy := range m.engine.policies.List() {
		if !policy.Enabled {
			continue
		}
		found, err := m.checker.Check(ctx, policy)
		if err != nil {
			m.logger.Warn("compliance check failed", "policy_id", policy.PolicyID, "error", err)
			continue
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		m.engine.bus.Publish(events.EventPolicyViolations, map[string]interface{}{
			"violations": violations,
			"count":      len(violations),
		})
		m.logger.Warn("policy violations detected", "count", len(violations))
	}
	return nil
}

func (m *Monitor) validateSegments(ctx context.Context) error {
	for _, segment := range m.engine.segments.List() {
		issues := ValidateStructure(segment)
		if len(issues) == 0 {
			continue
		}
		m.engine.bus.Publish(events.EventSegmentValidationFailed, map[string]interface{}{
			"segment_id": segment.SegmentID,
			"issues":     issues,
		})
		m.logger.Warn("segment validation failed",
			"segment_id", segment.SegmentID, "issues", len(issues))
	}
	return nil
}

func (m *Monitor) collectMetrics(ctx context.Context) error {
	snapshot := m.engine.GetMetrics()
	m.engine.bus.Publish(events.EventMetricsCollected, map[string]interface{}{
		"access_requests":       snapshot.AccessRequests,
		"access_granted":        snapshot.AccessGranted,
		"access_denied":         snapshot.AccessDenied,
		"evaluation_failures":   snapshot.EvaluationFailures,
		"average_decision_time": snapshot.AverageDecisionTime.String(),
		"trust_scores":          snapshot.TrustScores,
		"enabled_policies":      snapshot.EnabledPolicies,
		"network_segments":      snapshot.NetworkSegments,
		"quarantined_agents":    snapshot.QuarantinedAgents,
	})
	return nil
}
