package zerotrust

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessguard/accessd/pkg/events"
)

type stubAnalyzer struct {
	mu       sync.Mutex
	analyzed []string
	result   *BehaviorAnalysis
}

func (sa *stubAnalyzer) Analyze(ctx context.Context, agentID string) (*BehaviorAnalysis, error) {
	sa.mu.Lock()
	sa.analyzed = append(sa.analyzed, agentID)
	sa.mu.Unlock()
	return sa.result, nil
}

func (sa *stubAnalyzer) count() int {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return len(sa.analyzed)
}

type stubChecker struct {
	violations []Violation
}

func (sc *stubChecker) Check(ctx context.Context, policy *Policy) ([]Violation, error) {
	return sc.violations, nil
}

func fastMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		TrustRefreshInterval:      10 * time.Millisecond,
		ComplianceCheckInterval:   10 * time.Millisecond,
		SegmentValidationInterval: 10 * time.Millisecond,
		MetricsInterval:           10 * time.Millisecond,
	}
}

func TestMonitorTrustRefresh(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Seed a known agent.
	engine.EvaluateAccess(ctx, "agent-1", "db", "read", nil)

	analyzer := &stubAnalyzer{result: &BehaviorAnalysis{
		HasChanges: true,
		Outcome:    OutcomeNegative,
	}}
	monitor := NewMonitor(fastMonitorConfig(), engine, analyzer, nil, nil)
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, analyzer.analyzedSomething, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		trust, err := engine.GetTrustScore("agent-1")
		return err == nil && trust.OverallScore < 0.5
	}, time.Second, 10*time.Millisecond)
}

func (sa *stubAnalyzer) analyzedSomething() bool { return sa.count() > 0 }

func TestMonitorComplianceViolations(t *testing.T) {
	engine, _, bus := newTestEngine(t)

	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(events.EventPolicyViolations, func(event events.Event) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	})

	checker := &stubChecker{violations: []Violation{{
		PolicyID: DefaultDenyPolicyID, Rule: "retention", Severity: "low",
	}}}
	monitor := NewMonitor(fastMonitorConfig(), engine, nil, checker, nil)
	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestMonitorSegmentValidation(t *testing.T) {
	engine, _, bus := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.CreateNetworkSegment(ctx, &NetworkSegment{
		SegmentID:     "weak",
		Name:          "Weak Segment",
		Type:          SegmentProduction,
		SecurityLevel: "high",
	}))

	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(events.EventSegmentValidationFailed, func(event events.Event) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	})

	monitor := NewMonitor(fastMonitorConfig(), engine, nil, nil, nil)
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "weak", got[0].Payload["segment_id"])
}

func TestMonitorMetricsSnapshot(t *testing.T) {
	engine, _, bus := newTestEngine(t)

	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(events.EventMetricsCollected, func(event events.Event) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	})

	monitor := NewMonitor(fastMonitorConfig(), engine, nil, nil, nil)
	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestMonitorStopTerminatesLoops(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	analyzer := &stubAnalyzer{result: &BehaviorAnalysis{}}
	monitor := NewMonitor(fastMonitorConfig(), engine, analyzer, nil, nil)
	monitor.Start(context.Background())

	engine.EvaluateAccess(context.Background(), "agent-1", "db", "read", nil)
	time.Sleep(50 * time.Millisecond)
	monitor.Stop()

	// No iterations after Stop returns.
	settled := analyzer.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, analyzer.count())
}

func TestMonitorSurvivesPanickingIteration(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.EvaluateAccess(context.Background(), "agent-1", "db", "read", nil)

	analyzer := &panicAnalyzer{}
	monitor := NewMonitor(fastMonitorConfig(), engine, analyzer, nil, nil)
	monitor.Start(context.Background())
	defer monitor.Stop()

	// The loop keeps ticking even though every iteration panics.
	require.Eventually(t, func() bool {
		return analyzer.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

type panicAnalyzer struct {
	calls atomic.Int64
}

func (pa *panicAnalyzer) Analyze(ctx context.Context, agentID string) (*BehaviorAnalysis, error) {
	pa.calls.Add(1)
	panic("analyzer crashed")
}
