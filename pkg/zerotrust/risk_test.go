package zerotrust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevelThresholds(t *testing.T) {
	tests := []struct {
		score    float64
		expected RiskLevel
	}{
		{0.95, RiskCritical},
		{0.9, RiskCritical},
		{0.75, RiskVeryHigh},
		{0.7, RiskVeryHigh},
		{0.55, RiskHigh},
		{0.5, RiskHigh},
		{0.35, RiskMedium},
		{0.3, RiskMedium},
		{0.15, RiskLow},
		{0.1, RiskLow},
		{0.05, RiskVeryLow},
		{0, RiskVeryLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, riskLevelFromScore(tt.score), "score %v", tt.score)
	}
}

func TestAssessUnverifiedIdentity(t *testing.T) {
	assessor := NewRiskAssessor(nil)
	trust := TrustCalculator{}.Initialize("agent-1")

	secCtx := &SecurityContext{
		AgentID:   "agent-1",
		Timestamp: time.Now(),
		Identity:  IdentityInfo{Verified: false},
	}

	risk := assessor.Assess(secCtx, trust)

	require.Len(t, risk.Factors, 1)
	assert.Equal(t, "identity", risk.Factors[0].Type)
	assert.Equal(t, "high", risk.Factors[0].Severity)
	assert.InDelta(t, 0.8, risk.Factors[0].Score, 1e-9)
	assert.Equal(t, RiskVeryHigh, risk.RiskLevel)
	assert.Contains(t, risk.Mitigations, "require additional authentication")
	assert.Contains(t, risk.Recommendations, "stronger identity verification")
}

func TestAssessCleanContext(t *testing.T) {
	assessor := NewRiskAssessor(nil)
	trust := TrustCalculator{}.Initialize("agent-1")

	secCtx := &SecurityContext{
		AgentID:   "agent-1",
		Timestamp: time.Now(),
		Identity:  IdentityInfo{Verified: true, AuthMethod: "mtls"},
	}

	risk := assessor.Assess(secCtx, trust)

	assert.Empty(t, risk.Factors)
	assert.Equal(t, RiskVeryLow, risk.RiskLevel)
	assert.InDelta(t, 0.85, risk.Confidence, 1e-9)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), risk.ValidUntil, 5*time.Second)
}

func TestAssessAnomalousBehavior(t *testing.T) {
	assessor := NewRiskAssessor(nil)
	trust := TrustCalculator{}.Initialize("agent-1")

	secCtx := &SecurityContext{
		AgentID:   "agent-1",
		Timestamp: time.Now(),
		Identity:  IdentityInfo{Verified: true},
		Behavior:  BehaviorInfo{AnomalyScore: 0.8},
	}

	risk := assessor.Assess(secCtx, trust)

	require.Len(t, risk.Factors, 1)
	assert.Equal(t, "behavior", risk.Factors[0].Type)
	assert.InDelta(t, 0.6, risk.Factors[0].Score, 1e-9)
	// Single factor of 0.6 averages to 0.6, within the high band.
	assert.Equal(t, RiskHigh, risk.RiskLevel)
	assert.Contains(t, risk.Mitigations, "enhanced monitoring")
}

func TestAssessLowTrustAgent(t *testing.T) {
	assessor := NewRiskAssessor(nil)
	trust := TrustCalculator{}.Initialize("agent-1")
	trust.OverallScore = 0.2

	secCtx := &SecurityContext{
		AgentID:   "agent-1",
		Timestamp: time.Now(),
		Identity:  IdentityInfo{Verified: true},
	}

	risk := assessor.Assess(secCtx, trust)

	require.Len(t, risk.Factors, 1)
	assert.InDelta(t, 0.9, risk.Factors[0].Score, 1e-9)
	assert.Equal(t, RiskCritical, risk.RiskLevel)
}

func TestAssessCombinedFactorsAverage(t *testing.T) {
	assessor := NewRiskAssessor(nil)
	trust := TrustCalculator{}.Initialize("agent-1")
	trust.OverallScore = 0.1

	secCtx := &SecurityContext{
		AgentID:   "agent-1",
		Timestamp: time.Now(),
		Identity:  IdentityInfo{Verified: false},
		Behavior:  BehaviorInfo{AnomalyScore: 0.9},
	}

	risk := assessor.Assess(secCtx, trust)

	require.Len(t, risk.Factors, 3)
	// (0.8 + 0.6 + 0.9) / 3
	assert.InDelta(t, 0.7666, risk.Score, 0.001)
	assert.Equal(t, RiskVeryHigh, risk.RiskLevel)
}

func TestAssessDeterministic(t *testing.T) {
	assessor := NewRiskAssessor(nil)
	trust := TrustCalculator{}.Initialize("agent-1")
	secCtx := &SecurityContext{
		AgentID:   "agent-1",
		Timestamp: time.Now(),
		Behavior:  BehaviorInfo{AnomalyScore: 0.75},
	}

	first := assessor.Assess(secCtx, trust)
	second := assessor.Assess(secCtx, trust)

	assert.Equal(t, first.RiskLevel, second.RiskLevel)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Factors, second.Factors)
}
