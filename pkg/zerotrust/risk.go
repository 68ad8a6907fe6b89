package zerotrust

import (
	"log/slog"
	"time"
)

const (
	riskValidityWindow = 5 * time.Minute
	riskConfidence     = 0.85
)

// RiskAssessor derives a risk level and contributing factors from a security
// context and trust score. It is rule-based and deterministic for identical
// inputs.
type RiskAssessor struct {
	logger *slog.Logger
}

// NewRiskAssessor creates a risk assessor.
func NewRiskAssessor(logger *slog.Logger) *RiskAssessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskAssessor{logger: logger.With("component", "risk-assessor")}
}

// Assess evaluates the risk of granting this request.
func (ra *RiskAssessor) Assess(secCtx *SecurityContext, trust *TrustScore) *RiskAssessment {
	var factors []RiskFactor
	totalScore := 0.0

	if !secCtx.Identity.Verified {
		factors = append(factors, RiskFactor{
			Type:        "identity",
			Severity:    "high",
			Description: "agent identity is not verified",
			Score:       0.8,
		})
		totalScore += 0.8
	}

	if secCtx.Behavior.AnomalyScore > 0.7 {
		factors = append(factors, RiskFactor{
			Type:        "behavior",
			Severity:    "medium",
			Description: "behavioral anomaly score above threshold",
			Score:       0.6,
		})
		totalScore += 0.6
	}

	if trust.OverallScore < 0.3 {
		factors = append(factors, RiskFactor{
			Type:        "identity",
			Severity:    "high",
			Description: "agent trust score below minimum threshold",
			Score:       0.9,
		})
		totalScore += 0.9
	}

	averageScore := 0.0
	if len(factors) > 0 {
		averageScore = totalScore / float64(len(factors))
	}

	level := riskLevelFromScore(averageScore)
	mitigations, recommendations := deriveMitigations(factors)

	ra.logger.Debug("risk assessed",
		"agent_id", secCtx.AgentID, "risk_level", level,
		"score", averageScore, "factors", len(factors))

	return &RiskAssessment{
		RiskLevel:       level,
		Score:           averageScore,
		Factors:         factors,
		Mitigations:     mitigations,
		Recommendations: recommendations,
		Confidence:      riskConfidence,
		ValidUntil:      time.Now().Add(riskValidityWindow),
	}
}

func riskLevelFromScore(score float64) RiskLevel {
	switch {
	case score >= 0.9:
		return RiskCritical
	case score >= 0.7:
		return RiskVeryHigh
	case score >= 0.5:
		return RiskHigh
	case score >= 0.3:
		return RiskMedium
	case score >= 0.1:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

func deriveMitigations(factors []RiskFactor) (mitigations, recommendations []string) {
	seen := make(map[string]bool)
	for _, factor := range factors {
		if seen[factor.Type] {
			continue
		}
		seen[factor.Type] = true
		switch factor.Type {
		case "identity":
			mitigations = append(mitigations, "require additional authentication")
			recommendations = append(recommendations, "stronger identity verification")
		case "behavior":
			mitigations = append(mitigations, "enhanced monitoring")
			recommendations = append(recommendations, "behavioral analytics")
		case "location":
			mitigations = append(mitigations, "location verification")
		}
	}
	return mitigations, recommendations
}
