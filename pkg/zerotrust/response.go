package zerotrust

import (
	"log/slog"
	"time"
)

// AdaptiveResponder maps a risk level (and policy outcome) to the follow-up
// actions the engine dispatches after a decision.
type AdaptiveResponder struct {
	logger *slog.Logger
}

// NewAdaptiveResponder creates an adaptive responder.
func NewAdaptiveResponder(logger *slog.Logger) *AdaptiveResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdaptiveResponder{logger: logger.With("component", "adaptive-responder")}
}

// Determine selects the action set, response type, and duration for a
// decision.
func (ar *AdaptiveResponder) Determine(secCtx *SecurityContext, trust *TrustScore, risk *RiskAssessment, policy *PolicyDecision) *AdaptiveResponse {
	response := &AdaptiveResponse{
		ResponseType: "challenge",
		Actions:      []string{},
		Monitoring: ResponseMonitoring{
			Enhanced: risk.RiskLevel != RiskVeryLow,
			Alerts: risk.RiskLevel == RiskHigh ||
				risk.RiskLevel == RiskVeryHigh ||
				risk.RiskLevel == RiskCritical,
		},
	}

	switch risk.RiskLevel {
	case RiskCritical:
		response.ResponseType = "isolate"
		response.Actions = []string{ActionQuarantine, ActionAlertAdmin, ActionEnhanceMonitoring}
		response.Duration = time.Hour
	case RiskVeryHigh:
		response.Actions = []string{ActionRequireReauth, ActionRestrictCaps, ActionAlertAdmin}
		response.Duration = 30 * time.Minute
	case RiskHigh:
		response.Actions = []string{ActionEnhanceMonitoring, ActionRequireReauth}
		response.Duration = 15 * time.Minute
	case RiskMedium:
		response.Actions = []string{ActionEnhanceMonitoring}
		response.Duration = 5 * time.Minute
	default:
		response.Duration = time.Minute
	}

	ar.logger.Debug("adaptive response determined",
		"agent_id", secCtx.AgentID,
		"risk_level", risk.RiskLevel,
		"actions", response.Actions)
	return response
}
