// Package zerotrust implements the access evaluation engine: per-agent trust
// scoring, risk assessment, prioritized policy evaluation, adaptive response
// selection, and the continuous monitoring loops around them.
package zerotrust

import (
	"time"
)

// RiskLevel classifies how dangerous granting access would be.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
	RiskCritical RiskLevel = "critical"
)

// TrustEventType identifies the kind of event driving a trust score update.
type TrustEventType string

const (
	EventAuthentication   TrustEventType = "authentication"
	EventBehavior         TrustEventType = "behavior"
	EventCompliance       TrustEventType = "compliance"
	EventSecurityIncident TrustEventType = "security_incident"
)

// TrustEventOutcome is the direction of a trust event.
type TrustEventOutcome string

const (
	OutcomePositive TrustEventOutcome = "positive"
	OutcomeNegative TrustEventOutcome = "negative"
	OutcomeNeutral  TrustEventOutcome = "neutral"
)

// SegmentType identifies the class of a network segment.
type SegmentType string

const (
	SegmentProduction  SegmentType = "production"
	SegmentStaging     SegmentType = "staging"
	SegmentDevelopment SegmentType = "development"
	SegmentIsolated    SegmentType = "isolated"
	SegmentQuarantine  SegmentType = "quarantine"
)

// Adaptive action names dispatched after a decision.
const (
	ActionQuarantine        = "quarantine"
	ActionAlertAdmin        = "alert_admin"
	ActionEnhanceMonitoring = "enhance_monitoring"
	ActionRequireReauth     = "require_reauthentication"
	ActionRestrictCaps      = "restrict_capabilities"
)

// TrustEvent is an input-only record of something an agent did.
type TrustEvent struct {
	Type    TrustEventType         `json:"type"`
	Outcome TrustEventOutcome      `json:"outcome"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// TrustComponents breaks a trust score down by signal source. Every value is
// kept within [0,1].
type TrustComponents struct {
	Identity   float64 `json:"identity"`
	Behavior   float64 `json:"behavior"`
	Location   float64 `json:"location"`
	Device     float64 `json:"device"`
	Network    float64 `json:"network"`
	Compliance float64 `json:"compliance"`
	Reputation float64 `json:"reputation"`
}

// TrustHistoryEntry records one score mutation.
type TrustHistoryEntry struct {
	Timestamp           time.Time `json:"timestamp"`
	Score               float64   `json:"score"`
	Reason              string    `json:"reason"`
	ContributingFactors []string  `json:"contributing_factors,omitempty"`
}

// TrustScore is the long-lived confidence record for one agent. OverallScore
// and every component are always within [0,1].
type TrustScore struct {
	AgentID         string              `json:"agent_id"`
	OverallScore    float64             `json:"overall_score"`
	Components      TrustComponents     `json:"components"`
	PositiveFactors []string            `json:"positive_factors,omitempty"`
	NegativeFactors []string            `json:"negative_factors,omitempty"`
	UnknownFactors  []string            `json:"unknown_factors,omitempty"`
	History         []TrustHistoryEntry `json:"history,omitempty"`
	LastUpdated     time.Time           `json:"last_updated"`
}

// LocationInfo describes where a request originated.
type LocationInfo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
	Trusted bool   `json:"trusted"`
}

// DeviceInfo describes the requesting device.
type DeviceInfo struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Platform string `json:"platform,omitempty"`
	Managed  bool   `json:"managed"`
}

// NetworkInfo places the request in a network segment.
type NetworkInfo struct {
	Segment string `json:"segment,omitempty"`
}

// SourceInfo groups the request origin signals.
type SourceInfo struct {
	IP       string        `json:"ip,omitempty"`
	Location *LocationInfo `json:"location,omitempty"`
	Network  NetworkInfo   `json:"network"`
	Device   *DeviceInfo   `json:"device,omitempty"`
}

// IdentityInfo carries the caller's identity verification state. Absence of
// verification is never treated as verified.
type IdentityInfo struct {
	Verified     bool     `json:"verified"`
	AuthMethod   string   `json:"auth_method,omitempty"`
	Certificates []string `json:"certificates,omitempty"`
	TrustLevel   string   `json:"trust_level,omitempty"`
}

// BehaviorInfo carries behavioral analysis signals for the request.
type BehaviorInfo struct {
	Pattern      string   `json:"pattern,omitempty"`
	AnomalyScore float64  `json:"anomaly_score"`
	RiskFactors  []string `json:"risk_factors,omitempty"`
}

// ResourceInfo describes the resource being accessed.
type ResourceInfo struct {
	Type           string `json:"type,omitempty"`
	Classification string `json:"classification,omitempty"`
	Owner          string `json:"owner,omitempty"`
	Sensitivity    string `json:"sensitivity,omitempty"`
}

// SecurityContext is the immutable per-request input to the decision
// pipeline. Missing caller fields default to conservative values.
type SecurityContext struct {
	AgentID   string                 `json:"agent_id"`
	SessionID string                 `json:"session_id,omitempty"`
	RequestID string                 `json:"request_id"`
	Timestamp time.Time              `json:"timestamp"`
	Source    SourceInfo             `json:"source"`
	Identity  IdentityInfo           `json:"identity"`
	Behavior  BehaviorInfo           `json:"behavior"`
	Resource  ResourceInfo           `json:"resource"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// RiskFactor is one contributor to a risk assessment.
type RiskFactor struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Mitigated   bool    `json:"mitigated"`
}

// RiskAssessment classifies one decision's risk. It must not be cached past
// ValidUntil.
type RiskAssessment struct {
	RiskLevel       RiskLevel    `json:"risk_level"`
	Score           float64      `json:"score"`
	Factors         []RiskFactor `json:"factors,omitempty"`
	Mitigations     []string     `json:"mitigations,omitempty"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Confidence      float64      `json:"confidence"`
	ValidUntil      time.Time    `json:"valid_until"`
}

// PolicyConditions scopes when a policy applies. Nil condition groups are not
// enforced.
type PolicyConditions struct {
	RiskLevels      []RiskLevel `json:"risk_levels,omitempty"`
	AgentTypes      []string    `json:"agent_types,omitempty"`
	NetworkSegments []string    `json:"network_segments,omitempty"`
}

// PolicyActions is the outcome a matching policy imposes.
type PolicyActions struct {
	Allow        bool          `json:"allow"`
	Requirements []string      `json:"requirements,omitempty"`
	Restrictions []string      `json:"restrictions,omitempty"`
	Monitoring   []string      `json:"monitoring,omitempty"`
	TimeLimit    time.Duration `json:"time_limit,omitempty"`
}

// Policy is an admin-managed, priority-ordered access rule.
type Policy struct {
	PolicyID   string            `json:"policy_id"`
	Name       string            `json:"name"`
	Version    string            `json:"version,omitempty"`
	Conditions PolicyConditions  `json:"conditions"`
	Actions    PolicyActions     `json:"actions"`
	Priority   int               `json:"priority"`
	Enabled    bool              `json:"enabled"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// PolicyDecision is the policy engine's verdict before risk overrides.
type PolicyDecision struct {
	Allowed         bool          `json:"allowed"`
	Reason          string        `json:"reason"`
	Conditions      []string      `json:"conditions,omitempty"`
	Restrictions    []string      `json:"restrictions,omitempty"`
	Monitoring      []string      `json:"monitoring,omitempty"`
	TimeLimit       time.Duration `json:"time_limit,omitempty"`
	MatchedPolicies []string      `json:"matched_policies"`
}

// IsolationRule constrains traffic between segments.
type IsolationRule struct {
	FromSegments []string `json:"from_segments,omitempty"`
	ToSegments   []string `json:"to_segments,omitempty"`
	Protocol     string   `json:"protocol,omitempty"`
	Ports        []int    `json:"ports,omitempty"`
	Action       string   `json:"action"`
}

// TrafficPolicy describes allowed traffic within a segment.
type TrafficPolicy struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol,omitempty"`
	Port     int    `json:"port,omitempty"`
	Action   string `json:"action"`
}

// SegmentMonitoring configures traffic inspection for a segment.
type SegmentMonitoring struct {
	Enabled       bool   `json:"enabled"`
	Level         string `json:"level,omitempty"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// NetworkSegment is a named zone with isolation rules and traffic policies.
type NetworkSegment struct {
	SegmentID         string            `json:"segment_id"`
	Name              string            `json:"name"`
	Type              SegmentType       `json:"type"`
	AllowedAgentTypes []string          `json:"allowed_agent_types,omitempty"`
	SecurityLevel     string            `json:"security_level,omitempty"`
	IsolationRules    []IsolationRule   `json:"isolation_rules,omitempty"`
	TrafficPolicies   []TrafficPolicy   `json:"traffic_policies,omitempty"`
	Monitoring        SegmentMonitoring `json:"monitoring"`
}

// AdaptiveResponse is the follow-up action set selected for a decision.
type AdaptiveResponse struct {
	ResponseType string             `json:"response_type"`
	Actions      []string           `json:"actions"`
	Duration     time.Duration      `json:"duration"`
	Monitoring   ResponseMonitoring `json:"monitoring"`
}

// ResponseMonitoring flags the monitoring posture after a decision.
type ResponseMonitoring struct {
	Enhanced bool `json:"enhanced"`
	Alerts   bool `json:"alerts"`
}

// Decision is the engine's answer to one access request.
type Decision struct {
	RequestID       string        `json:"request_id"`
	Allowed         bool          `json:"allowed"`
	Reason          string        `json:"reason"`
	Conditions      []string      `json:"conditions,omitempty"`
	Restrictions    []string      `json:"restrictions,omitempty"`
	Monitoring      []string      `json:"monitoring,omitempty"`
	TimeLimit       time.Duration `json:"time_limit,omitempty"`
	TrustScore      float64       `json:"trust_score"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	PolicyMatches   []string      `json:"policy_matches,omitempty"`
	AdaptiveActions []string      `json:"adaptive_actions,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// QuarantineRecord is the TTL cache entry marking an agent as quarantined.
type QuarantineRecord struct {
	AgentID   string        `json:"agent_id"`
	SegmentID string        `json:"segment_id"`
	Reason    string        `json:"reason"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Violation is a compliance finding against a policy.
type Violation struct {
	PolicyID    string `json:"policy_id"`
	Rule        string `json:"rule"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// BehaviorAnalysis is the result of a pluggable behavioral re-analysis.
type BehaviorAnalysis struct {
	HasChanges bool                   `json:"has_changes"`
	Outcome    TrustEventOutcome      `json:"outcome"`
	Details    map[string]interface{} `json:"details,omitempty"`
}
