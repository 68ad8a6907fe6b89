package zerotrust

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/accessguard/accessd/pkg/events"
	"github.com/accessguard/accessd/pkg/store"
)

// EngineConfig holds decision engine tunables.
type EngineConfig struct {
	AuditTTL             time.Duration
	DefaultQuarantineTTL time.Duration
	Registry             prometheus.Registerer
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		AuditTTL:             24 * time.Hour,
		DefaultQuarantineTTL: time.Hour,
	}
}

// RequestContext is the caller-supplied raw context for one evaluation.
// Every field is optional; missing fields default to conservative values.
type RequestContext struct {
	SessionID      string
	RequestID      string
	SourceIP       string
	NetworkSegment string
	Location       *LocationInfo
	Device         *DeviceInfo
	Identity       *IdentityInfo
	Behavior       *BehaviorInfo
	Resource       *ResourceInfo
	Metadata       map[string]interface{}
}

// Engine is the access evaluation orchestrator. EvaluateAccess always
// returns a Decision; internal failures produce a fail-secure deny, never an
// error to the caller.
type Engine struct {
	config    *EngineConfig
	store     store.Store
	bus       *events.Bus
	logger    *slog.Logger
	trust     *TrustStore
	assessor  *RiskAssessor
	policies  *PolicyStore
	engine    *PolicyEngine
	segments  *SegmentStore
	responder *AdaptiveResponder
	metrics   *metricsRecorder

	// Local quarantine index for listing; the store remains the membership
	// authority.
	quarantined   map[string]time.Time
	quarantineMu  sync.Mutex
	calculator    TrustCalculator
	failureReason string
}

// NewEngine wires the engine components around a store and an event bus.
func NewEngine(config *EngineConfig, backing store.Store, bus *events.Bus, logger *slog.Logger) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		config:        config,
		store:         backing,
		bus:           bus,
		logger:        logger.With("component", "access-engine"),
		trust:         NewTrustStore(logger),
		assessor:      NewRiskAssessor(logger),
		policies:      NewPolicyStore(logger),
		engine:        NewPolicyEngine(logger),
		segments:      NewSegmentStore(logger),
		responder:     NewAdaptiveResponder(logger),
		metrics:       newMetricsRecorder(config.Registry),
		quarantined:   make(map[string]time.Time),
		failureReason: "Access evaluation error - failing secure",
	}
}

// EvaluateAccess runs the full decision pipeline for one request. It never
// returns an error: any internal failure yields a deny with critical risk.
func (e *Engine) EvaluateAccess(ctx context.Context, agentID, resource, action string, req *RequestContext) (decision *Decision) {
	start := time.Now()
	requestID := ""
	if req != nil {
		requestID = req.RequestID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("access evaluation failed, failing secure",
				"agent_id", agentID, "resource", resource, "panic", r)
			e.metrics.recordFailure()
			decision = e.failSecure(requestID)
			e.metrics.recordDecision(false, time.Since(start))
		}
	}()

	secCtx := e.buildContext(agentID, resource, req)
	secCtx.RequestID = requestID

	// Advisory contextual bump applied only to this decision's working copy;
	// the stored score is mutated exclusively through trust events.
	trust := e.trust.Snapshot(agentID)
	adjustment := e.calculator.ContextualAdjustment(trust, secCtx)
	trust.OverallScore = clamp(trust.OverallScore + adjustment)

	risk := e.assessor.Assess(secCtx, trust)
	policyDecision := e.engine.Evaluate(secCtx, trust, risk, e.policies.List())
	response := e.responder.Determine(secCtx, trust, risk, policyDecision)

	// A critical risk level overrides an allowing policy. It never turns a
	// deny into an allow.
	allowed := policyDecision.Allowed && risk.RiskLevel != RiskCritical
	reason := policyDecision.Reason
	if policyDecision.Allowed && !allowed {
		reason = "Denied: critical risk level"
	}

	decision = &Decision{
		RequestID:       secCtx.RequestID,
		Allowed:         allowed,
		Reason:          reason,
		Conditions:      policyDecision.Conditions,
		Restrictions:    policyDecision.Restrictions,
		Monitoring:      policyDecision.Monitoring,
		TimeLimit:       policyDecision.TimeLimit,
		TrustScore:      trust.OverallScore,
		RiskLevel:       risk.RiskLevel,
		PolicyMatches:   policyDecision.MatchedPolicies,
		AdaptiveActions: response.Actions,
		Timestamp:       time.Now(),
	}

	// Action execution and the audit record are part of the pipeline: if the
	// store backend cannot serve them, the open decision must not stand.
	if err := e.executeActions(ctx, secCtx, response); err != nil {
		return e.failPipeline(requestID, agentID, start, "action execution", err)
	}
	if err := e.auditDecision(ctx, secCtx, resource, action, decision); err != nil {
		return e.failPipeline(requestID, agentID, start, "audit record", err)
	}
	e.metrics.recordDecision(allowed, time.Since(start))

	e.bus.Publish(events.EventAccessDecision, map[string]interface{}{
		"agent_id": agentID,
		"resource": resource,
		"action":   action,
		"decision": decision,
		"context":  secCtx,
	})

	e.logger.Info("access decision",
		"agent_id", agentID, "resource", resource, "action", action,
		"allowed", allowed, "risk_level", risk.RiskLevel,
		"request_id", secCtx.RequestID)
	return decision
}

func (e *Engine) buildContext(agentID, resource string, req *RequestContext) *SecurityContext {
	if req == nil {
		req = &RequestContext{}
	}

	secCtx := &SecurityContext{
		AgentID:   agentID,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		Source: SourceInfo{
			IP:       req.SourceIP,
			Location: req.Location,
			Network:  NetworkInfo{Segment: req.NetworkSegment},
			Device:   req.Device,
		},
		// Unverified unless the caller says otherwise.
		Identity: IdentityInfo{Verified: false},
		Behavior: BehaviorInfo{},
		Resource: ResourceInfo{Type: resource},
		// Copied so a caller mutating its map cannot change the context
		// mid-evaluation.
		Metadata: copyMetadata(req.Metadata),
	}
	if secCtx.RequestID == "" {
		secCtx.RequestID = uuid.NewString()
	}
	if req.Identity != nil {
		secCtx.Identity = *req.Identity
	}
	if req.Behavior != nil {
		secCtx.Behavior = *req.Behavior
	}
	if req.Resource != nil {
		secCtx.Resource = *req.Resource
	}
	return secCtx
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		copied[key] = value
	}
	return copied
}

func (e *Engine) failSecure(requestID string) *Decision {
	return &Decision{
		RequestID:  requestID,
		Allowed:    false,
		Reason:     e.failureReason,
		TrustScore: 0,
		RiskLevel:  RiskCritical,
		Timestamp:  time.Now(),
	}
}

func (e *Engine) failPipeline(requestID, agentID string, start time.Time, stage string, err error) *Decision {
	e.logger.Error("access evaluation failed, failing secure",
		"agent_id", agentID, "stage", stage, "error", err)
	e.metrics.recordFailure()
	decision := e.failSecure(requestID)
	e.metrics.recordDecision(false, time.Since(start))
	return decision
}

func (e *Engine) executeActions(ctx context.Context, secCtx *SecurityContext, response *AdaptiveResponse) error {
	for _, action := range response.Actions {
		switch action {
		case ActionEnhanceMonitoring:
			marker, _ := json.Marshal(map[string]interface{}{
				"agent_id":   secCtx.AgentID,
				"request_id": secCtx.RequestID,
				"since":      time.Now(),
				"duration":   response.Duration.String(),
			})
			if err := e.store.Set(ctx, monitoringKey(secCtx.AgentID), marker, response.Duration); err != nil {
				return fmt.Errorf("failed to write enhanced monitoring marker: %w", err)
			}
		case ActionRequireReauth, ActionRestrictCaps, ActionAlertAdmin:
			e.bus.Publish(action, map[string]interface{}{
				"agent_id":   secCtx.AgentID,
				"request_id": secCtx.RequestID,
				"duration":   response.Duration.String(),
			})
		case ActionQuarantine:
			if err := e.QuarantineAgent(ctx, secCtx.AgentID, "critical risk level", response.Duration); err != nil {
				return fmt.Errorf("failed to quarantine agent: %w", err)
			}
		default:
			e.logger.Warn("unknown adaptive action", "action", action)
		}
	}
	return nil
}

func (e *Engine) auditDecision(ctx context.Context, secCtx *SecurityContext, resource, action string, decision *Decision) error {
	record, err := json.Marshal(map[string]interface{}{
		"agent_id":  secCtx.AgentID,
		"resource":  resource,
		"action":    action,
		"decision":  decision,
		"timestamp": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	if err := e.store.Set(ctx, auditKey(decision.RequestID), record, e.config.AuditTTL); err != nil {
		return fmt.Errorf("failed to persist audit record: %w", err)
	}
	return nil
}

// UpdateTrustScore applies a trust event for an agent and returns the
// resulting score.
func (e *Engine) UpdateTrustScore(ctx context.Context, agentID string, event TrustEvent) (*TrustScore, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}

	score := e.trust.Update(agentID, event)
	e.snapshotTrust(ctx, score)

	e.bus.Publish(events.EventTrustScoreUpdated, map[string]interface{}{
		"agent_id":   agentID,
		"event_type": string(event.Type),
		"outcome":    string(event.Outcome),
		"score":      score.OverallScore,
	})
	return score, nil
}

func (e *Engine) snapshotTrust(ctx context.Context, score *TrustScore) {
	data, err := json.Marshal(score)
	if err != nil {
		e.logger.Warn("failed to encode trust snapshot", "agent_id", score.AgentID, "error", err)
		return
	}
	if err := e.store.Set(ctx, trustKey(score.AgentID), data, 0); err != nil {
		e.logger.Warn("failed to persist trust snapshot", "agent_id", score.AgentID, "error", err)
	}
}

// GetTrustScore returns the stored trust score for a known agent.
func (e *Engine) GetTrustScore(agentID string) (*TrustScore, error) {
	return e.trust.Get(agentID)
}

// AddPolicy validates and installs a policy.
func (e *Engine) AddPolicy(ctx context.Context, policy *Policy) error {
	if err := e.policies.Add(policy); err != nil {
		return err
	}

	if data, err := json.Marshal(policy); err == nil {
		if err := e.store.Set(ctx, policyKey(policy.PolicyID), data, 0); err != nil {
			e.logger.Warn("failed to persist policy snapshot",
				"policy_id", policy.PolicyID, "error", err)
		}
	}

	e.bus.Publish(events.EventPolicyAdded, map[string]interface{}{
		"policy_id": policy.PolicyID,
		"priority":  policy.Priority,
		"allow":     policy.Actions.Allow,
	})
	return nil
}

// RemovePolicy deletes a policy. The default-deny policy cannot be removed.
func (e *Engine) RemovePolicy(ctx context.Context, policyID string) error {
	if err := e.policies.Remove(policyID); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, policyKey(policyID)); err != nil {
		e.logger.Warn("failed to delete policy snapshot", "policy_id", policyID, "error", err)
	}
	e.bus.Publish(events.EventPolicyRemoved, map[string]interface{}{"policy_id": policyID})
	return nil
}

// SetPolicyEnabled toggles a policy without removing it.
func (e *Engine) SetPolicyEnabled(policyID string, enabled bool) error {
	return e.policies.SetEnabled(policyID, enabled)
}

// GetPolicies returns all policies sorted by priority.
func (e *Engine) GetPolicies() []*Policy {
	return e.policies.List()
}

// CreateNetworkSegment validates and registers a segment.
func (e *Engine) CreateNetworkSegment(ctx context.Context, segment *NetworkSegment) error {
	if err := e.segments.Add(segment); err != nil {
		return err
	}

	if data, err := json.Marshal(segment); err == nil {
		if err := e.store.Set(ctx, segmentKey(segment.SegmentID), data, 0); err != nil {
			e.logger.Warn("failed to persist segment snapshot",
				"segment_id", segment.SegmentID, "error", err)
		}
	}

	e.bus.Publish(events.EventSegmentCreated, map[string]interface{}{
		"segment_id": segment.SegmentID,
		"type":       string(segment.Type),
	})
	return nil
}

// GetNetworkSegments returns all registered segments.
func (e *Engine) GetNetworkSegments() []*NetworkSegment {
	return e.segments.List()
}

// QuarantineAgent places an agent into the quarantine segment for the given
// duration (the default TTL when duration is zero) and records a negative
// security incident against its trust score.
func (e *Engine) QuarantineAgent(ctx context.Context, agentID, reason string, duration time.Duration) error {
	if agentID == "" {
		return fmt.Errorf("agent id is required")
	}
	if duration <= 0 {
		duration = e.config.DefaultQuarantineTTL
	}

	record := QuarantineRecord{
		AgentID:   agentID,
		SegmentID: string(SegmentQuarantine),
		Reason:    reason,
		Timestamp: time.Now(),
		Duration:  duration,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode quarantine record: %w", err)
	}
	if err := e.store.Set(ctx, quarantineKey(agentID), data, duration); err != nil {
		return fmt.Errorf("failed to persist quarantine record: %w", err)
	}

	e.quarantineMu.Lock()
	e.quarantined[agentID] = time.Now().Add(duration)
	count := len(e.quarantined)
	e.quarantineMu.Unlock()
	e.metrics.setQuarantined(count)

	if _, err := e.UpdateTrustScore(ctx, agentID, TrustEvent{
		Type:    EventSecurityIncident,
		Outcome: OutcomeNegative,
		Details: map[string]interface{}{"reason": reason},
	}); err != nil {
		e.logger.Warn("failed to record quarantine trust event",
			"agent_id", agentID, "error", err)
	}

	e.bus.Publish(events.EventAgentQuarantined, map[string]interface{}{
		"agent_id": agentID,
		"reason":   reason,
		"duration": duration.String(),
	})

	e.logger.Warn("agent quarantined",
		"agent_id", agentID, "reason", reason, "duration", duration)
	return nil
}

// IsAgentQuarantined reports whether the agent has an active quarantine
// record.
func (e *Engine) IsAgentQuarantined(ctx context.Context, agentID string) bool {
	exists, err := e.store.Exists(ctx, quarantineKey(agentID))
	if err != nil {
		e.logger.Warn("quarantine check failed, using local index",
			"agent_id", agentID, "error", err)
		e.quarantineMu.Lock()
		defer e.quarantineMu.Unlock()
		expiry, tracked := e.quarantined[agentID]
		return tracked && time.Now().Before(expiry)
	}
	return exists
}

// GetQuarantinedAgents returns the ids of agents currently quarantined.
func (e *Engine) GetQuarantinedAgents() []string {
	e.quarantineMu.Lock()
	defer e.quarantineMu.Unlock()

	now := time.Now()
	agents := make([]string, 0, len(e.quarantined))
	for agentID, expiry := range e.quarantined {
		if now.After(expiry) {
			delete(e.quarantined, agentID)
			continue
		}
		agents = append(agents, agentID)
	}
	e.metrics.setQuarantined(len(agents))
	return agents
}

// ReleaseFromQuarantine removes the agent's quarantine record and credits a
// positive compliance trust event.
func (e *Engine) ReleaseFromQuarantine(ctx context.Context, agentID string) error {
	if err := e.store.Delete(ctx, quarantineKey(agentID)); err != nil {
		return fmt.Errorf("failed to delete quarantine record: %w", err)
	}

	e.quarantineMu.Lock()
	delete(e.quarantined, agentID)
	count := len(e.quarantined)
	e.quarantineMu.Unlock()
	e.metrics.setQuarantined(count)

	if _, err := e.UpdateTrustScore(ctx, agentID, TrustEvent{
		Type:    EventCompliance,
		Outcome: OutcomePositive,
		Details: map[string]interface{}{"reason": "released from quarantine"},
	}); err != nil {
		e.logger.Warn("failed to record release trust event",
			"agent_id", agentID, "error", err)
	}

	e.bus.Publish(events.EventAgentReleased, map[string]interface{}{
		"agent_id": agentID,
	})

	e.logger.Info("agent released from quarantine", "agent_id", agentID)
	return nil
}

// GetMetrics returns the engine's running counters plus live registry counts.
func (e *Engine) GetMetrics() EngineMetrics {
	snapshot := e.metrics.snapshot()
	snapshot.TrustScores = e.trust.Count()
	snapshot.EnabledPolicies = e.policies.EnabledCount()
	snapshot.NetworkSegments = e.segments.Count()
	snapshot.QuarantinedAgents = len(e.GetQuarantinedAgents())
	return snapshot
}

func trustKey(agentID string) string      { return "trust:" + agentID }
func policyKey(policyID string) string    { return "policy:" + policyID }
func segmentKey(segmentID string) string  { return "segment:" + segmentID }
func quarantineKey(agentID string) string { return "quarantine:" + agentID }
func auditKey(requestID string) string    { return "decision:" + requestID }
func monitoringKey(agentID string) string { return "enhanced_monitoring:" + agentID }
