package zerotrust

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultDenyPolicyID identifies the seeded catch-all deny policy. It cannot
// be removed, so an agent matching no explicit-allow policy is always denied.
const DefaultDenyPolicyID = "default-deny"

// ErrInvalidPolicy marks policy validation failures.
var ErrInvalidPolicy = errors.New("invalid policy")

// ErrInvalidSegment marks segment validation failures.
var ErrInvalidSegment = errors.New("invalid network segment")

func defaultDenyPolicy() *Policy {
	now := time.Now()
	return &Policy{
		PolicyID: DefaultDenyPolicyID,
		Name:     "Default Deny",
		Version:  "1",
		Actions: PolicyActions{
			Allow:      false,
			Monitoring: []string{"access_attempts"},
		},
		Priority:  0,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PolicyStore holds the prioritized policy set. It is read-mostly; updates
// are atomic with respect to readers.
type PolicyStore struct {
	policies map[string]*Policy
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewPolicyStore creates a policy store seeded with the default-deny policy.
func NewPolicyStore(logger *slog.Logger) *PolicyStore {
	if logger == nil {
		logger = slog.Default()
	}
	ps := &PolicyStore{
		policies: make(map[string]*Policy),
		logger:   logger.With("component", "policy-store"),
	}
	seed := defaultDenyPolicy()
	ps.policies[seed.PolicyID] = seed
	return ps
}

func validatePolicy(policy *Policy) error {
	if policy == nil {
		return fmt.Errorf("%w: policy must not be nil", ErrInvalidPolicy)
	}
	if policy.PolicyID == "" {
		return fmt.Errorf("%w: policy id is required", ErrInvalidPolicy)
	}
	if policy.Name == "" {
		return fmt.Errorf("%w: policy name is required", ErrInvalidPolicy)
	}
	if policy.Priority < 0 || policy.Priority > 100 {
		return fmt.Errorf("%w: priority %d outside [0,100]", ErrInvalidPolicy, policy.Priority)
	}
	return nil
}

// Add validates and stores a policy, replacing any existing policy with the
// same id.
func (ps *PolicyStore) Add(policy *Policy) error {
	if err := validatePolicy(policy); err != nil {
		return err
	}

	stored := *policy
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	ps.mu.Lock()
	ps.policies[stored.PolicyID] = &stored
	ps.mu.Unlock()

	ps.logger.Info("policy added",
		"policy_id", stored.PolicyID, "priority", stored.Priority, "allow", stored.Actions.Allow)
	return nil
}

// Remove deletes a policy. The default-deny policy cannot be removed.
func (ps *PolicyStore) Remove(policyID string) error {
	if policyID == DefaultDenyPolicyID {
		return fmt.Errorf("%w: the default-deny policy cannot be removed", ErrInvalidPolicy)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exists := ps.policies[policyID]; !exists {
		return fmt.Errorf("policy not found: %s", policyID)
	}
	delete(ps.policies, policyID)
	return nil
}

// SetEnabled toggles a policy without removing it.
func (ps *PolicyStore) SetEnabled(policyID string, enabled bool) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	policy, exists := ps.policies[policyID]
	if !exists {
		return fmt.Errorf("policy not found: %s", policyID)
	}
	policy.Enabled = enabled
	policy.UpdatedAt = time.Now()
	return nil
}

// Get returns a copy of one policy.
func (ps *PolicyStore) Get(policyID string) (*Policy, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	policy, exists := ps.policies[policyID]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", policyID)
	}
	copied := *policy
	return &copied, nil
}

// List returns copies of all policies sorted by priority descending, then
// policy id ascending.
func (ps *PolicyStore) List() []*Policy {
	ps.mu.RLock()
	policies := make([]*Policy, 0, len(ps.policies))
	for _, policy := range ps.policies {
		copied := *policy
		policies = append(policies, &copied)
	}
	ps.mu.RUnlock()

	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		return policies[i].PolicyID < policies[j].PolicyID
	})
	return policies
}

// EnabledCount returns the number of enabled policies.
func (ps *PolicyStore) EnabledCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	count := 0
	for _, policy := range ps.policies {
		if policy.Enabled {
			count++
		}
	}
	return count
}

// PolicyEngine matches context, trust, and risk against the policy set.
type PolicyEngine struct {
	logger *slog.Logger
}

// NewPolicyEngine creates a policy engine.
func NewPolicyEngine(logger *slog.Logger) *PolicyEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyEngine{logger: logger.With("component", "policy-engine")}
}

// Evaluate returns the decision of the highest-priority matching enabled
// policy. Ties resolve deterministically to the lexicographically smallest
// policy id. All matched policy ids are reported for audit completeness.
func (pe *PolicyEngine) Evaluate(secCtx *SecurityContext, trust *TrustScore, risk *RiskAssessment, policies []*Policy) *PolicyDecision {
	decision := &PolicyDecision{
		Allowed:         false,
		Reason:          "No matching policy",
		MatchedPolicies: []string{},
	}

	var winner *Policy
	for _, policy := range policies {
		if !policy.Enabled || !policyMatches(policy, secCtx, risk) {
			continue
		}
		decision.MatchedPolicies = append(decision.MatchedPolicies, policy.PolicyID)

		if winner == nil ||
			policy.Priority > winner.Priority ||
			(policy.Priority == winner.Priority && policy.PolicyID < winner.PolicyID) {
			winner = policy
		}
	}

	if winner != nil {
		decision.Allowed = winner.Actions.Allow
		decision.Reason = fmt.Sprintf("Matched policy: %s", winner.Name)
		decision.Conditions = append([]string(nil), winner.Actions.Requirements...)
		decision.Restrictions = append([]string(nil), winner.Actions.Restrictions...)
		decision.Monitoring = append([]string(nil), winner.Actions.Monitoring...)
		decision.TimeLimit = winner.Actions.TimeLimit
	}

	pe.logger.Debug("policy evaluated",
		"agent_id", secCtx.AgentID,
		"matches", len(decision.MatchedPolicies),
		"allowed", decision.Allowed)
	return decision
}

func policyMatches(policy *Policy, secCtx *SecurityContext, risk *RiskAssessment) bool {
	conditions := policy.Conditions

	if len(conditions.RiskLevels) > 0 && !containsRiskLevel(conditions.RiskLevels, risk.RiskLevel) {
		return false
	}

	// Agent type is only enforced when both the policy scopes it and the
	// request metadata carries it.
	if len(conditions.AgentTypes) > 0 {
		if agentType, ok := secCtx.Metadata["agentType"].(string); ok {
			if !containsString(conditions.AgentTypes, agentType) {
				return false
			}
		}
	}

	if len(conditions.NetworkSegments) > 0 &&
		!containsString(conditions.NetworkSegments, secCtx.Source.Network.Segment) {
		return false
	}

	return true
}

func containsRiskLevel(levels []RiskLevel, level RiskLevel) bool {
	for _, candidate := range levels {
		if candidate == level {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
