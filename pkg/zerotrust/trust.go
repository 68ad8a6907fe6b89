package zerotrust

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	historyMax  = 100
	historyKeep = 50

	neutralPrior = 0.5
)

// trustDeltas is the fixed per-type magnitude table. Positive outcomes add
// the first value, negative outcomes subtract the second. Neutral outcomes
// and unknown event types contribute nothing.
var trustDeltas = map[TrustEventType]struct{ positive, negative float64 }{
	EventAuthentication:   {0.1, 0.2},
	EventBehavior:         {0.05, 0.1},
	EventCompliance:       {0.05, 0.15},
	EventSecurityIncident: {0.1, 0.3},
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TrustCalculator computes trust score deltas and applies them. It is the
// only writer of TrustScore records.
type TrustCalculator struct{}

// Initialize returns the neutral prior score for an unseen agent.
func (TrustCalculator) Initialize(agentID string) *TrustScore {
	now := time.Now()
	return &TrustScore{
		AgentID:      agentID,
		OverallScore: neutralPrior,
		Components: TrustComponents{
			Identity:   neutralPrior,
			Behavior:   neutralPrior,
			Location:   neutralPrior,
			Device:     neutralPrior,
			Network:    neutralPrior,
			Compliance: neutralPrior,
			Reputation: neutralPrior,
		},
		NegativeFactors: []string{"new_agent"},
		History: []TrustHistoryEntry{{
			Timestamp: now,
			Score:     neutralPrior,
			Reason:    "initialized",
		}},
		LastUpdated: now,
	}
}

// Delta returns the score change for an event.
func (TrustCalculator) Delta(event TrustEvent) float64 {
	magnitudes, known := trustDeltas[event.Type]
	if !known {
		return 0
	}
	switch event.Outcome {
	case OutcomePositive:
		return magnitudes.positive
	case OutcomeNegative:
		return -magnitudes.negative
	default:
		return 0
	}
}

// Apply mutates a score by delta, clamping the overall score and the
// behavior component to [0,1], and appends a history entry. History is
// trimmed to the last 50 entries once it exceeds 100.
func (TrustCalculator) Apply(score *TrustScore, delta float64, reason string, factors []string) {
	score.OverallScore = clamp(score.OverallScore + delta)
	score.Components.Behavior = clamp(score.Components.Behavior + delta)

	score.History = append(score.History, TrustHistoryEntry{
		Timestamp:           time.Now(),
		Score:               score.OverallScore,
		Reason:              reason,
		ContributingFactors: factors,
	})
	if len(score.History) > historyMax {
		trimmed := make([]TrustHistoryEntry, historyKeep)
		copy(trimmed, score.History[len(score.History)-historyKeep:])
		score.History = trimmed
	}
	score.LastUpdated = time.Now()
}

// ContextualAdjustment returns an advisory bonus for the current request
// context. The bonus is decision-local and never written back to the stored
// score.
func (TrustCalculator) ContextualAdjustment(score *TrustScore, secCtx *SecurityContext) float64 {
	adjustment := 0.0
	if secCtx.Source.Location != nil && secCtx.Source.Location.Trusted {
		adjustment += 0.05
	}
	hour := secCtx.Timestamp.Hour()
	if hour >= 9 && hour < 17 {
		adjustment += 0.02
	}
	return adjustment
}

type trustEntry struct {
	mu    sync.Mutex
	score *TrustScore
}

// TrustStore holds per-agent trust scores. Mutations for one agent are
// serialized on a per-agent lock; concurrent updates for distinct agents do
// not contend.
type TrustStore struct {
	agents     map[string]*trustEntry
	mu         sync.RWMutex
	calculator TrustCalculator
	logger     *slog.Logger
}

// NewTrustStore creates an empty trust store.
func NewTrustStore(logger *slog.Logger) *TrustStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustStore{
		agents: make(map[string]*trustEntry),
		logger: logger.With("component", "trust-store"),
	}
}

func (ts *TrustStore) entry(agentID string) *trustEntry {
	ts.mu.RLock()
	entry, exists := ts.agents[agentID]
	ts.mu.RUnlock()
	if exists {
		return entry
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if entry, exists = ts.agents[agentID]; exists {
		return entry
	}
	entry = &trustEntry{score: ts.calculator.Initialize(agentID)}
	ts.agents[agentID] = entry
	ts.logger.Debug("initialized trust score", "agent_id", agentID, "score", neutralPrior)
	return entry
}

// Snapshot returns a copy of the agent's trust score, creating the neutral
// prior for unseen agents.
func (ts *TrustStore) Snapshot(agentID string) *TrustScore {
	entry := ts.entry(agentID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return copyTrustScore(entry.score)
}

// Get returns a copy of the agent's trust score without creating one.
func (ts *TrustStore) Get(agentID string) (*TrustScore, error) {
	ts.mu.RLock()
	entry, exists := ts.agents[agentID]
	ts.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("trust score not found: %s", agentID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return copyTrustScore(entry.score), nil
}

// Update applies a trust event under the agent's lock and returns the
// resulting score copy.
func (ts *TrustStore) Update(agentID string, event TrustEvent) *TrustScore {
	entry := ts.entry(agentID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	delta := ts.calculator.Delta(event)
	reason := fmt.Sprintf("%s/%s", event.Type, event.Outcome)
	ts.calculator.Apply(entry.score, delta, reason, factorsFromDetails(event.Details))

	ts.logger.Debug("trust score updated",
		"agent_id", agentID, "delta", delta, "score", entry.score.OverallScore)
	return copyTrustScore(entry.score)
}

// AgentIDs returns the ids of all known agents.
func (ts *TrustStore) AgentIDs() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	ids := make([]string, 0, len(ts.agents))
	for id := range ts.agents {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of tracked agents.
func (ts *TrustStore) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.agents)
}

func factorsFromDetails(details map[string]interface{}) []string {
	if len(details) == 0 {
		return nil
	}
	factors := make([]string, 0, len(details))
	for key := range details {
		factors = append(factors, key)
	}
	return factors
}

func copyTrustScore(score *TrustScore) *TrustScore {
	copied := *score
	copied.PositiveFactors = append([]string(nil), score.PositiveFactors...)
	copied.NegativeFactors = append([]string(nil), score.NegativeFactors...)
	copied.UnknownFactors = append([]string(nil), score.UnknownFactors...)
	copied.History = append([]TrustHistoryEntry(nil), score.History...)
	return &copied
}
