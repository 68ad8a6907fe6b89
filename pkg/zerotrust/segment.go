package zerotrust

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var validSegmentTypes = map[SegmentType]bool{
	SegmentProduction:  true,
	SegmentStaging:     true,
	SegmentDevelopment: true,
	SegmentIsolated:    true,
	SegmentQuarantine:  true,
}

var validRuleActions = map[string]bool{
	"allow":   true,
	"deny":    true,
	"inspect": true,
}

// SegmentStore holds the network segmentation registry.
type SegmentStore struct {
	segments map[string]*NetworkSegment
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewSegmentStore creates an empty segment registry.
func NewSegmentStore(logger *slog.Logger) *SegmentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentStore{
		segments: make(map[string]*NetworkSegment),
		logger:   logger.With("component", "segment-store"),
	}
}

func validateSegment(segment *NetworkSegment) error {
	if segment == nil {
		return fmt.Errorf("%w: segment must not be nil", ErrInvalidSegment)
	}
	if segment.SegmentID == "" {
		return fmt.Errorf("%w: segment id is required", ErrInvalidSegment)
	}
	if segment.Name == "" {
		return fmt.Errorf("%w: segment name is required", ErrInvalidSegment)
	}
	if !validSegmentTypes[segment.Type] {
		return fmt.Errorf("%w: unknown segment type %q", ErrInvalidSegment, segment.Type)
	}
	return nil
}

// Add validates and stores a segment.
func (ss *SegmentStore) Add(segment *NetworkSegment) error {
	if err := validateSegment(segment); err != nil {
		return err
	}

	stored := *segment
	ss.mu.Lock()
	ss.segments[stored.SegmentID] = &stored
	ss.mu.Unlock()

	ss.logger.Info("network segment created",
		"segment_id", stored.SegmentID, "type", stored.Type)
	return nil
}

// Get returns a copy of one segment.
func (ss *SegmentStore) Get(segmentID string) (*NetworkSegment, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	segment, exists := ss.segments[segmentID]
	if !exists {
		return nil, fmt.Errorf("network segment not found: %s", segmentID)
	}
	copied := *segment
	return &copied, nil
}

// List returns copies of all segments sorted by id.
func (ss *SegmentStore) List() []*NetworkSegment {
	ss.mu.RLock()
	segments := make([]*NetworkSegment, 0, len(ss.segments))
	for _, segment := range ss.segments {
		copied := *segment
		segments = append(segments, &copied)
	}
	ss.mu.RUnlock()

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].SegmentID < segments[j].SegmentID
	})
	return segments
}

// Count returns the number of registered segments.
func (ss *SegmentStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.segments)
}

// ValidateStructure runs the periodic structural checks on a segment and
// returns human-readable issues. It is independent of the decision path.
func ValidateStructure(segment *NetworkSegment) []string {
	var issues []string

	if (segment.SecurityLevel == "high" || segment.SecurityLevel == "critical") &&
		!segment.Monitoring.Enabled {
		issues = append(issues, fmt.Sprintf(
			"segment %s has security level %s but monitoring disabled",
			segment.SegmentID, segment.SecurityLevel))
	}

	if segment.Monitoring.Enabled && segment.Monitoring.RetentionDays <= 0 {
		issues = append(issues, fmt.Sprintf(
			"segment %s has monitoring enabled with non-positive retention", segment.SegmentID))
	}

	for i, rule := range segment.IsolationRules {
		if !validRuleActions[rule.Action] {
			issues = append(issues, fmt.Sprintf(
				"segment %s isolation rule %d has unknown action %q",
				segment.SegmentID, i, rule.Action))
		}
	}

	return issues
}
