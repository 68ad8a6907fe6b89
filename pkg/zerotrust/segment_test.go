package zerotrust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentValidation(t *testing.T) {
	store := NewSegmentStore(nil)

	tests := []struct {
		name    string
		segment *NetworkSegment
	}{
		{"nil segment", nil},
		{"missing id", &NetworkSegment{Name: "x", Type: SegmentProduction}},
		{"missing name", &NetworkSegment{SegmentID: "x", Type: SegmentProduction}},
		{"unknown type", &NetworkSegment{SegmentID: "x", Name: "x", Type: "dmz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.Add(tt.segment), ErrInvalidSegment)
		})
	}
}

func TestSegmentStoreRoundTrip(t *testing.T) {
	store := NewSegmentStore(nil)

	segment := &NetworkSegment{
		SegmentID:     "prod-east",
		Name:          "Production East",
		Type:          SegmentProduction,
		SecurityLevel: "high",
		Monitoring:    SegmentMonitoring{Enabled: true, Level: "full", RetentionDays: 30},
	}
	require.NoError(t, store.Add(segment))

	got, err := store.Get("prod-east")
	require.NoError(t, err)
	assert.Equal(t, SegmentProduction, got.Type)

	_, err = store.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, 1, store.Count())
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name    string
		segment *NetworkSegment
		issues  int
	}{
		{
			"clean segment",
			&NetworkSegment{
				SegmentID: "s1", Name: "s1", Type: SegmentStaging,
				Monitoring: SegmentMonitoring{Enabled: true, RetentionDays: 7},
			},
			0,
		},
		{
			"high security without monitoring",
			&NetworkSegment{
				SegmentID: "s2", Name: "s2", Type: SegmentProduction,
				SecurityLevel: "high",
			},
			1,
		},
		{
			"monitoring without retention",
			&NetworkSegment{
				SegmentID: "s3", Name: "s3", Type: SegmentProduction,
				Monitoring: SegmentMonitoring{Enabled: true},
			},
			1,
		},
		{
			"unknown isolation rule action",
			&NetworkSegment{
				SegmentID: "s4", Name: "s4", Type: SegmentIsolated,
				IsolationRules: []IsolationRule{{Action: "shrug"}},
			},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ValidateStructure(tt.segment), tt.issues)
		})
	}
}
