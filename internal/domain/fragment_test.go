package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentKindConstants(t *testing.T) {
	tests := []struct {
		name     string
		kind     FragmentKind
		expected string
	}{
		{"Transcript", FragmentKindTranscript, "transcript"},
		{"Summary", FragmentKindSummary, "summary"},
		{"Decision", FragmentKindDecision, "decision"},
		{"ActionItem", FragmentKindActionItem, "action_item"},
		{"KeyPoint", FragmentKindKeyPoint, "key_point"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.kind))
			assert.True(t, IsValidFragmentKind(tt.kind))
		})
	}

	assert.False(t, IsValidFragmentKind("topic"))
}

func TestFragmentID(t *testing.T) {
	seq := 3
	assert.Equal(t, "m-1_decision_3", FragmentID("m-1", FragmentKindDecision, &seq))
	assert.Equal(t, "m-1_summary", FragmentID("m-1", FragmentKindSummary, nil))
}

func TestNewKnowledgeFragment_Indexed(t *testing.T) {
	f := NewKnowledgeFragment("alice", "m-1", FragmentKindTranscript, 0, "hello")

	require.NotNil(t, f.Sequence)
	assert.Equal(t, 0, *f.Sequence)
	assert.Equal(t, "m-1_transcript_0", f.ID)
	assert.Equal(t, map[string]string{
		MetadataMeetingID:  "m-1",
		MetadataUserID:     "alice",
		MetadataType:       "transcript",
		MetadataChunkIndex: "0",
	}, f.Metadata())
}

func TestNewKnowledgeFragment_Unindexed(t *testing.T) {
	f := NewKnowledgeFragment("alice", "m-1", FragmentKindSummary, -1, "summary text")

	assert.Nil(t, f.Sequence)
	assert.Equal(t, "m-1_summary", f.ID)
	_, hasIndex := f.Metadata()[MetadataChunkIndex]
	assert.False(t, hasIndex)
}

func TestFragmentID_StableAcrossCalls(t *testing.T) {
	a := NewKnowledgeFragment("alice", "m-1", FragmentKindKeyPoint, 2, "first")
	b := NewKnowledgeFragment("alice", "m-1", FragmentKindKeyPoint, 2, "second")
	assert.Equal(t, a.ID, b.ID)
}
