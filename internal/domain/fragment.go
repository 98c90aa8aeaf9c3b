package domain

import (
	"fmt"
	"strconv"
)

// FragmentKind is the type of material a knowledge fragment was derived from
type FragmentKind string

const (
	FragmentKindTranscript FragmentKind = "transcript"
	FragmentKindSummary    FragmentKind = "summary"
	FragmentKindDecision   FragmentKind = "decision"
	FragmentKindActionItem FragmentKind = "action_item"
	FragmentKindKeyPoint   FragmentKind = "key_point"
)

// Metadata keys stored with every fragment
const (
	MetadataMeetingID  = "meeting_id"
	MetadataUserID     = "user_id"
	MetadataType       = "type"
	MetadataChunkIndex = "chunk_index"
)

// KnowledgeFragment is a unit of retrievable text in a user's collection.
type KnowledgeFragment struct {
	ID        string
	UserID    string
	MeetingID string
	Kind      FragmentKind
	Sequence  *int
	Text      string
	Embedding []float32
}

// NewKnowledgeFragment builds a fragment with its deterministic identifier.
// A negative sequence marks an unindexed fragment.
func NewKnowledgeFragment(userID, meetingID string, kind FragmentKind, sequence int, text string) KnowledgeFragment {
	f := KnowledgeFragment{
		UserID:    userID,
		MeetingID: meetingID,
		Kind:      kind,
		Text:      text,
	}
	if sequence >= 0 {
		seq := sequence
		f.Sequence = &seq
	}
	f.ID = FragmentID(meetingID, kind, f.Sequence)
	return f
}

// FragmentID returns meetingID_kind_index, or meetingID_kind when seq is nil.
func FragmentID(meetingID string, kind FragmentKind, seq *int) string {
	if seq == nil {
		return fmt.Sprintf("%s_%s", meetingID, kind)
	}
	return fmt.Sprintf("%s_%s_%d", meetingID, kind, *seq)
}

// Metadata returns the flat attribute map persisted next to the fragment.
func (f KnowledgeFragment) Metadata() map[string]string {
	meta := map[string]string{
		MetadataMeetingID: f.MeetingID,
		MetadataUserID:    f.UserID,
		MetadataType:      string(f.Kind),
	}
	if f.Sequence != nil {
		meta[MetadataChunkIndex] = strconv.Itoa(*f.Sequence)
	}
	return meta
}

// IsValidFragmentKind checks if a FragmentKind is one of the known kinds
func IsValidFragmentKind(k FragmentKind) bool {
	switch k {
	case FragmentKindTranscript, FragmentKindSummary, FragmentKindDecision,
		FragmentKindActionItem, FragmentKindKeyPoint:
		return true
	}
	return false
}
