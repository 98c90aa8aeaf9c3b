package domain

// RetrievedMatch is one nearest-fragment result from a user's collection.
type RetrievedMatch struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Relevance converts the store distance into a [0,1] score.
func (m RetrievedMatch) Relevance() float64 {
	score := 1 - m.Distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// MeetingID returns the owning meeting id from the match metadata.
func (m RetrievedMatch) MeetingID() string {
	return m.Metadata[MetadataMeetingID]
}

// Kind returns the fragment kind, or "unknown" when the metadata has none.
func (m RetrievedMatch) Kind() string {
	if k := m.Metadata[MetadataType]; k != "" {
		return k
	}
	return "unknown"
}
