package domain

import "fmt"

// AudioChunk is a time-bounded sub-range of an audio file, materialized as a
// temporary file owned by a single transcription call.
type AudioChunk struct {
	Index       int
	StartSec    float64
	DurationSec float64
	SizeBytes   int64
	Path        string
}

// EndSec returns the exclusive end offset of the chunk.
func (c AudioChunk) EndSec() float64 {
	return c.StartSec + c.DurationSec
}

func (c AudioChunk) String() string {
	return fmt.Sprintf("chunk %d [%.0fs,%.0fs)", c.Index, c.StartSec, c.EndSec())
}

// TranscriptSegment is the recognized text of one chunk.
type TranscriptSegment struct {
	ChunkIndex int
	Text       string
}
