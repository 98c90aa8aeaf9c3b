package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/media"
	"github.com/cloo-solutions/meetmind/internal/telemetry"
)

const (
	// MaxTranscriptionBytes is the hard per-request limit of the speech-to-text service.
	MaxTranscriptionBytes int64 = 25 * 1024 * 1024

	// WindowSeconds is the length of one chunk window.
	WindowSeconds = 600.0
	// OverlapSeconds is shared between consecutive windows.
	OverlapSeconds = 10.0
	// StrideSeconds is the distance between consecutive window starts.
	StrideSeconds = WindowSeconds - OverlapSeconds

	// ChunkFilePrefix names every temporary chunk file.
	ChunkFilePrefix = "meetmind-chunk-"
)

// Window is one planned time range of a segmentation.
type Window struct {
	Index       int
	StartSec    float64
	DurationSec float64
}

// PlanWindows returns the windows covering [0, totalSec).
func PlanWindows(totalSec float64) []Window {
	count := int(math.Ceil((totalSec - OverlapSeconds) / StrideSeconds))
	if count < 1 {
		count = 1
	}

	windows := make([]Window, count)
	for i := range windows {
		start := float64(i) * StrideSeconds
		windows[i] = Window{
			Index:       i,
			StartSec:    start,
			DurationSec: math.Min(WindowSeconds, totalSec-start),
		}
	}
	return windows
}

// Segmenter cuts audio into overlapping windows with the decoder, one
// subprocess at a time, without re-encoding.
type Segmenter struct {
	decoder       media.Decoder
	tempDir       string
	maxChunkBytes int64
}

// NewSegmenter creates a Segmenter writing chunks to tempDir (os.TempDir when empty).
func NewSegmenter(decoder media.Decoder, tempDir string) *Segmenter {
	return &Segmenter{
		decoder:       decoder,
		tempDir:       tempDir,
		maxChunkBytes: MaxTranscriptionBytes,
	}
}

// Segment extracts every planned window of mediaPath into a temporary file.
// The caller owns the returned chunks. On failure no chunk file is left behind.
func (s *Segmenter) Segment(ctx context.Context, mediaPath string, totalSec float64) ([]domain.AudioChunk, error) {
	if totalSec <= 0 {
		return nil, domain.NewValidationError("audio duration must be positive")
	}

	created := &chunkSet{}
	ok := false
	defer func() {
		if !ok {
			created.release()
		}
	}()

	windows := PlanWindows(totalSec)
	chunks := make([]domain.AudioChunk, 0, len(windows))
	ext := filepath.Ext(mediaPath)

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeTranscodingFailure, "segmentation cancelled", err)
		}

		dst, err := s.reserve(ext)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeTranscodingFailure, "failed to create chunk file", err)
		}
		created.add(dst)

		if err := s.decoder.ExtractRange(ctx, mediaPath, w.StartSec, w.DurationSec, dst); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeTranscodingFailure,
				fmt.Sprintf("failed to extract chunk %d", w.Index), err)
		}

		info, err := os.Stat(dst)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeTranscodingFailure,
				fmt.Sprintf("chunk %d was not produced", w.Index), err)
		}
		if info.Size() > s.maxChunkBytes {
			return nil, domain.NewDomainError(domain.ErrCodeChunkTooLarge,
				fmt.Sprintf("chunk %d is %s, limit is %s", w.Index,
					humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(s.maxChunkBytes))))
		}

		chunk := domain.AudioChunk{
			Index:       w.Index,
			StartSec:    w.StartSec,
			DurationSec: w.DurationSec,
			SizeBytes:   info.Size(),
			Path:        dst,
		}
		chunks = append(chunks, chunk)
		telemetry.AddBreadcrumb(ctx, "segmenter", chunk.String())
	}

	ok = true
	return chunks, nil
}

func (s *Segmenter) reserve(ext string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, ChunkFilePrefix+"*"+ext)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
