package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/media"
	"github.com/cloo-solutions/meetmind/internal/telemetry"
)

// SpeechToText turns one audio file into text.
type SpeechToText interface {
	Transcribe(ctx context.Context, path, language string) (string, error)
}

// TranscriptionConfig bounds a transcription run.
type TranscriptionConfig struct {
	Language       string
	MaxParallel    int
	MaxDirectBytes int64
	MaxUploadBytes int64
	MaxDurationSec float64
	TempDir        string
}

// DefaultTranscriptionConfig returns the production limits.
func DefaultTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		Language:       "en",
		MaxParallel:    3,
		MaxDirectBytes: MaxTranscriptionBytes,
		MaxUploadBytes: 100 * 1024 * 1024,
		MaxDurationSec: 120 * 60,
	}
}

// TranscriptionService turns an audio file of any size into one transcript.
type TranscriptionService struct {
	stt       SpeechToText
	decoder   media.Decoder
	segmenter *Segmenter
	cfg       TranscriptionConfig
}

// NewTranscriptionService creates a TranscriptionService. Zero config fields
// take their default values.
func NewTranscriptionService(stt SpeechToText, decoder media.Decoder, cfg TranscriptionConfig) *TranscriptionService {
	def := DefaultTranscriptionConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = def.MaxParallel
	}
	if cfg.MaxDirectBytes <= 0 {
		cfg.MaxDirectBytes = def.MaxDirectBytes
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxDurationSec <= 0 {
		cfg.MaxDurationSec = def.MaxDurationSec
	}

	segmenter := NewSegmenter(decoder, cfg.TempDir)
	segmenter.maxChunkBytes = cfg.MaxDirectBytes

	return &TranscriptionService{
		stt:       stt,
		decoder:   decoder,
		segmenter: segmenter,
		cfg:       cfg,
	}
}

// TranscribeAudio validates path, then transcribes it directly when it fits
// in one request, or chunk by chunk otherwise.
func (s *TranscriptionService) TranscribeAudio(ctx context.Context, path string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "TranscriptionService.TranscribeAudio", telemetry.SpanAttributes{
		Operation: "transcribe",
	})
	defer span.End()

	text, err := s.transcribeAudio(ctx, span, path)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return text, nil
}

func (s *TranscriptionService) transcribeAudio(ctx context.Context, span *telemetry.Span, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "audio file not found: "+path, domain.ErrAudioFileNotFound)
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "cannot read audio file", err)
	}
	if info.IsDir() {
		return "", domain.NewValidationError("audio path is a directory: " + path)
	}

	size := info.Size()
	if size == 0 {
		return "", domain.ErrEmptyAudioFile
	}
	if size > s.cfg.MaxUploadBytes {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("audio file is %s, maximum is %s",
				humanize.IBytes(uint64(size)), humanize.IBytes(uint64(s.cfg.MaxUploadBytes))),
			domain.ErrAudioFileTooLarge)
	}

	duration, estimated, err := media.DurationOrEstimate(ctx, s.decoder, path)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "cannot determine audio duration", err)
	}
	if estimated {
		log.Printf("transcription: duration probe failed for %s, estimated %.0fs from size", path, duration)
	}
	if duration > s.cfg.MaxDurationSec {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("audio is %.0f minutes, maximum is %.0f minutes", duration/60, s.cfg.MaxDurationSec/60),
			domain.ErrAudioTooLong)
	}

	span.SetData("size_bytes", size)
	span.SetData("duration_sec", duration)

	if size <= s.cfg.MaxDirectBytes {
		text, err := s.stt.Transcribe(ctx, path, s.cfg.Language)
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeTranscriptionFailure, "transcription failed", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", domain.ErrEmptyTranscript
		}
		return text, nil
	}

	if checker, ok := s.decoder.(interface{ Available(context.Context) bool }); ok && !checker.Available(ctx) {
		return "", domain.ErrDecoderUnavailable
	}

	log.Printf("transcription: %s is %s, splitting into chunks", path, humanize.IBytes(uint64(size)))

	owned := &chunkSet{}
	defer owned.release()

	chunks, err := s.segmenter.Segment(ctx, path, duration)
	if err != nil {
		return "", err
	}
	owned.addChunks(chunks)
	span.SetData("chunks", len(chunks))

	text, err := s.Transcribe(ctx, chunks)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", domain.ErrEmptyTranscript
	}
	return text, nil
}

// Transcribe runs at most MaxParallel speech-to-text calls at once and joins
// the results in chunk index order. The first failure cancels the chunks not
// yet started and fails the whole call. Chunk indices must be 0..len-1.
// Every chunk file is removed before Transcribe returns.
func (s *TranscriptionService) Transcribe(ctx context.Context, chunks []domain.AudioChunk) (string, error) {
	owned := &chunkSet{}
	owned.addChunks(chunks)
	defer owned.release()

	if len(chunks) == 0 {
		return "", domain.NewValidationError("no chunks to transcribe")
	}

	seen := make([]bool, len(chunks))
	for _, c := range chunks {
		if c.Index < 0 || c.Index >= len(chunks) || seen[c.Index] {
			return "", domain.NewValidationError(fmt.Sprintf("invalid chunk index %d", c.Index))
		}
		seen[c.Index] = true
	}

	results := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)

	for _, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := s.stt.Transcribe(gctx, c.Path, s.cfg.Language)
			if err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}
			results[c.Index] = strings.TrimSpace(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeTranscriptionFailure, "chunk transcription failed", err)
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, " "), nil
}
