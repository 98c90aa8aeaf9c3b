// Package media wraps the external decoding tool used to inspect and cut
// audio files.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// BytesPerEstimatedMinute is the size heuristic used when the duration
	// cannot be probed: 1 MiB of audio is assumed to last 60 seconds.
	BytesPerEstimatedMinute = 1024 * 1024

	probeTimeout   = 10 * time.Second
	extractTimeout = 60 * time.Second
	versionTimeout = 5 * time.Second
)

// ErrMalformedOutput is returned when the tool output cannot be parsed.
var ErrMalformedOutput = errors.New("malformed decoder output")

// Decoder reports media durations and extracts sub-ranges without re-encoding.
type Decoder interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractRange(ctx context.Context, path string, startSec, durationSec float64, dst string) error
}

// ToolError describes a failed decoder invocation.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpeg implements Decoder with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	run         Runner
}

// NewFFmpeg returns an FFmpeg decoder using binaries found on PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		run:         execRunner,
	}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ToolError{Tool: name, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}

// Available reports whether ffmpeg can be executed.
func (f *FFmpeg) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	_, err := f.run(ctx, f.FFmpegPath, "-version")
	return err == nil
}

// Duration probes the container duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := f.run(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return parseDuration(out)
}

func parseDuration(out []byte) (float64, error) {
	raw := strings.TrimSpace(string(out))
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrMalformedOutput, raw)
	}
	return seconds, nil
}

// ExtractRange copies [startSec, startSec+durationSec) of path into dst using
// stream copy.
func (f *FFmpeg) ExtractRange(ctx context.Context, path string, startSec, durationSec float64, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	_, err := f.run(ctx, f.FFmpegPath,
		"-i", path,
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durationSec),
		"-c", "copy",
		"-y",
		"-loglevel", "error",
		dst,
	)
	return err
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// EstimateDuration approximates the duration of path from its size.
func EstimateDuration(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return EstimateDurationFromSize(info.Size()), nil
}

// EstimateDurationFromSize applies the 1 MiB per minute heuristic.
func EstimateDurationFromSize(size int64) float64 {
	return float64(size) / BytesPerEstimatedMinute * 60
}

// DurationOrEstimate probes the duration with d and falls back to the size
// heuristic when the probe fails. The second return value reports whether
// the estimate was used.
func DurationOrEstimate(ctx context.Context, d Decoder, path string) (float64, bool, error) {
	if d != nil {
		seconds, err := d.Duration(ctx, path)
		if err == nil {
			return seconds, false, nil
		}
	}
	seconds, err := EstimateDuration(path)
	if err != nil {
		return 0, true, err
	}
	return seconds, true, nil
}
