package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/api"
	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/dustin/go-humanize"
)

// UploadFilePrefix names temp files holding uploaded audio.
const UploadFilePrefix = "meetmind-upload-"

type TranscriptionService interface {
	TranscribeAudio(ctx context.Context, path string) (string, error)
}

// AudioSource fetches remote audio into a local temp file.
type AudioSource interface {
	Download(ctx context.Context, location, dir string) (string, error)
}

type TranscriptionHandler struct {
	svc      TranscriptionService
	source   AudioSource
	tempDir  string
	maxBytes int64
}

// NewTranscriptionHandler creates a handler. source may be nil when remote
// audio is not configured.
func NewTranscriptionHandler(svc TranscriptionService, source AudioSource, tempDir string, maxBytes int64) *TranscriptionHandler {
	return &TranscriptionHandler{
		svc:      svc,
		source:   source,
		tempDir:  tempDir,
		maxBytes: maxBytes,
	}
}

type TranscribeRequest struct {
	Location string `json:"location"`
}

type TranscribeResponse struct {
	Transcript string `json:"transcript"`
	Characters int    `json:"characters"`
}

// Transcribe accepts either a multipart upload with a "file" part or a JSON
// body naming a remote location.
func (h *TranscriptionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var (
		path string
		err  error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		path, err = h.receiveUpload(r)
	} else {
		path, err = h.fetchRemote(r)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("transcription: failed to remove %s: %v", path, err)
		}
	}()

	transcript, err := h.svc.TranscribeAudio(r.Context(), path)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, TranscribeResponse{
		Transcript: transcript,
		Characters: len(transcript),
	})
}

func (h *TranscriptionHandler) receiveUpload(r *http.Request) (string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", domain.NewValidationError("invalid multipart body")
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return "", domain.NewValidationError("file is required")
		}
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid multipart body", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		defer part.Close()
		return h.writeTemp(part, filepath.Ext(part.FileName()))
	}
}

func (h *TranscriptionHandler) writeTemp(src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(h.tempDir, UploadFilePrefix+"*"+strings.ToLower(ext))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if h.maxBytes > 0 {
		src = io.LimitReader(src, h.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && h.maxBytes > 0 && n > h.maxBytes {
		err = domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("upload exceeds %s", humanize.IBytes(uint64(h.maxBytes))), domain.ErrAudioFileTooLarge)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "upload too large", domain.ErrAudioFileTooLarge)
		}
		if domain.CodeOf(err) == domain.ErrCodeValidation {
			return "", err
		}
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return f.Name(), nil
}

func (h *TranscriptionHandler) fetchRemote(r *http.Request) (string, error) {
	var req TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", domain.NewValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Location) == "" {
		return "", domain.NewValidationError("location is required")
	}
	if h.source == nil {
		return "", domain.NewValidationError("remote audio locations are not configured")
	}

	path, err := h.source.Download(r.Context(), req.Location, h.tempDir)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "failed to fetch audio", err)
	}
	return path, nil
}
