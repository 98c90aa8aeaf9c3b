package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/meetmind/internal/api"
	"github.com/cloo-solutions/meetmind/internal/api/middleware"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/go-chi/chi/v5"
)

type IndexService interface {
	Index(ctx context.Context, in service.IndexInput) (*service.IndexResult, error)
	DeleteMeeting(ctx context.Context, userID, meetingID string) error
}

type MeetingHandler struct {
	svc IndexService
}

func NewMeetingHandler(svc IndexService) *MeetingHandler {
	return &MeetingHandler{svc: svc}
}

type IndexMeetingRequest struct {
	UserID      string   `json:"user_id"`
	MeetingID   string   `json:"meeting_id"`
	Transcript  string   `json:"transcript"`
	Summary     string   `json:"summary"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
	KeyPoints   []string `json:"key_points"`
}

// ToInput converts the request into an IndexInput.
func (r IndexMeetingRequest) ToInput() service.IndexInput {
	return service.IndexInput{
		UserID:      r.UserID,
		MeetingID:   r.MeetingID,
		Transcript:  r.Transcript,
		Summary:     r.Summary,
		Decisions:   r.Decisions,
		ActionItems: r.ActionItems,
		KeyPoints:   r.KeyPoints,
	}
}

type IndexMeetingResponse struct {
	Collection string `json:"collection"`
	Fragments  int    `json:"fragments"`
}

func (h *MeetingHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	middleware.TagMeeting(r.Context(), req.UserID, req.MeetingID)

	if req.UserID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.MeetingID == "" {
		api.Error(w, http.StatusBadRequest, "meeting_id is required")
		return
	}

	result, err := h.svc.Index(r.Context(), req.ToInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, IndexMeetingResponse{
		Collection: result.Collection,
		Fragments:  result.Fragments,
	})
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")
	if meetingID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	userID := r.URL.Query().Get("user_id")
	middleware.TagMeeting(r.Context(), userID, meetingID)
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.svc.DeleteMeeting(r.Context(), userID, meetingID); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
