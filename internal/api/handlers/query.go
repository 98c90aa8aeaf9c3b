package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/api"
	"github.com/cloo-solutions/meetmind/internal/api/middleware"
	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/service"
)

type RetrievalService interface {
	Search(ctx context.Context, userID, query string, topK int) ([]domain.RetrievedMatch, error)
	Ask(ctx context.Context, userID, query string, topK int) (*service.Answer, error)
}

type QueryHandler struct {
	svc         RetrievalService
	defaultTopK int
}

// NewQueryHandler creates a handler; defaultTopK applies when a request omits top_k.
func NewQueryHandler(svc RetrievalService, defaultTopK int) *QueryHandler {
	return &QueryHandler{svc: svc, defaultTopK: defaultTopK}
}

type QueryRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
}

func (q QueryRequest) text() string {
	if strings.TrimSpace(q.Question) != "" {
		return q.Question
	}
	return q.Query
}

type MatchResponse struct {
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata"`
	RelevanceScore float64           `json:"relevance_score"`
}

type SearchResponse struct {
	Matches []MatchResponse `json:"matches"`
}

func (h *QueryHandler) decode(w http.ResponseWriter, r *http.Request) (*QueryRequest, bool) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	middleware.TagMeeting(r.Context(), req.UserID, "")
	if req.UserID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return nil, false
	}
	if strings.TrimSpace(req.text()) == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return nil, false
	}
	if req.TopK == 0 {
		req.TopK = h.defaultTopK
	}
	return &req, true
}

// Ask answers a question from the user's own meetings.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	answer, err := h.svc.Ask(r.Context(), req.UserID, req.text(), req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answer)
}

// Search returns the raw nearest fragments without composing an answer.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	matches, err := h.svc.Search(r.Context(), req.UserID, req.text(), req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Matches: make([]MatchResponse, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, MatchResponse{
			ID:             m.ID,
			Content:        m.Content,
			Metadata:       m.Metadata,
			RelevanceScore: m.Relevance(),
		})
	}
	api.Success(w, http.StatusOK, resp)
}
