package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestAccessLog_RecordsAuthenticatedClient(t *testing.T) {
	buf := captureLog(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})
	handler := RequestID(AccessLog(TokenAuth(StaticToken{Token: "secret", ClientID: "ops"})(inner)))

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, "/query", entry.Path)
	assert.Equal(t, http.StatusCreated, entry.Status)
	assert.Equal(t, 2, entry.Bytes)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "ops", entry.ClientID)
}

func TestAccessLog_RecordsMeetingTags(t *testing.T) {
	buf := captureLog(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		TagMeeting(r.Context(), "alice", "standup-42")
		TagMeeting(r.Context(), "", "")
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequestID(AccessLog(inner))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/meetings/standup-42", nil))

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "alice", entry.UserID)
	assert.Equal(t, "standup-42", entry.MeetingID)
	assert.Equal(t, http.StatusNoContent, entry.Status)
}

func TestAccessLog_OmitsMeetingTagsWhenUnset(t *testing.T) {
	buf := captureLog(t)

	handler := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotContains(t, buf.String(), "user_id")
	assert.NotContains(t, buf.String(), "meeting_id")
}

func TestTagMeeting_WithoutRequestIDIsNoop(t *testing.T) {
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	assert.NotPanics(t, func() { TagMeeting(ctx, "alice", "m1") })
	userID, meetingID := meetingTags(ctx)
	assert.Empty(t, userID)
	assert.Empty(t, meetingID)
}

func TestMaxBodyBytes_RejectsDeclaredLength(t *testing.T) {
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body is 10 B, maximum is 4 B")
}

func TestMaxBodyBytes_CapsStreamedBody(t *testing.T) {
	var readErr error
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}
