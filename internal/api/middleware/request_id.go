package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const (
	RequestIDKey   contextKey = "request_id"
	requestTagsKey contextKey = "request_tags"
)

// requestTags holds the user and meeting a handler resolved. It is installed
// by RequestID so the access log and Sentry middleware around the handler see
// what the handler recorded.
type requestTags struct {
	mu        sync.Mutex
	userID    string
	meetingID string
}

// RequestID injects a request ID into context and response headers, together
// with an empty holder for TagMeeting.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, requestTagsKey, &requestTags{})
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// TagMeeting records the user and meeting the request operates on for the
// access log and the request's Sentry scope. Empty values keep earlier tags.
func TagMeeting(ctx context.Context, userID, meetingID string) {
	if tags, ok := ctx.Value(requestTagsKey).(*requestTags); ok {
		tags.mu.Lock()
		if userID != "" {
			tags.userID = userID
		}
		if meetingID != "" {
			tags.meetingID = meetingID
		}
		tags.mu.Unlock()
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	if userID != "" {
		hub.Scope().SetUser(sentry.User{ID: userID})
		hub.Scope().SetTag("user_id", userID)
	}
	if meetingID != "" {
		hub.Scope().SetTag("meeting_id", meetingID)
	}
}

// meetingTags returns what TagMeeting recorded for the request.
func meetingTags(ctx context.Context) (userID, meetingID string) {
	tags, ok := ctx.Value(requestTagsKey).(*requestTags)
	if !ok {
		return "", ""
	}
	tags.mu.Lock()
	defer tags.mu.Unlock()
	return tags.userID, tags.meetingID
}
