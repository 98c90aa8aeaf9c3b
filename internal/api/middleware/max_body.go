package middleware

import (
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/cloo-solutions/meetmind/internal/api"
)

// MaxBodyBytes rejects requests that declare a body over limit and caps the
// rest with http.MaxBytesReader, so handlers see *http.MaxBytesError once a
// streamed upload crosses it. A non-positive limit disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body is %s, maximum is %s",
						humanize.IBytes(uint64(r.ContentLength)), humanize.IBytes(uint64(limit))))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
