package httpx

import (
	"net/http"
	"time"
)

// Middleware wraps a handler with one cross-cutting concern. Compose with
// Chain.
type Middleware func(http.Handler) http.Handler

// Chain applies the middlewares outermost-first: Chain(h, a, b) serves a
// request through a, then b, then h.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// WithBodyLimit caps request body reads. A handler decoding a capped body
// sees a MaxBytesError from the reader.
func WithBodyLimit(limitBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// WithTimeout answers 503 with a JSON body when the handler exceeds d.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}
